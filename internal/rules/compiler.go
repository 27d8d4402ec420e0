// Package rules compiles bypass secrets into CDN firewall rule expressions.
package rules

import (
	"fmt"
	"strings"
)

// BypassHeader is the fixed request header a client presents the bypass
// secret in. The compiled rule compares it byte-exact against the secret.
const BypassHeader = "x-botgate-bypass"

// botScoreThreshold is the CDN bot-management score below which a request
// counts as likely automated.
const botScoreThreshold = 30

// automationAgents is the fixed set of user-agent substrings treated as
// automation even when no bot score is available.
var automationAgents = []string{
	"python-requests",
	"curl",
	"scrapy",
	"headless",
}

// Compile builds the challenge expression for a zone from its bypass secret.
//
// The expression evaluates true when a request should be challenged:
// it must look like a bot AND carry a header value different from the
// secret. A bot request with the exact secret is not challenged; non-bot
// traffic is never challenged regardless of the header.
//
// The equality the CDN evaluates is exact and case-sensitive. Whether the
// CDN engine compares in constant time is outside this code's control.
//
// Pure text generation; no network calls.
func Compile(secret string) string {
	var bot strings.Builder
	fmt.Fprintf(&bot, "cf.bot_management.score lt %d", botScoreThreshold)
	for _, agent := range automationAgents {
		fmt.Fprintf(&bot, " or http.user_agent contains %q", agent)
	}

	mismatch := fmt.Sprintf("http.request.headers[%q][0] ne \"%s\"",
		BypassHeader, escapeLiteral(secret))

	return fmt.Sprintf("(%s) and (%s)", bot.String(), mismatch)
}

// escapeLiteral escapes a value for use inside a double-quoted expression
// string literal. Generated secrets never contain these characters, but the
// compiler must not produce a malformed expression for arbitrary input.
func escapeLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
