package rules

import (
	"fmt"
	"strings"
	"testing"
)

func TestCompile(t *testing.T) {
	secret := "bgs_0123456789abcdef0123456789abcdef"
	got := Compile(secret)

	want := `(cf.bot_management.score lt 30` +
		` or http.user_agent contains "python-requests"` +
		` or http.user_agent contains "curl"` +
		` or http.user_agent contains "scrapy"` +
		` or http.user_agent contains "headless")` +
		` and (http.request.headers["x-botgate-bypass"][0] ne "` + secret + `")`

	if got != want {
		t.Errorf("Compile() =\n%s\nwant\n%s", got, want)
	}
}

func TestCompileDeterministic(t *testing.T) {
	secret := "bgs_0123456789abcdef0123456789abcdef"
	if Compile(secret) != Compile(secret) {
		t.Error("same secret compiled to different expressions")
	}
}

func TestCompileDistinctSecrets(t *testing.T) {
	a := Compile("bgs_aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	b := Compile("bgs_bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	if a == b {
		t.Error("different secrets compiled to the same expression")
	}
}

func TestCompileEmbedsExactSecret(t *testing.T) {
	// The comparison must be byte-exact: the compiled expression carries the
	// secret verbatim, never upper/lower-cased.
	secret := "bgs_0123456789abcdef0123456789abcdef"
	expr := Compile(secret)

	if !strings.Contains(expr, fmt.Sprintf("ne %q", secret)) {
		t.Errorf("expression does not compare against the exact secret:\n%s", expr)
	}
	if strings.Contains(expr, strings.ToUpper(secret)) {
		t.Errorf("expression contains case-folded secret")
	}
}

func TestEscapeLiteral(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`plain`, `plain`},
		{`has"quote`, `has\"quote`},
		{`has\backslash`, `has\\backslash`},
		{`both\and"`, `both\\and\"`},
	}

	for _, tt := range tests {
		if got := escapeLiteral(tt.input); got != tt.want {
			t.Errorf("escapeLiteral(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
