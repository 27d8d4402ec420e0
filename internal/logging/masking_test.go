package logging

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestMaskHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
		want   string
	}{
		{"bypass header fully redacted", "x-botgate-bypass", "bgs_0123456789abcdef0123456789abcdef", "[REDACTED]"},
		{"bypass header case insensitive", "X-Botgate-Bypass", "anything", "[REDACTED]"},
		{"secret-like header", "X-Webhook-Secret", "topsecret", "[REDACTED]"},
		{"password header", "X-Password", "hunter2", "[REDACTED]"},
		{"accesskey partial", "AccessKey", "bgt_0011223344ab3f", "****ab3f"},
		{"authorization partial", "Authorization", "Bearer tok_1234", "****1234"},
		{"short token", "AccessKey", "ab", "****"},
		{"plain header untouched", "Content-Type", "application/json", "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskHeader(tt.header, tt.value); got != tt.want {
				t.Errorf("MaskHeader(%q, %q) = %q, want %q", tt.header, tt.value, got, tt.want)
			}
		})
	}
}

func TestMaskJSONBody(t *testing.T) {
	body := []byte(`{"domain":"example.com","bypass_secret":"bgs_0123456789abcdef0123456789abcdef","nested":{"status":"protected","token":"xyz"}}`)
	allowlist := []string{"domain", "status"}

	masked := MaskJSONBody(body, allowlist)

	var out map[string]any
	if err := json.Unmarshal(masked, &out); err != nil {
		t.Fatalf("masked body is not JSON: %v", err)
	}

	if out["domain"] != "example.com" {
		t.Errorf("allowlisted field masked: %v", out["domain"])
	}
	if out["bypass_secret"] != "[REDACTED]" {
		t.Errorf("secret not redacted: %v", out["bypass_secret"])
	}

	nested := out["nested"].(map[string]any)
	if nested["status"] != "protected" {
		t.Errorf("nested allowlisted field masked: %v", nested["status"])
	}
	if nested["token"] != "[REDACTED]" {
		t.Errorf("nested secret not redacted: %v", nested["token"])
	}

	if strings.Contains(string(masked), "bgs_") {
		t.Error("masked body still contains a secret")
	}
}

func TestMaskJSONBodyNilAllowlistPassesThrough(t *testing.T) {
	body := []byte(`{"anything":"goes"}`)
	if got := MaskJSONBody(body, nil); string(got) != string(body) {
		t.Errorf("nil allowlist changed the body: %s", got)
	}
}

func TestMaskJSONBodyInvalidJSON(t *testing.T) {
	body := []byte("not json at all")
	if got := MaskJSONBody(body, []string{"x"}); string(got) != string(body) {
		t.Errorf("unparseable body changed: %s", got)
	}
}

func TestFormatBinaryData(t *testing.T) {
	if got := FormatBinaryData(make([]byte, 42)); got != "[BINARY: 42 bytes]" {
		t.Errorf("FormatBinaryData = %q", got)
	}
}
