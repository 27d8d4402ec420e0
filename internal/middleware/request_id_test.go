package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestIDGenerated(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("no request id in context")
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Errorf("response header = %q, context id = %q", rec.Header().Get("X-Request-ID"), seen)
	}
}

func TestRequestIDHonorsValidIncoming(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-id-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "upstream-id-42" {
		t.Errorf("request id = %q, want the incoming id", seen)
	}
}

func TestRequestIDRejectsInvalidIncoming(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	tests := []string{
		"has spaces in it",
		"bad\nnewline",
		strings.Repeat("x", 129),
		"héllo",
	}
	for _, id := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", id)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if seen == id {
			t.Errorf("invalid incoming id %q was honored", id)
		}
		if seen == "" {
			t.Errorf("no replacement id generated for %q", id)
		}
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := GetRequestID(req.Context()); got != "" {
		t.Errorf("GetRequestID on bare context = %q, want empty", got)
	}
}
