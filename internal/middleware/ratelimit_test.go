package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimitByIP(t *testing.T) {
	handler := RateLimitByIP(1, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Burst of 2 passes, the third immediate request is rejected.
	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/access", nil)
		req.RemoteAddr = "198.51.100.7:4321"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Errorf("burst requests = %v, want first two 200", statuses)
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", statuses[2])
	}
}

func TestRateLimitByIPIsPerIP(t *testing.T) {
	handler := RateLimitByIP(1, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/access", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do("198.51.100.7:1000"); code != http.StatusOK {
		t.Fatalf("first ip first request = %d", code)
	}
	if code := do("198.51.100.7:1001"); code != http.StatusTooManyRequests {
		t.Errorf("first ip second request = %d, want 429", code)
	}
	// A different client is unaffected by the first one's exhaustion.
	if code := do("203.0.113.9:1000"); code != http.StatusOK {
		t.Errorf("second ip first request = %d, want 200", code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:4321"
	if got := clientIP(req); got != "198.51.100.7" {
		t.Errorf("clientIP = %q, want %q", got, "198.51.100.7")
	}

	req.RemoteAddr = "no-port-here"
	if got := clientIP(req); got != "no-port-here" {
		t.Errorf("clientIP without port = %q", got)
	}
}
