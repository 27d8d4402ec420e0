package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipLimiter tracks one token bucket per client IP.
type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rps      rate.Limit
	burst    int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitByIP limits requests per client IP on the wrapped handler.
// Idle entries are evicted so the map stays bounded.
func RateLimitByIP(rps float64, burst int) func(http.Handler) http.Handler {
	l := &ipLimiter{
		limiters: make(map[string]*limiterEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !l.allow(ip) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.limiters[ip]
	if !ok {
		// Opportunistic eviction keeps the map from growing unbounded
		// without needing its own background loop.
		if len(l.limiters) > 10000 {
			for k, e := range l.limiters {
				if now.Sub(e.lastSeen) > 10*time.Minute {
					delete(l.limiters, k)
				}
			}
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now

	return entry.limiter.Allow()
}

// clientIP extracts the remote IP, without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
