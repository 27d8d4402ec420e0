// Package middleware provides HTTP middleware components for botgate.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const requestIDKey contextKey = "request-id"

// RequestID generates a unique request ID for each request, stores it in
// the request context, and echoes it in the X-Request-ID response header.
// An incoming X-Request-ID is honored only if it passes validation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || !isValidRequestID(id) {
			id = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, id)
		w.Header().Set("X-Request-ID", id)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// isValidRequestID accepts IDs of at most 128 chars made of alphanumerics,
// dash, underscore, or period.
func isValidRequestID(id string) bool {
	if len(id) > 128 {
		return false
	}
	for _, c := range id {
		isAlphanumeric := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		isAllowedSpecial := c == '-' || c == '_' || c == '.'
		if !isAlphanumeric && !isAllowedSpecial {
			return false
		}
	}
	return true
}

// GetRequestID retrieves the request ID from the context.
// Returns empty string if no request ID is found.
func GetRequestID(ctx context.Context) string {
	id, ok := ctx.Value(requestIDKey).(string)
	if !ok {
		return ""
	}
	return id
}
