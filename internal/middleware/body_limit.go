package middleware

import (
	"encoding/json"
	"net/http"
)

// MaxBodySize caps request bodies on the API surface. Requests that
// declare an oversized Content-Length are refused before the handler
// runs; chunked or lying clients are cut off mid-read by
// http.MaxBytesReader and surface as a decode error in the handler.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				//nolint:errcheck
				json.NewEncoder(w).Encode(map[string]string{
					"error":   "invalid_request",
					"message": "request body too large",
				})
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
