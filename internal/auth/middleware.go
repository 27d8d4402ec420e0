package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// RequireOwner validates the AccessKey header and injects the owner id into
// the request context. Requests without a valid token get 401.
func RequireOwner(v *Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get("AccessKey"))

			ownerToken, err := v.ValidateToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, ErrMissingToken) || errors.Is(err, ErrInvalidToken) {
					logger.Warn("rejected management API request", "remote_addr", r.RemoteAddr)
					http.Error(w, "invalid API token", http.StatusUnauthorized)
					return
				}
				logger.Error("token validation failed", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			ctx := WithOwner(r.Context(), ownerToken.OwnerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
