package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/fenceline/botgate/internal/auth"
	"github.com/fenceline/botgate/internal/metrics"
	"github.com/fenceline/botgate/internal/middleware"
)

// bodyAllowlist lists JSON fields safe to keep in debug HTTP logs.
// Everything else (bypass secrets in particular) gets redacted.
var bodyAllowlist = []string{
	"domain", "project_id", "zone_id", "status", "nameservers",
	"grant_id", "expires_at", "remaining_ms", "active",
	"error", "message", "hint",
}

// NewRouter builds the API router with the full middleware stack.
func (h *Handler) NewRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.MaxBodySize(1 << 20))
	r.Use(middleware.HTTPLogging(h.logger, bodyAllowlist))
	r.Use(metrics.Middleware)

	// Public endpoints (no auth)
	r.Get("/health", h.HandleHealth)
	r.Get("/ready", h.HandleReady)

	// Owner management API (token auth)
	r.Route("/api/projects", func(r chi.Router) {
		r.Use(auth.RequireOwner(h.auth, h.logger))

		r.Post("/", h.HandleRegisterProject)
		r.Get("/", h.HandleListProjects)
		r.Get("/{id}", h.HandleGetProject)
		r.Post("/{id}/verify", h.HandleVerifyProject)
		r.Get("/{id}/secret", h.HandleRevealSecret)
	})

	// Public pay-to-access API (rate limited per IP)
	r.Route("/api/access", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(h.cfg.RateLimitRPS, h.cfg.RateLimitBurst))

		r.Post("/", h.HandleCreateAccess)
		r.Get("/{ip}", h.HandleAccessStatus)
	})

	return r
}
