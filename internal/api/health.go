package api

import (
	"context"
	"net/http"
	"time"
)

// HandleHealth returns basic health status
// GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady checks backing store connectivity
// GET /ready
// Returns 200 if both the database and the replay ledger are reachable.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := map[string]any{"status": "ok", "database": "connected", "ledger": "connected"}
	code := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		status["status"] = "error"
		status["database"] = "unavailable"
		code = http.StatusServiceUnavailable
	}
	if err := h.ledger.Ping(ctx); err != nil {
		status["status"] = "error"
		status["ledger"] = "unavailable"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, status)
}
