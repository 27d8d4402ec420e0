// Package api provides the HTTP surface of botgate: domain registration and
// verification for owners, and the public pay-to-access endpoints.
package api

import (
	"context"
	"log/slog"

	"github.com/fenceline/botgate/internal/auth"
	"github.com/fenceline/botgate/internal/config"
	"github.com/fenceline/botgate/internal/grants"
	"github.com/fenceline/botgate/internal/protect"
)

// Handler carries the wired service dependencies for all endpoints.
type Handler struct {
	machine *protect.Machine
	grants  *grants.Manager
	store   Pinger
	ledger  Pinger
	auth    *auth.Validator
	cfg     *config.Config
	logger  *slog.Logger
}

// Pinger is the readiness contract for backing stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHandler creates the API handler.
func NewHandler(machine *protect.Machine, manager *grants.Manager, store, ledger Pinger, validator *auth.Validator, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		machine: machine,
		grants:  manager,
		store:   store,
		ledger:  ledger,
		auth:    validator,
		cfg:     cfg,
		logger:  logger,
	}
}
