package grants

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fenceline/botgate/internal/cdn"
	"github.com/fenceline/botgate/internal/metrics"
)

// Sweeper is the single background loop that retracts expired allow rules
// and removes their grant records. One per process; Start is idempotent.
type Sweeper struct {
	store    Store
	cdn      CDN
	interval time.Duration
	logger   *slog.Logger

	started atomic.Bool
	stopped atomic.Bool
	stop    chan struct{}
	done    chan struct{}

	// now is swapped out by tests.
	now func() time.Time
}

// NewSweeper creates a Sweeper.
func NewSweeper(store Store, cdnClient CDN, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		cdn:      cdnClient,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

// Start launches the sweep loop. Calling it again is a no-op: the guard
// ensures a second Start never creates a second loop.
func (s *Sweeper) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.run(ctx)
}

// Stop shuts the loop down and waits for the in-flight sweep to finish.
// Safe to call any number of times, and even if Start never ran.
func (s *Sweeper) Stop() {
	if !s.started.Load() {
		return
	}
	if s.stopped.CompareAndSwap(false, true) {
		close(s.stop)
	}
	<-s.done
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce scans all live grants and revokes every one whose expiry has
// passed. Expiry is re-read here, at sweep time: a grant replaced since the
// last tick keeps its fresh TTL and is left alone.
//
// Per-item failures are logged and skipped; one bad revocation must not
// stop the sweep of the remaining grants. Returns the number of grants
// removed.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	grants, err := s.store.ListGrants(ctx)
	if err != nil {
		s.logger.Error("grant sweep listing failed", "error", err)
		return 0
	}

	now := s.now()
	removed := 0

	for _, grant := range grants {
		if !now.After(grant.ExpiresAt) {
			continue
		}

		err := s.cdn.RetractRule(ctx, grant.ZoneID, grant.RuleRef)
		if err != nil && !errors.Is(err, cdn.ErrNotFound) {
			// Keep the row so the next sweep retries the retraction.
			s.logger.Error("allow rule retraction failed",
				"grant_id", grant.ID, "ip", grant.IP, "rule_ref", grant.RuleRef, "error", err)
			continue
		}

		if err := s.store.DeleteGrant(ctx, grant.ID); err != nil {
			s.logger.Error("grant record removal failed", "grant_id", grant.ID, "error", err)
			continue
		}

		removed++
		s.logger.Info("expired grant revoked", "grant_id", grant.ID, "ip", grant.IP)
	}

	metrics.RecordGrantsSwept(removed)
	return removed
}
