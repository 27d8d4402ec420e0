// Package grants issues time-bounded, IP-scoped access grants for verified
// payments and autonomously revokes them when they expire.
package grants

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fenceline/botgate/internal/cdn"
	"github.com/fenceline/botgate/internal/metrics"
	"github.com/fenceline/botgate/internal/payment"
	"github.com/fenceline/botgate/internal/storage"
)

var (
	// ErrProofAlreadyUsed: the payment was genuinely valid but its proof was
	// consumed before, by this caller or another. Definitive; do not retry
	// with the same proof.
	ErrProofAlreadyUsed = errors.New("grants: payment proof already used")

	// ErrGrantDeployFailed: the proof was consumed but the CDN allow rule
	// could not be deployed. The payment is spent and cannot be un-spent;
	// the caller must retry shortly with a new proof.
	ErrGrantDeployFailed = errors.New("grants: payment verified, access grant failed, retry shortly")

	// ErrVerifierUnavailable: verification could not be completed because a
	// collaborator failed. Retryable with the same proof.
	ErrVerifierUnavailable = errors.New("grants: payment verification unavailable")

	// ErrWaitTimeout: WaitForActive reached its overall ceiling before the
	// grant became active.
	ErrWaitTimeout = errors.New("grants: timed out waiting for access to become active")
)

// PolicyError is a definitive rejection of a payment proof. It carries the
// verifier's reason unchanged so callers can surface the exact failure.
type PolicyError struct {
	Reason payment.Reason
	Detail string
}

func (e *PolicyError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("grants: %s: %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("grants: %s", e.Reason)
}

// CDN is the firewall collaborator contract the grant loop needs.
type CDN interface {
	DeployAllowRule(ctx context.Context, zoneID, ip string) (string, error)
	RetractRule(ctx context.Context, zoneID, ruleRef string) error
}

// Verifier checks a payment proof without consuming it.
type Verifier interface {
	Verify(ctx context.Context, txRef string, expected payment.Expected) payment.Result
}

// Ledger is the replay ledger contract: one atomic check-and-mark.
type Ledger interface {
	TryConsume(ctx context.Context, txRef string) (bool, error)
}

// Store is the grant persistence contract.
type Store interface {
	UpsertGrant(ctx context.Context, g *storage.Grant) error
	GetGrantByIP(ctx context.Context, ip string) (*storage.Grant, error)
	ListGrants(ctx context.Context) ([]*storage.Grant, error)
	DeleteGrant(ctx context.Context, id string) error
}

// Policy holds the named timing knobs for grants and the activation poll.
type Policy struct {
	GrantTTL       time.Duration
	WaitPollStart  time.Duration
	WaitPollFactor float64
	WaitPollCap    time.Duration
	WaitCeiling    time.Duration
	MinRemaining   time.Duration
}

// Manager runs the pay-to-access control loop. Dependencies are explicit so
// the atomic-consume contract is visible at every call site.
type Manager struct {
	store    Store
	cdn      CDN
	verifier Verifier
	ledger   Ledger
	zoneID   string
	policy   Policy
	logger   *slog.Logger

	// now is swapped out by tests.
	now func() time.Time
}

// NewManager creates a Manager deploying allow rules into zoneID.
func NewManager(store Store, cdnClient CDN, verifier Verifier, ledger Ledger, zoneID string, policy Policy, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:    store,
		cdn:      cdnClient,
		verifier: verifier,
		ledger:   ledger,
		zoneID:   zoneID,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
	}
}

// Grant verifies a payment proof and, exactly once per proof, deploys an
// allow rule for ip and records the grant.
//
// Rejection taxonomy: an invalid payment or reused proof is a policy error
// (client-facing, definitive); a collaborator failure is retryable; a
// post-consumption deployment failure is the distinct partial-failure class.
func (m *Manager) Grant(ctx context.Context, ip, txRef string, expected payment.Expected) (*storage.Grant, error) {
	result := m.verifier.Verify(ctx, txRef, expected)
	if !result.Valid {
		if result.Retryable() {
			return nil, fmt.Errorf("%w: %s", ErrVerifierUnavailable, result.Detail)
		}
		return nil, &PolicyError{Reason: result.Reason, Detail: result.Detail}
	}

	won, err := m.ledger.TryConsume(ctx, txRef)
	if err != nil {
		return nil, fmt.Errorf("%w: ledger: %v", ErrVerifierUnavailable, err)
	}
	if !won {
		return nil, ErrProofAlreadyUsed
	}

	// The proof is spent from here on. Any failure below is the
	// partial-failure class, not a policy rejection.
	if prev, err := m.store.GetGrantByIP(ctx, ip); err == nil {
		// Replace, don't stack: retract the superseded rule first.
		if err := m.cdn.RetractRule(ctx, prev.ZoneID, prev.RuleRef); err != nil && !errors.Is(err, cdn.ErrNotFound) {
			m.logger.Warn("failed to retract superseded allow rule",
				"ip", ip, "rule_ref", prev.RuleRef, "error", err)
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		m.logger.Error("grant lookup failed during replacement", "ip", ip, "error", err)
	}

	ruleRef, err := m.cdn.DeployAllowRule(ctx, m.zoneID, ip)
	if err != nil {
		m.logger.Error("allow rule deployment failed after proof consumption",
			"ip", ip, "tx", txRef, "error", err)
		metrics.RecordRuleDeploy("allow", "error")
		return nil, ErrGrantDeployFailed
	}
	metrics.RecordRuleDeploy("allow", "ok")

	now := m.now()
	grant := &storage.Grant{
		ID:             uuid.New().String(),
		IP:             ip,
		TransactionRef: txRef,
		ZoneID:         m.zoneID,
		RuleRef:        ruleRef,
		CreatedAt:      now,
		ExpiresAt:      now.Add(m.policy.GrantTTL),
	}

	if err := m.store.UpsertGrant(ctx, grant); err != nil {
		m.logger.Error("grant record write failed after rule deployment",
			"ip", ip, "tx", txRef, "rule_ref", ruleRef, "error", err)
		// Without a grant row the sweeper can never find this rule, so it
		// must not outlive the failure.
		if rerr := m.cdn.RetractRule(ctx, m.zoneID, ruleRef); rerr != nil && !errors.Is(rerr, cdn.ErrNotFound) {
			m.logger.Error("orphaned allow rule retraction failed",
				"ip", ip, "rule_ref", ruleRef, "error", rerr)
		}
		return nil, ErrGrantDeployFailed
	}

	m.logger.Info("access grant issued",
		"grant_id", grant.ID, "ip", ip, "expires_at", grant.ExpiresAt)

	return grant, nil
}

// TimeRemaining reports how long the grant for ip stays active.
// An expired-but-unswept grant reports inactive: expiry is authoritative,
// the sweep is only cleanup.
func (m *Manager) TimeRemaining(ctx context.Context, ip string) (time.Duration, bool, error) {
	grant, err := m.store.GetGrantByIP(ctx, ip)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}

	remaining := grant.ExpiresAt.Sub(m.now())
	if remaining <= 0 {
		return 0, false, nil
	}
	return remaining, true, nil
}

// WaitForActive polls until the grant for ip has at least MinRemaining left,
// backing off from WaitPollStart toward WaitPollCap, and gives up with
// ErrWaitTimeout after WaitCeiling. Purely a client-side convenience: it
// never mutates server-side state.
func (m *Manager) WaitForActive(ctx context.Context, ip string) (time.Duration, error) {
	deadline := m.now().Add(m.policy.WaitCeiling)
	interval := m.policy.WaitPollStart

	for {
		remaining, active, err := m.TimeRemaining(ctx, ip)
		if err != nil {
			return 0, err
		}
		if active && remaining >= m.policy.MinRemaining {
			return remaining, nil
		}

		if m.now().After(deadline) {
			return 0, ErrWaitTimeout
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(interval):
		}

		interval = time.Duration(float64(interval) * m.policy.WaitPollFactor)
		if interval > m.policy.WaitPollCap {
			interval = m.policy.WaitPollCap
		}
	}
}
