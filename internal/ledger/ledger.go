// Package ledger records consumed payment proofs so each proof grants
// access at most once.
package ledger

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces consumed-proof markers in the shared redis instance.
const keyPrefix = "botgate:proof:"

// Ledger is the replay ledger for payment proofs, backed by redis.
// SETNX gives the single atomic check-and-mark the exactly-once contract
// requires; there is no separate get-then-set anywhere.
type Ledger struct {
	client *redis.Client
}

// New creates a Ledger connected to the given redis instance.
func New(addr, password string, db int) *Ledger {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Ledger{client: rdb}
}

// NewWithClient wraps an existing redis client. Used by tests.
func NewWithClient(client *redis.Client) *Ledger {
	return &Ledger{client: client}
}

// TryConsume atomically marks a transaction reference as used.
// Returns true only for the caller that wins the race; every later call
// with the same reference returns false, forever. Consumed markers never
// expire: a spent proof must never become reusable.
func (l *Ledger) TryConsume(ctx context.Context, txRef string) (bool, error) {
	stamp := time.Now().UTC().Format(time.RFC3339Nano)
	return l.client.SetNX(ctx, keyPrefix+txRef, stamp, 0).Result()
}

// Consumed reports whether a transaction reference has already been spent.
// Read-only; used by status surfaces, never for admission decisions.
func (l *Ledger) Consumed(ctx context.Context, txRef string) (bool, error) {
	n, err := l.client.Exists(ctx, keyPrefix+txRef).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Ping verifies connectivity for readiness checks.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close releases the underlying redis connection.
func (l *Ledger) Close() error {
	return l.client.Close()
}
