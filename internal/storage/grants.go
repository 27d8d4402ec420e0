package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertGrant inserts a grant, replacing any existing grant for the same IP.
// One active grant per IP: a new payment for an IP extends/replaces rather
// than duplicates. The caller is responsible for retracting the superseded
// CDN rule before upserting.
func (s *SQLiteStorage) UpsertGrant(ctx context.Context, g *Grant) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO grants (id, ip, transaction_ref, zone_id, rule_ref, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(ip) DO UPDATE SET
			id = excluded.id,
			transaction_ref = excluded.transaction_ref,
			zone_id = excluded.zone_id,
			rule_ref = excluded.rule_ref,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		g.ID, g.IP, g.TransactionRef, g.ZoneID, g.RuleRef,
		g.CreatedAt.UTC().Format(time.RFC3339Nano), g.ExpiresAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to upsert grant: %w", err)
	}
	return nil
}

// GetGrantByIP retrieves the grant for an IP.
// Returns ErrNotFound if no grant exists. Callers decide what an expired
// grant means; expiry is not filtered here so the sweeper can see stale rows.
func (s *SQLiteStorage) GetGrantByIP(ctx context.Context, ip string) (*Grant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, ip, transaction_ref, zone_id, rule_ref, created_at, expires_at
		 FROM grants WHERE ip = ?`, ip)

	g, err := scanGrant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get grant: %w", err)
	}
	return g, nil
}

// ListGrants returns all live grant rows, oldest expiry first.
func (s *SQLiteStorage) ListGrants(ctx context.Context) ([]*Grant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ip, transaction_ref, zone_id, rule_ref, created_at, expires_at
		 FROM grants ORDER BY expires_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	grants := make([]*Grant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant row: %w", err)
		}
		grants = append(grants, g)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grants: %w", err)
	}

	return grants, nil
}

// DeleteGrant removes a grant record by id.
// Deleting an already-removed grant is not an error; a prior partial sweep
// may have gotten there first.
func (s *SQLiteStorage) DeleteGrant(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM grants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}
	return nil
}

func scanGrant(row scanner) (*Grant, error) {
	var g Grant
	var createdAt, expiresAt string

	err := row.Scan(&g.ID, &g.IP, &g.TransactionRef, &g.ZoneID, &g.RuleRef, &createdAt, &expiresAt)
	if err != nil {
		return nil, err
	}

	if g.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if g.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to parse expires_at: %w", err)
	}
	return &g, nil
}
