package storage

import (
	"context"
	"fmt"
)

// CreateOwnerToken stores a new owner API token hash.
// Returns ErrDuplicate if a token with this hash already exists.
func (s *SQLiteStorage) CreateOwnerToken(ctx context.Context, ownerID, name, tokenHash string) (*OwnerToken, error) {
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO owner_tokens (token_hash, owner_id, name) VALUES (?, ?, ?)",
		tokenHash, ownerID, name)
	if err != nil {
		if isConstraintError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create owner token: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get insert ID: %w", err)
	}

	return &OwnerToken{
		ID:        id,
		TokenHash: tokenHash,
		OwnerID:   ownerID,
		Name:      name,
	}, nil
}

// ListOwnerTokens returns all owner tokens.
// bcrypt hashes are not directly comparable, so validation iterates the list.
func (s *SQLiteStorage) ListOwnerTokens(ctx context.Context) ([]*OwnerToken, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, token_hash, owner_id, name, created_at FROM owner_tokens ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query owner tokens: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	tokens := make([]*OwnerToken, 0)
	for rows.Next() {
		var t OwnerToken
		if err := rows.Scan(&t.ID, &t.TokenHash, &t.OwnerID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan owner token row: %w", err)
		}
		tokens = append(tokens, &t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating owner tokens: %w", err)
	}

	return tokens, nil
}

// DeleteOwnerToken removes an owner token by id.
// Returns ErrNotFound if the token doesn't exist.
func (s *SQLiteStorage) DeleteOwnerToken(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM owner_tokens WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete owner token: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
