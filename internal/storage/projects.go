package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// CreateProject inserts a new project.
// Returns ErrDuplicate if the owner already has a project for this domain.
func (s *SQLiteStorage) CreateProject(ctx context.Context, p *Project) error {
	nameservers, err := json.Marshal(p.Nameservers)
	if err != nil {
		return fmt.Errorf("failed to encode nameservers: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO projects (id, owner_id, domain, zone_id, secret_encrypted, status, nameservers, rule_ref)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.Domain, p.ZoneID, p.SecretEncrypted, string(p.Status), string(nameservers), p.RuleRef)

	if err != nil {
		if isConstraintError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// GetProject retrieves a project by id, scoped to its owner.
// A project belonging to a different owner returns ErrNotFound.
func (s *SQLiteStorage) GetProject(ctx context.Context, ownerID, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, domain, zone_id, secret_encrypted, status, nameservers, rule_ref, created_at, updated_at
		 FROM projects WHERE id = ? AND owner_id = ?`,
		id, ownerID)

	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// ListProjects returns all projects for an owner, newest first.
func (s *SQLiteStorage) ListProjects(ctx context.Context, ownerID string) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, domain, zone_id, secret_encrypted, status, nameservers, rule_ref, created_at, updated_at
		 FROM projects WHERE owner_id = ? ORDER BY created_at DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	projects := make([]*Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		projects = append(projects, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}

// UpdateProjectStatus persists a state-machine transition.
// Only the status and the challenge-rule handle are mutable; zone id,
// nameservers, and the secret are immutable after registration.
// Returns ErrNotFound for unknown ids or foreign owners.
func (s *SQLiteStorage) UpdateProjectStatus(ctx context.Context, ownerID, id string, status ProjectStatus, ruleRef string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE projects SET status = ?, rule_ref = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND owner_id = ?`,
		string(status), ruleRef, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
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

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*Project, error) {
	var p Project
	var status, nameservers string

	err := row.Scan(&p.ID, &p.OwnerID, &p.Domain, &p.ZoneID, &p.SecretEncrypted,
		&status, &nameservers, &p.RuleRef, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.Status = ProjectStatus(status)
	if err := json.Unmarshal([]byte(nameservers), &p.Nameservers); err != nil {
		return nil, fmt.Errorf("failed to decode nameservers: %w", err)
	}
	return &p, nil
}

// isConstraintError reports whether err is a sqlite UNIQUE/constraint violation.
func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		// 2067 is the extended UNIQUE constraint code; 19 the base constraint code.
		return sqliteErr.Code() == 2067 || (sqliteErr.Code()&0xFF) == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
