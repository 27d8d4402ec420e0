// Package storage handles all database operations for botgate.
package storage

import (
	"database/sql"
	"fmt"
)

// InitSchema creates all required tables and indexes.
// This is idempotent - safe to call multiple times.
func InitSchema(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	ddlStatements := []string{
		// projects table: one row per protected domain
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			domain TEXT NOT NULL,
			zone_id TEXT NOT NULL,
			secret_encrypted BLOB NOT NULL,
			status TEXT NOT NULL,
			nameservers TEXT NOT NULL,
			rule_ref TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// Every lookup filters by owner
		`CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner_id)`,

		// One zone per domain per owner
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_owner_domain ON projects(owner_id, domain)`,

		// grants table: one active grant per IP
		`CREATE TABLE IF NOT EXISTS grants (
			id TEXT PRIMARY KEY,
			ip TEXT NOT NULL UNIQUE,
			transaction_ref TEXT NOT NULL,
			zone_id TEXT NOT NULL,
			rule_ref TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_grants_expires ON grants(expires_at)`,

		// owner_tokens table: management API credentials
		`CREATE TABLE IF NOT EXISTS owner_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			token_hash TEXT NOT NULL UNIQUE,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_owner_tokens_hash ON owner_tokens(token_hash)`,
	}

	for _, stmt := range ddlStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute DDL: %w", err)
		}
	}

	return nil
}
