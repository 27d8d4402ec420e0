package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// New opens (or creates) the database at path and initializes the schema.
// Use ":memory:" for tests.
func New(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := InitSchema(db); err != nil {
		//nolint:errcheck
		db.Close()
		return nil, err
	}

	return &SQLiteStorage{db: db}, nil
}

// NewSQLiteStorage wraps an existing database handle.
func NewSQLiteStorage(db *sql.DB) *SQLiteStorage {
	return &SQLiteStorage{db: db}
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
