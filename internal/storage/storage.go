// Package storage provides types and interfaces for SQLite persistence operations.
package storage

import (
	"context"
)

// Storage defines the interface for persistence operations.
type Storage interface {
	// Project operations. All reads and mutations are owner-scoped.
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, ownerID, id string) (*Project, error)
	ListProjects(ctx context.Context, ownerID string) ([]*Project, error)
	UpdateProjectStatus(ctx context.Context, ownerID, id string, status ProjectStatus, ruleRef string) error

	// Grant operations
	UpsertGrant(ctx context.Context, g *Grant) error
	GetGrantByIP(ctx context.Context, ip string) (*Grant, error)
	ListGrants(ctx context.Context) ([]*Grant, error)
	DeleteGrant(ctx context.Context, id string) error

	// Owner token operations
	CreateOwnerToken(ctx context.Context, ownerID, name, tokenHash string) (*OwnerToken, error)
	ListOwnerTokens(ctx context.Context) ([]*OwnerToken, error)
	DeleteOwnerToken(ctx context.Context, id int64) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
