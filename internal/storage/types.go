package storage

import "time"

// ProjectStatus is the externally visible protection state of a project.
type ProjectStatus string

const (
	// StatusAwaitingDelegation: registered, nameservers not yet pointed at the CDN.
	StatusAwaitingDelegation ProjectStatus = "awaiting_delegation"
	// StatusProtected: the challenge rule is deployed and enforced.
	StatusProtected ProjectStatus = "protected"
	// StatusError: rule deployment failed permanently; recoverable by operator retry.
	StatusError ProjectStatus = "error"
)

// Project is one protected domain.
// ZoneID and Nameservers are set at registration and never change.
// The bypass secret is stored encrypted and only decrypted on explicit reveal
// or when compiling the challenge rule.
type Project struct {
	ID              string
	OwnerID         string
	Domain          string
	ZoneID          string
	SecretEncrypted []byte
	Status          ProjectStatus
	Nameservers     []string
	RuleRef         string // challenge rule handle, set when protected
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Grant is a time-bounded, IP-scoped allow rule issued after a verified
// payment. One active grant per IP; a new payment replaces the old grant.
type Grant struct {
	ID             string
	IP             string
	TransactionRef string
	ZoneID         string
	RuleRef        string // CDN allow-rule handle, required to revoke
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// OwnerToken authenticates a domain owner on the management API.
// Token issuance lives outside this core; botgate only validates them.
type OwnerToken struct {
	ID        int64
	TokenHash string // bcrypt
	OwnerID   string
	Name      string
	CreatedAt time.Time
}
