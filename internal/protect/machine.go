// Package protect owns the per-domain protection lifecycle: a project moves
// from awaiting_delegation to protected once the CDN detects delegation and
// the bot-challenge rule is deployed.
package protect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/google/uuid"

	"github.com/fenceline/botgate/internal/cdn"
	"github.com/fenceline/botgate/internal/metrics"
	"github.com/fenceline/botgate/internal/rules"
	"github.com/fenceline/botgate/internal/secrets"
	"github.com/fenceline/botgate/internal/storage"
)

var (
	// ErrInvalidDomain is a synchronous validation failure; it never
	// reaches the CDN collaborator.
	ErrInvalidDomain = errors.New("protect: invalid domain name")

	// ErrUnrecognizedStatus is returned when the CDN reports a zone status
	// this core does not know. Surfaced, never retried automatically.
	ErrUnrecognizedStatus = errors.New("protect: unrecognized zone status")
)

// domainPattern accepts registrable hostnames: dot-separated labels of
// letters, digits, and inner hyphens, with at least one dot.
var domainPattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)

// CDN is the firewall collaborator contract the state machine needs.
type CDN interface {
	CreateZone(ctx context.Context, domain string) (*cdn.Zone, error)
	GetZoneStatus(ctx context.Context, zoneID string) (cdn.ZoneStatus, error)
	DeployChallengeRule(ctx context.Context, zoneID, expression string) (string, error)
}

// Store is the persistence contract the state machine needs.
type Store interface {
	CreateProject(ctx context.Context, p *storage.Project) error
	GetProject(ctx context.Context, ownerID, id string) (*storage.Project, error)
	ListProjects(ctx context.Context, ownerID string) ([]*storage.Project, error)
	UpdateProjectStatus(ctx context.Context, ownerID, id string, status storage.ProjectStatus, ruleRef string) error
}

// Registration is the result of registering a new domain. BypassSecret is
// the only time the plaintext secret is returned implicitly; afterwards it
// is available solely through RevealSecret.
type Registration struct {
	Project      *storage.Project
	BypassSecret string
}

// Outcome reports the externally visible result of a Verify call.
type Outcome struct {
	Status  storage.ProjectStatus
	Pending bool // true when delegation is still pending (no state change)
}

// Machine drives protection-state transitions for projects.
// Verify calls for the same project are serialized per project id, never
// globally: two overlapping verifications must not race to deploy the rule.
type Machine struct {
	store         Store
	cdn           CDN
	encryptionKey []byte
	logger        *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMachine creates a Machine.
func NewMachine(store Store, cdnClient CDN, encryptionKey []byte, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		store:         store,
		cdn:           cdnClient,
		encryptionKey: encryptionKey,
		logger:        logger,
		locks:         make(map[string]*sync.Mutex),
	}
}

// Register creates the CDN zone for a domain, generates the bypass secret,
// and persists the project in awaiting_delegation.
func (m *Machine) Register(ctx context.Context, ownerID, domain string) (*Registration, error) {
	if !domainPattern.MatchString(domain) {
		return nil, ErrInvalidDomain
	}

	zone, err := m.cdn.CreateZone(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("protect: zone creation failed: %w", err)
	}

	secret, err := secrets.Generate()
	if err != nil {
		return nil, fmt.Errorf("protect: secret generation failed: %w", err)
	}

	encrypted, err := storage.EncryptSecret(secret, m.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("protect: secret encryption failed: %w", err)
	}

	project := &storage.Project{
		ID:              uuid.New().String(),
		OwnerID:         ownerID,
		Domain:          domain,
		ZoneID:          zone.ID,
		SecretEncrypted: encrypted,
		Status:          storage.StatusAwaitingDelegation,
		Nameservers:     zone.Nameservers,
	}

	if err := m.store.CreateProject(ctx, project); err != nil {
		return nil, err
	}

	m.logger.Info("project registered",
		"project_id", project.ID, "domain", domain, "zone_id", zone.ID)

	return &Registration{Project: project, BypassSecret: secret}, nil
}

// Verify runs the protection transition for a project.
//
// While delegation is pending this is a no-op, callable any number of times.
// Once the zone is active it compiles and deploys the challenge rule, then
// records protected. A deployment failure leaves the stored status untouched
// so the caller can retry; a permanent API rejection records the error state
// (still recoverable: a later Verify retries the deployment).
//
// Re-invocation after protected is safe: the rule is redeployed idempotently
// and the status re-affirmed.
func (m *Machine) Verify(ctx context.Context, ownerID, projectID string) (*Outcome, error) {
	lock := m.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	project, err := m.store.GetProject(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}

	if project.Status == storage.StatusProtected {
		if _, err := m.deploy(ctx, project); err != nil {
			return nil, err
		}
		return &Outcome{Status: storage.StatusProtected}, nil
	}

	status, err := m.cdn.GetZoneStatus(ctx, project.ZoneID)
	if err != nil {
		return nil, fmt.Errorf("protect: zone status lookup failed: %w", err)
	}

	switch status.State {
	case cdn.StatePending:
		return &Outcome{Status: project.Status, Pending: true}, nil

	case cdn.StateActive:
		ruleRef, err := m.deploy(ctx, project)
		if err != nil {
			// A permanent rejection is worth recording; everything else
			// leaves the status for a plain retry.
			var apiErr *cdn.APIError
			if errors.As(err, &apiErr) && apiErr.Permanent() {
				if uerr := m.store.UpdateProjectStatus(ctx, ownerID, projectID, storage.StatusError, project.RuleRef); uerr != nil {
					m.logger.Error("failed to record error state", "project_id", projectID, "error", uerr)
				}
			}
			return nil, err
		}

		if err := m.store.UpdateProjectStatus(ctx, ownerID, projectID, storage.StatusProtected, ruleRef); err != nil {
			return nil, err
		}

		m.logger.Info("project protected", "project_id", projectID, "zone_id", project.ZoneID)
		return &Outcome{Status: storage.StatusProtected}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedStatus, status.Raw)
	}
}

// Get returns one project, owner-scoped.
func (m *Machine) Get(ctx context.Context, ownerID, projectID string) (*storage.Project, error) {
	return m.store.GetProject(ctx, ownerID, projectID)
}

// List returns the owner's projects.
func (m *Machine) List(ctx context.Context, ownerID string) ([]*storage.Project, error) {
	return m.store.ListProjects(ctx, ownerID)
}

// RevealSecret returns the plaintext bypass secret. Every other surface
// returns the masked form.
func (m *Machine) RevealSecret(ctx context.Context, ownerID, projectID string) (string, error) {
	project, err := m.store.GetProject(ctx, ownerID, projectID)
	if err != nil {
		return "", err
	}
	return storage.DecryptSecret(project.SecretEncrypted, m.encryptionKey)
}

// deploy compiles the challenge rule from the project's secret and pushes
// it to the zone. Same expression in, same rule out: safe to repeat.
func (m *Machine) deploy(ctx context.Context, project *storage.Project) (string, error) {
	secret, err := storage.DecryptSecret(project.SecretEncrypted, m.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("protect: secret decryption failed: %w", err)
	}

	expression := rules.Compile(secret)
	ruleRef, err := m.cdn.DeployChallengeRule(ctx, project.ZoneID, expression)
	if err != nil {
		m.logger.Error("challenge rule deployment failed",
			"project_id", project.ID, "zone_id", project.ZoneID, "error", err)
		metrics.RecordRuleDeploy("challenge", "error")
		return "", fmt.Errorf("protect: rule deployment failed: %w", err)
	}
	metrics.RecordRuleDeploy("challenge", "ok")
	return ruleRef, nil
}

// projectLock returns the mutex serializing transitions for one project.
func (m *Machine) projectLock(projectID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[projectID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[projectID] = lock
	}
	return lock
}
