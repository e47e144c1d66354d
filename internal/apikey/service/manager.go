// Package service issues, validates and revokes tenant API keys.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"tenant-rollups/backend/internal/apikey/domain"
	apikeyrepo "tenant-rollups/backend/internal/apikey/repository"
	"tenant-rollups/backend/internal/audit"
	"tenant-rollups/backend/internal/security"
	"tenant-rollups/backend/internal/telemetry"
	"tenant-rollups/backend/internal/tenancy"
	tenantdomain "tenant-rollups/backend/internal/tenant/domain"
)

// ErrNameRequired is returned by Create for a blank key name.
var ErrNameRequired = errors.New("api key name is required")

// TenantRepo is the minimal tenant repository needed by the manager.
type TenantRepo interface {
	GetByID(ctx context.Context, id string) (*tenantdomain.Tenant, error)
}

// Manager owns the API key lifecycle. Plaintext keys leave the manager exactly once, from Create.
type Manager struct {
	keys    apikeyrepo.Repository
	tenants TenantRepo
	bg      *telemetry.Background
	audit   audit.AuditLogger
	now     func() time.Time
}

// NewManager returns a Manager. bg runs last-used updates; nil runs none.
func NewManager(keys apikeyrepo.Repository, tenants TenantRepo, bg *telemetry.Background) *Manager {
	return &Manager{keys: keys, tenants: tenants, bg: bg, now: time.Now}
}

// WithAudit records key creation and revocation through l.
func (m *Manager) WithAudit(l audit.AuditLogger) *Manager {
	m.audit = l
	return m
}

// Create issues a key for tenantID. The returned plaintext is not stored and cannot be recovered.
func (m *Manager) Create(ctx context.Context, tenantID, name string, expiresAt *time.Time) (*domain.APIKey, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", ErrNameRequired
	}
	if tenantID == "" {
		return nil, "", tenancy.ErrNoScope
	}
	plaintext, err := domain.GenerateKey()
	if err != nil {
		return nil, "", err
	}
	k := &domain.APIKey{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Name:      name,
		KeyHash:   security.HashToken(plaintext),
		Prefix:    domain.DisplayPrefix(plaintext),
		Active:    true,
		ExpiresAt: expiresAt,
		CreatedAt: m.now().UTC(),
	}
	if err := m.keys.Create(ctx, k); err != nil {
		return nil, "", err
	}
	m.logAudit(ctx, tenantID, audit.ActionAPIKeyCreated, "prefix="+k.Prefix)
	return k, plaintext, nil
}

// Validate resolves a presented key. It returns (nil, nil) when the key is empty, malformed,
// unknown, inactive, revoked, expired, or belongs to a missing or deactivated tenant.
// Only storage failures are returned as errors. On success last_used_at is updated in the background.
func (m *Manager) Validate(ctx context.Context, plaintext string) (*domain.APIKey, error) {
	if !domain.WellFormed(plaintext) {
		return nil, nil
	}
	k, err := m.keys.GetByHash(ctx, security.HashToken(plaintext))
	if err != nil {
		return nil, err
	}
	if k == nil || !security.TokenHashEqual(plaintext, k.KeyHash) {
		return nil, nil
	}
	now := m.now().UTC()
	if !k.Usable(now) {
		return nil, nil
	}
	t, err := m.tenants.GetByID(ctx, k.TenantID)
	if err != nil {
		return nil, err
	}
	if t == nil || !t.Active {
		return nil, nil
	}
	id := k.ID
	m.bg.Go("apikey.touch", func(ctx context.Context) error {
		return m.keys.UpdateLastUsed(ctx, id, now)
	})
	return k, nil
}

// Revoke revokes key id within the caller's tenant scope. Revoking an already revoked key succeeds.
// Returns domain.ErrNotFound when the key is not visible to the caller.
func (m *Manager) Revoke(ctx context.Context, id string) error {
	f := tenancy.FilterFor(ctx)
	if err := m.keys.Revoke(ctx, f, id, m.now().UTC()); err != nil {
		return err
	}
	tenantID, _ := f.TenantID()
	m.logAudit(ctx, tenantID, audit.ActionAPIKeyRevoked, "key_id="+id)
	return nil
}

// List returns the keys of the caller's tenant scope; none without a scope.
func (m *Manager) List(ctx context.Context) ([]*domain.APIKey, error) {
	return m.keys.ListByTenant(ctx, tenancy.FilterFor(ctx))
}

// Drain waits for in-flight last-used updates.
func (m *Manager) Drain(ctx context.Context) error {
	return m.bg.Drain(ctx)
}

func (m *Manager) logAudit(ctx context.Context, tenantID, action, metadata string) {
	if m.audit == nil {
		return
	}
	userID := ""
	if s, ok := tenancy.FromContext(ctx); ok {
		userID = s.Actor.ID()
	}
	m.audit.LogEvent(ctx, tenantID, userID, action, "api_key", metadata)
}
