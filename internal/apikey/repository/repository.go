package repository

import (
	"context"
	"time"

	"tenant-rollups/backend/internal/apikey/domain"
	"tenant-rollups/backend/internal/tenancy"
)

// Repository defines persistence for API keys.
type Repository interface {
	Create(ctx context.Context, k *domain.APIKey) error
	// GetByHash is the only unscoped lookup; it resolves which tenant a presented key belongs to.
	GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	ListByTenant(ctx context.Context, f tenancy.Filter) ([]*domain.APIKey, error)
	// Revoke deactivates the key if it is admitted by f and not yet revoked. It returns
	// domain.ErrNotFound when no key with that id is admitted by f.
	Revoke(ctx context.Context, f tenancy.Filter, id string, at time.Time) error
	UpdateLastUsed(ctx context.Context, id string, at time.Time) error
}
