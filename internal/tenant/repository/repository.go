package repository

import (
	"context"
	"time"

	"tenant-rollups/backend/internal/tenant/domain"
)

// Repository defines persistence for tenants.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
	// Create returns domain.ErrSlugTaken when the slug is already in use.
	Create(ctx context.Context, t *domain.Tenant) error
	// Deactivate and Reactivate are idempotent; an unknown id is a no-op.
	Deactivate(ctx context.Context, id string, at time.Time) error
	Reactivate(ctx context.Context, id string) error
}
