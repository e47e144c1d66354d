package repository

import (
	"context"

	"tenant-rollups/backend/internal/event/domain"
	"tenant-rollups/backend/internal/tenancy"
)

// Repository defines persistence for events. Every call takes the tenant filter explicitly;
// a deny-all filter reads nothing and rejects every write.
type Repository interface {
	// Insert returns domain.ErrCrossTenant when f does not admit e.TenantID.
	Insert(ctx context.Context, f tenancy.Filter, e *domain.Event) error
	// List returns events newest first.
	List(ctx context.Context, f tenancy.Filter, q domain.Query) ([]*domain.Event, error)
	// CountByType returns per-type counts ordered by count descending then type.
	CountByType(ctx context.Context, f tenancy.Filter, q domain.Query) ([]domain.Rollup, error)
}
