package repository

import (
	"context"

	"tenant-rollups/backend/internal/audit/domain"
	"tenant-rollups/backend/internal/tenancy"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	// ListByTenant returns the newest entries admitted by f. A deny-all filter returns nothing.
	ListByTenant(ctx context.Context, f tenancy.Filter, limit, offset int32) ([]*domain.AuditLog, error)
}
