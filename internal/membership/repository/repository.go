package repository

import (
	"context"

	"tenant-rollups/backend/internal/membership/domain"
)

// Repository defines persistence for memberships.
type Repository interface {
	GetByUserAndTenant(ctx context.Context, userID, tenantID string) (*domain.Membership, error)
	// ListByUser returns the user's memberships ordered by joined_at, oldest first.
	ListByUser(ctx context.Context, userID string) ([]*domain.Membership, error)
	// Create returns domain.ErrAlreadyMember when (user, tenant) already exists.
	Create(ctx context.Context, m *domain.Membership) error
	// UpdateRole returns the updated membership, or nil if none exists.
	UpdateRole(ctx context.Context, userID, tenantID string, role domain.Role) (*domain.Membership, error)
}
