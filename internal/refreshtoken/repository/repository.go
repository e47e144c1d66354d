package repository

import (
	"context"
	"time"

	"tenant-rollups/backend/internal/refreshtoken/domain"
)

// Repository defines persistence for refresh tokens.
type Repository interface {
	Create(ctx context.Context, t *domain.RefreshToken) error
	// GetByHash returns the token with the given hash, or nil if not found.
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	// Rotate revokes the parent (stamping replaced_by_hash with next.TokenHash) and inserts next,
	// as one conditional transition. It returns domain.ErrTokenNotActive, and inserts nothing, when
	// the parent is no longer active at the time of the update.
	Rotate(ctx context.Context, parentID, revokedByIP string, at time.Time, next *domain.RefreshToken) error
	// Revoke revokes an active token without a replacement. Returns domain.ErrTokenNotActive
	// when the token was not active.
	Revoke(ctx context.Context, id, revokedByIP string, at time.Time) error
}
