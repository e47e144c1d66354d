package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"tenant-rollups/backend/internal/db"
	"tenant-rollups/backend/internal/tenant/domain"
)

const tenantColumns = `id, name, slug, active, created_at, deactivated_at`

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a tenant repository that uses the given db for persistence.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the tenant for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	return r.getOne(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
}

// GetBySlug returns the tenant with the given slug, or nil if not found.
func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	return r.getOne(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*domain.Tenant, error) {
	var t domain.Tenant
	err := r.db.QueryRow(ctx, query, arg).Scan(&t.ID, &t.Name, &t.Slug, &t.Active, &t.CreatedAt, &t.DeactivatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// Create persists the tenant. The tenant must have ID set. A taken slug returns
// domain.ErrSlugTaken without raising a database error, so an enclosing transaction stays usable.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.Tenant) error {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO tenants (id, name, slug, active, created_at, deactivated_at) VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (slug) DO NOTHING`,
		t.ID, t.Name, t.Slug, t.Active, t.CreatedAt, t.DeactivatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSlugTaken
	}
	return nil
}

// Deactivate marks the tenant inactive. Already inactive tenants keep their original deactivated_at.
func (r *PostgresRepository) Deactivate(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE tenants SET active = FALSE, deactivated_at = $2 WHERE id = $1 AND active`, id, at)
	return err
}

// Reactivate marks the tenant active again and clears deactivated_at.
func (r *PostgresRepository) Reactivate(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE tenants SET active = TRUE, deactivated_at = NULL WHERE id = $1 AND NOT active`, id)
	return err
}
