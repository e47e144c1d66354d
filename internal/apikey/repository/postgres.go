package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"tenant-rollups/backend/internal/apikey/domain"
	"tenant-rollups/backend/internal/db"
	"tenant-rollups/backend/internal/tenancy"
)

const apiKeyColumns = `id, tenant_id, name, key_hash, key_prefix, active, expires_at, last_used_at, revoked_at, created_at`

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns an API key repository that uses the given db for persistence.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// Create persists the key. Only the hash and display prefix are stored.
func (r *PostgresRepository) Create(ctx context.Context, k *domain.APIKey) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO api_keys (id, tenant_id, name, key_hash, key_prefix, active, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		k.ID, k.TenantID, k.Name, k.KeyHash, k.Prefix, k.Active, k.ExpiresAt, k.CreatedAt)
	return err
}

// GetByHash returns the key for the hash, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	k, err := scanAPIKey(r.db.QueryRow(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = $1`, keyHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return k, err
}

// ListByTenant returns the keys admitted by f, newest first, revoked ones included.
func (r *PostgresRepository) ListByTenant(ctx context.Context, f tenancy.Filter) ([]*domain.APIKey, error) {
	if f.DenyAll() {
		return nil, nil
	}
	pred, args := f.SQL("tenant_id", 1)
	rows, err := r.db.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE `+pred+` ORDER BY created_at DESC, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// Revoke is idempotent: revoking an already revoked key in the tenant succeeds without changing it.
func (r *PostgresRepository) Revoke(ctx context.Context, f tenancy.Filter, id string, at time.Time) error {
	if f.DenyAll() {
		return domain.ErrNotFound
	}
	pred, args := f.SQL("tenant_id", 3)
	var exists bool
	err := r.db.QueryRow(ctx,
		`WITH revoked AS (
			UPDATE api_keys SET active = FALSE, revoked_at = $2
			WHERE id = $1 AND revoked_at IS NULL AND `+pred+`
			RETURNING id
		)
		SELECT EXISTS (SELECT 1 FROM revoked) OR EXISTS (SELECT 1 FROM api_keys WHERE id = $1 AND `+pred+`)`,
		append([]any{id, at}, args...)...,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateLastUsed stamps last_used_at. It never moves the timestamp backwards.
func (r *PostgresRepository) UpdateLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE api_keys SET last_used_at = $2 WHERE id = $1 AND (last_used_at IS NULL OR last_used_at < $2)`, id, at)
	return err
}

func scanAPIKey(row pgx.Row) (*domain.APIKey, error) {
	var k domain.APIKey
	if err := row.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.Prefix, &k.Active,
		&k.ExpiresAt, &k.LastUsedAt, &k.RevokedAt, &k.CreatedAt); err != nil {
		return nil, err
	}
	return &k, nil
}
