package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"tenant-rollups/backend/internal/db"
	"tenant-rollups/backend/internal/refreshtoken/domain"
)

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a refresh token repository that uses the given db for persistence.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// Create persists a new, unrevoked refresh token.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO refresh_tokens (id, user_id, tenant_id, token_hash, expires_at, created_by_ip, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.UserID, nullString(t.TenantID), t.TokenHash, t.ExpiresAt, t.CreatedByIP, t.CreatedAt)
	return err
}

// GetByHash returns the refresh token for the hash, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	var (
		t                                   domain.RefreshToken
		tenantID, revokedByIP, replacedHash *string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, tenant_id, token_hash, expires_at, created_by_ip, created_at,
		        revoked_at, revoked_by_ip, replaced_by_hash
		 FROM refresh_tokens WHERE token_hash = $1`, tokenHash,
	).Scan(&t.ID, &t.UserID, &tenantID, &t.TokenHash, &t.ExpiresAt, &t.CreatedByIP, &t.CreatedAt,
		&t.RevokedAt, &revokedByIP, &replacedHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.TenantID = deref(tenantID)
	t.RevokedByIP = deref(revokedByIP)
	t.ReplacedByHash = deref(replacedHash)
	return &t, nil
}

// rotateSQL revokes the parent only while it is still active and inserts the child from the
// UPDATE's RETURNING set, so a lost race inserts nothing. Concurrent rotations of one parent
// serialize on its row lock and the loser re-evaluates the WHERE clause against the revoked row.
const rotateSQL = `
WITH parent AS (
	UPDATE refresh_tokens
	SET revoked_at = $2::timestamptz, revoked_by_ip = $3::text, replaced_by_hash = $5::text
	WHERE id = $1::text AND revoked_at IS NULL AND expires_at > $2::timestamptz
	RETURNING id
)
INSERT INTO refresh_tokens (id, user_id, tenant_id, token_hash, expires_at, created_by_ip, created_at)
SELECT $4::text, $6::text, $7::text, $5::text, $8::timestamptz, $9::text, $10::timestamptz
FROM parent`

// Rotate performs the conditional revoke-and-replace in a single statement.
func (r *PostgresRepository) Rotate(ctx context.Context, parentID, revokedByIP string, at time.Time, next *domain.RefreshToken) error {
	tag, err := r.db.Exec(ctx, rotateSQL,
		parentID, at, revokedByIP, next.ID, next.TokenHash, next.UserID, nullString(next.TenantID), next.ExpiresAt,
		next.CreatedByIP, next.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTokenNotActive
	}
	return nil
}

// Revoke marks an active token revoked without setting replaced_by_hash.
func (r *PostgresRepository) Revoke(ctx context.Context, id, revokedByIP string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = $2, revoked_by_ip = $3
		 WHERE id = $1 AND revoked_at IS NULL AND expires_at > $2`,
		id, at, revokedByIP)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTokenNotActive
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
