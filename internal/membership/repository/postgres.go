package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tenant-rollups/backend/internal/db"
	"tenant-rollups/backend/internal/membership/domain"
)

const membershipColumns = `id, user_id, tenant_id, role, joined_at`

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a membership repository that uses the given db for persistence.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByUserAndTenant returns the membership for the given user and tenant, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByUserAndTenant(ctx context.Context, userID, tenantID string) (*domain.Membership, error) {
	m, err := scanMembership(r.db.QueryRow(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE user_id = $1 AND tenant_id = $2`,
		userID, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// ListByUser returns all memberships for the user ordered by joined_at then id. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Membership, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE user_id = $1 ORDER BY joined_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Create persists the membership to the database. The membership must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, m *domain.Membership) error {
	if !m.Role.Valid() {
		return domain.ErrUnknownRole
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO memberships (id, user_id, tenant_id, role, joined_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.UserID, m.TenantID, m.Role.String(), m.JoinedAt)
	if db.IsUniqueViolation(err, "memberships_user_tenant_key") {
		return domain.ErrAlreadyMember
	}
	return err
}

// UpdateRole changes the role of an existing membership.
func (r *PostgresRepository) UpdateRole(ctx context.Context, userID, tenantID string, role domain.Role) (*domain.Membership, error) {
	if !role.Valid() {
		return nil, domain.ErrUnknownRole
	}
	m, err := scanMembership(r.db.QueryRow(ctx,
		`UPDATE memberships SET role = $3 WHERE user_id = $1 AND tenant_id = $2 RETURNING `+membershipColumns,
		userID, tenantID, role.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func scanMembership(row pgx.Row) (*domain.Membership, error) {
	var (
		m    domain.Membership
		role string
	)
	if err := row.Scan(&m.ID, &m.UserID, &m.TenantID, &role, &m.JoinedAt); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("membership %s: %w", m.ID, err)
	}
	m.Role = parsed
	return &m, nil
}
