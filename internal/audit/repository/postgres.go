package repository

import (
	"context"

	"tenant-rollups/backend/internal/audit/domain"
	"tenant-rollups/backend/internal/db"
	"tenant-rollups/backend/internal/tenancy"
)

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// Create persists one audit entry.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO audit_logs (id, tenant_id, user_id, action, resource, ip, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.TenantID, a.UserID, a.Action, a.Resource, a.IP, a.Metadata, a.CreatedAt)
	return err
}

// ListByTenant returns entries newest first.
func (r *PostgresRepository) ListByTenant(ctx context.Context, f tenancy.Filter, limit, offset int32) ([]*domain.AuditLog, error) {
	if f.DenyAll() {
		return nil, nil
	}
	pred, args := f.SQL("tenant_id", 1)
	args = append(args, limit, offset)
	rows, err := r.db.Query(ctx,
		`SELECT id, tenant_id, user_id, action, resource, ip, metadata, created_at
		 FROM audit_logs WHERE `+pred+` ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AuditLog
	for rows.Next() {
		var a domain.AuditLog
		if err := rows.Scan(&a.ID, &a.TenantID, &a.UserID, &a.Action, &a.Resource, &a.IP, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
