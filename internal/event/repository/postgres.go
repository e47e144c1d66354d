package repository

import (
	"context"
	"strconv"
	"strings"

	"tenant-rollups/backend/internal/db"
	"tenant-rollups/backend/internal/event/domain"
	"tenant-rollups/backend/internal/tenancy"
)

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns an event repository that uses the given db for persistence.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// Insert persists one event.
func (r *PostgresRepository) Insert(ctx context.Context, f tenancy.Filter, e *domain.Event) error {
	if !f.Allows(e.TenantID) {
		return domain.ErrCrossTenant
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO events (id, tenant_id, event_type, actor_kind, actor_id, payload, occurred_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.TenantID, e.Type, e.ActorKind, e.ActorID, []byte(e.Payload), e.OccurredAt, e.CreatedAt)
	return err
}

// List returns a page of events admitted by f.
func (r *PostgresRepository) List(ctx context.Context, f tenancy.Filter, q domain.Query) ([]*domain.Event, error) {
	if f.DenyAll() {
		return nil, nil
	}
	q.Normalize()
	where, args := whereClause(f, q)
	args = append(args, q.Limit, q.Offset)
	n := len(args)
	rows, err := r.db.Query(ctx,
		`SELECT id, tenant_id, event_type, actor_kind, actor_id, payload, occurred_at, created_at
		 FROM events WHERE `+where+`
		 ORDER BY occurred_at DESC, id LIMIT $`+strconv.Itoa(n-1)+` OFFSET $`+strconv.Itoa(n), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var (
			e       domain.Event
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Type, &e.ActorKind, &e.ActorID, &payload, &e.OccurredAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = payload
		out = append(out, &e)
	}
	return out, rows.Err()
}

// CountByType aggregates events admitted by f.
func (r *PostgresRepository) CountByType(ctx context.Context, f tenancy.Filter, q domain.Query) ([]domain.Rollup, error) {
	if f.DenyAll() {
		return nil, nil
	}
	where, args := whereClause(f, q)
	rows, err := r.db.Query(ctx,
		`SELECT event_type, count(*) FROM events WHERE `+where+`
		 GROUP BY event_type ORDER BY count(*) DESC, event_type`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Rollup
	for rows.Next() {
		var ru domain.Rollup
		if err := rows.Scan(&ru.Type, &ru.Count); err != nil {
			return nil, err
		}
		out = append(out, ru)
	}
	return out, rows.Err()
}

// whereClause always leads with the tenant predicate.
func whereClause(f tenancy.Filter, q domain.Query) (string, []any) {
	pred, args := f.SQL("tenant_id", 1)
	conds := []string{pred}
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if q.Type != "" {
		conds = append(conds, "event_type = "+next(q.Type))
	}
	if !q.Since.IsZero() {
		conds = append(conds, "occurred_at >= "+next(q.Since))
	}
	if !q.Until.IsZero() {
		conds = append(conds, "occurred_at < "+next(q.Until))
	}
	return strings.Join(conds, " AND "), args
}
