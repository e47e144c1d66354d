package repository

import (
	"context"
	"sort"
	"sync"

	"tenant-rollups/backend/internal/event/domain"
	"tenant-rollups/backend/internal/tenancy"
)

// MemoryRepository keeps events in process. Service and handler tests use it in place of Postgres.
type MemoryRepository struct {
	mu     sync.RWMutex
	events []*domain.Event
}

// NewMemoryRepository returns an empty in-memory event store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Insert(ctx context.Context, f tenancy.Filter, e *domain.Event) error {
	if !f.Allows(e.TenantID) {
		return domain.ErrCrossTenant
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e2 := *e
	r.events = append(r.events, &e2)
	return nil
}

func (r *MemoryRepository) matching(f tenancy.Filter, q domain.Query) []*domain.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Event
	for _, e := range r.events {
		if !f.Allows(e.TenantID) {
			continue
		}
		if q.Type != "" && e.Type != q.Type {
			continue
		}
		if !q.Since.IsZero() && e.OccurredAt.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && !e.OccurredAt.Before(q.Until) {
			continue
		}
		e2 := *e
		out = append(out, &e2)
	}
	return out
}

func (r *MemoryRepository) List(ctx context.Context, f tenancy.Filter, q domain.Query) ([]*domain.Event, error) {
	q.Normalize()
	out := r.matching(f, q)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.After(out[j].OccurredAt)
		}
		return out[i].ID < out[j].ID
	})
	if q.Offset >= len(out) {
		return nil, nil
	}
	out = out[q.Offset:]
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *MemoryRepository) CountByType(ctx context.Context, f tenancy.Filter, q domain.Query) ([]domain.Rollup, error) {
	counts := make(map[string]int64)
	for _, e := range r.matching(f, q) {
		counts[e.Type]++
	}
	out := make([]domain.Rollup, 0, len(counts))
	for t, c := range counts {
		out = append(out, domain.Rollup{Type: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}
