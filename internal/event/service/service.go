// Package service ingests tenant events and serves rollups. Every call resolves the tenant from
// the request scope; nothing here accepts a tenant id from the caller.
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"tenant-rollups/backend/internal/event/domain"
	eventrepo "tenant-rollups/backend/internal/event/repository"
	"tenant-rollups/backend/internal/tenancy"
)

// IngestInput is one event as submitted by a client.
type IngestInput struct {
	Type       string
	Payload    json.RawMessage
	OccurredAt time.Time
}

// Service wraps the event repository with scope resolution and validation.
type Service struct {
	repo eventrepo.Repository
	now  func() time.Time
}

// NewService returns a Service over repo.
func NewService(repo eventrepo.Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Ingest records one event for the scoped tenant, attributed to the scoped actor.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (*domain.Event, error) {
	scope, err := tenancy.MustFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateType(in.Type); err != nil {
		return nil, err
	}
	payload, err := domain.NormalizePayload(in.Payload)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	occurred := in.OccurredAt.UTC()
	if in.OccurredAt.IsZero() {
		occurred = now
	}
	e := &domain.Event{
		ID:         uuid.New().String(),
		TenantID:   scope.TenantID,
		Type:       in.Type,
		ActorKind:  scope.Actor.Kind().String(),
		ActorID:    scope.Actor.ID(),
		Payload:    payload,
		OccurredAt: occurred,
		CreatedAt:  now,
	}
	if err := s.repo.Insert(ctx, tenancy.FilterFor(ctx), e); err != nil {
		return nil, err
	}
	return e, nil
}

// List returns the scoped tenant's events.
func (s *Service) List(ctx context.Context, q domain.Query) ([]*domain.Event, error) {
	if _, err := tenancy.MustFromContext(ctx); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, tenancy.FilterFor(ctx), q)
}

// Rollups returns per-type counts for the scoped tenant.
func (s *Service) Rollups(ctx context.Context, q domain.Query) ([]domain.Rollup, error) {
	if _, err := tenancy.MustFromContext(ctx); err != nil {
		return nil, err
	}
	return s.repo.CountByType(ctx, tenancy.FilterFor(ctx), q)
}
