// Package handler serves event ingestion, listing and rollups over echo.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"tenant-rollups/backend/internal/event/domain"
	"tenant-rollups/backend/internal/event/service"
	"tenant-rollups/backend/internal/platform/metrics"
	"tenant-rollups/backend/internal/tenancy"
)

// Events is the event service consumed by the handler.
type Events interface {
	Ingest(ctx context.Context, in service.IngestInput) (*domain.Event, error)
	List(ctx context.Context, q domain.Query) ([]*domain.Event, error)
	Rollups(ctx context.Context, q domain.Query) ([]domain.Rollup, error)
}

// Handler serves /v1/events and /v1/rollups.
type Handler struct {
	events  Events
	metrics *metrics.Metrics
}

// NewHandler returns a Handler. m may be nil.
func NewHandler(events Events, m *metrics.Metrics) *Handler {
	return &Handler{events: events, metrics: m}
}

type ingestRequest struct {
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt *time.Time      `json:"occurred_at"`
}

type eventResponse struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	ActorKind  string          `json:"actor_kind"`
	ActorID    string          `json:"actor_id"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

func toResponse(e *domain.Event) eventResponse {
	return eventResponse{
		ID:         e.ID,
		Type:       e.Type,
		ActorKind:  e.ActorKind,
		ActorID:    e.ActorID,
		Payload:    e.Payload,
		OccurredAt: e.OccurredAt,
		CreatedAt:  e.CreatedAt,
	}
}

// Ingest handles POST /v1/events.
func (h *Handler) Ingest(c echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	in := service.IngestInput{Type: req.Type, Payload: req.Payload}
	if req.OccurredAt != nil {
		in.OccurredAt = *req.OccurredAt
	}
	e, err := h.events.Ingest(c.Request().Context(), in)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusCreated, toResponse(e))
}

// List handles GET /v1/events?type=&since=&until=&limit=&offset=.
func (h *Handler) List(c echo.Context) error {
	q, err := bindQuery(c)
	if err != nil {
		return err
	}
	events, err := h.events.List(c.Request().Context(), q)
	if err != nil {
		return h.mapError(err)
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, toResponse(e))
	}
	return c.JSON(http.StatusOK, echo.Map{"events": out})
}

// Rollups handles GET /v1/rollups?type=&since=&until=.
func (h *Handler) Rollups(c echo.Context) error {
	q, err := bindQuery(c)
	if err != nil {
		return err
	}
	rollups, err := h.events.Rollups(c.Request().Context(), q)
	if err != nil {
		return h.mapError(err)
	}
	if rollups == nil {
		rollups = []domain.Rollup{}
	}
	return c.JSON(http.StatusOK, echo.Map{"rollups": rollups})
}

func bindQuery(c echo.Context) (domain.Query, error) {
	var q domain.Query
	err := echo.QueryParamsBinder(c).
		String("type", &q.Type).
		Time("since", &q.Since, time.RFC3339).
		Time("until", &q.Until, time.RFC3339).
		Int("limit", &q.Limit).
		Int("offset", &q.Offset).
		BindError()
	if err != nil {
		return q, echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}
	if !q.Since.IsZero() && !q.Until.IsZero() && !q.Since.Before(q.Until) {
		return q, echo.NewHTTPError(http.StatusBadRequest, "since must be before until")
	}
	q.Normalize()
	return q, nil
}

func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, tenancy.ErrNoScope):
		h.metrics.RecordTenantContextMissing()
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrPayloadTooBig):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, domain.ErrInvalidType), errors.Is(err, domain.ErrInvalidPayload):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrCrossTenant):
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}
	return err
}
