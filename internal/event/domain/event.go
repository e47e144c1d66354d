package domain

import (
	"encoding/json"
	"errors"
	"regexp"
	"time"
)

const (
	// MaxPayloadBytes bounds the stored JSON payload of one event.
	MaxPayloadBytes = 64 << 10
	// DefaultListLimit and MaxListLimit bound List page sizes.
	DefaultListLimit = 50
	MaxListLimit     = 500
)

var (
	ErrInvalidType    = errors.New("event type must be 1-64 characters of a-z, 0-9, '.', '_' or '-'")
	ErrInvalidPayload = errors.New("event payload must be a JSON object")
	ErrPayloadTooBig  = errors.New("event payload too large")
	// ErrCrossTenant is returned when a write targets a tenant the filter does not admit.
	ErrCrossTenant = errors.New("event tenant does not match scope")
)

var typePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,63}$`)

// Event is one tenant-owned activity record.
type Event struct {
	ID         string
	TenantID   string
	Type       string
	ActorKind  string
	ActorID    string
	Payload    json.RawMessage
	OccurredAt time.Time
	CreatedAt  time.Time
}

// Rollup is the count of events of one type in a window.
type Rollup struct {
	Type  string `json:"event_type"`
	Count int64  `json:"count"`
}

// Query narrows List and CountByType. Zero times are unbounded.
type Query struct {
	Type   string
	Since  time.Time
	Until  time.Time
	Limit  int
	Offset int
}

// Normalize clamps the page size.
func (q *Query) Normalize() {
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	q.Limit = min(q.Limit, MaxListLimit)
	q.Offset = max(q.Offset, 0)
}

// ValidateType checks the event type name.
func ValidateType(t string) error {
	if !typePattern.MatchString(t) {
		return ErrInvalidType
	}
	return nil
}

// NormalizePayload returns the payload to store: "{}" when empty, the input when it is a JSON object.
func NormalizePayload(p json.RawMessage) (json.RawMessage, error) {
	if len(p) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if len(p) > MaxPayloadBytes {
		return nil, ErrPayloadTooBig
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(p, &obj); err != nil || obj == nil {
		return nil, ErrInvalidPayload
	}
	return p, nil
}
