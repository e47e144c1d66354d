package telemetry

import (
	"context"
	"time"
)

// Record is a flattened audit or activity record mirrored to an external sink.
type Record struct {
	TenantID string
	UserID   string
	Action   string
	Resource string
	IP       string
	Metadata string
	Time     time.Time
}

// EventEmitter emits records (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, rec Record) error
}
