package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"tenant-rollups/backend/internal/telemetry"
)

// recordLogger is the subset of otellog.Logger used by the emitter.
type recordLogger interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends records as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return NewEventEmitterWithLogger(provider.Logger("rollups.audit"))
}

// NewEventEmitterWithLogger returns an EventEmitter writing to the given logger.
func NewEventEmitterWithLogger(l recordLogger) telemetry.EventEmitter {
	return &otelEmitter{logger: l}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, telemetry.Record) error { return nil }

type otelEmitter struct {
	logger recordLogger
}

// Emit converts the record to an OTel log record and emits it. Empty fields are omitted.
func (e *otelEmitter) Emit(ctx context.Context, r telemetry.Record) error {
	rec := otellog.Record{}
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetSeverity(otellog.SeverityInfo)
	if r.Metadata != "" {
		rec.SetBody(otellog.StringValue(r.Metadata))
	}
	for _, kv := range []struct{ key, val string }{
		{"tenant_id", r.TenantID},
		{"user_id", r.UserID},
		{"action", r.Action},
		{"resource", r.Resource},
		{"client_ip", r.IP},
	} {
		if kv.val != "" {
			rec.AddAttributes(otellog.String(kv.key, kv.val))
		}
	}
	e.logger.Emit(ctx, rec)
	return nil
}
