package telemetry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single background task when none is configured.
const DefaultTimeout = 5 * time.Second

// Background runs best-effort tasks off the request path. Each task gets a context detached
// from the request, bounded by the configured timeout. Errors are logged, never returned.
// Drain waits for in-flight tasks during shutdown.
type Background struct {
	wg      sync.WaitGroup
	timeout time.Duration
	log     *zap.Logger
}

// NewBackground returns a runner. timeout <= 0 uses DefaultTimeout; log may be nil.
func NewBackground(timeout time.Duration, log *zap.Logger) *Background {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Background{timeout: timeout, log: log}
}

// Go starts fn in a goroutine. A nil receiver or fn is a no-op.
func (b *Background) Go(name string, fn func(ctx context.Context) error) {
	if b == nil || fn == nil {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			b.log.Warn("background task failed", zap.String("task", name), zap.Error(err))
		}
	}()
}

// Drain blocks until all started tasks finish or ctx is done.
func (b *Background) Drain(ctx context.Context) error {
	if b == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EmitAsync emits rec on the runner. emitter may be nil; then nothing is started.
func (b *Background) EmitAsync(emitter EventEmitter, rec Record) {
	if emitter == nil {
		return
	}
	b.Go("emit:"+rec.Action, func(ctx context.Context) error {
		return emitter.Emit(ctx, rec)
	})
}
