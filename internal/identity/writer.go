package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/pscheid92/chatrelay/internal/adapter/metrics"
	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/pscheid92/chatrelay/internal/platform/retry"
)

// WriterConfig tunes snapshot persistence.
type WriterConfig struct {
	Retry            retry.Policy
	WriteTimeout     time.Duration
	FailureThreshold uint          // consecutive failed writes that open the breaker
	BreakerDelay     time.Duration // how long the breaker stays open
}

func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		Retry: retry.Policy{
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     time.Second,
		},
		WriteTimeout:     5 * time.Second,
		FailureThreshold: 3,
		BreakerDelay:     30 * time.Second,
	}
}

// Writer persists identity snapshots on a dedicated goroutine.
//
// Notify only marks the mapping dirty; the goroutine reads the latest snapshot
// from source when it gets to run, so a burst of assignments collapses into one
// write and a stale snapshot can never overwrite a newer one.
type Writer struct {
	backend domain.IdentitySnapshotStore
	source  func() domain.IdentitySnapshot
	metrics *metrics.IdentityMetrics
	cfg     WriterConfig
	breaker circuitbreaker.CircuitBreaker[any]

	// unsaved is only touched by the run goroutine.
	unsaved bool

	dirty    chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewWriter(backend domain.IdentitySnapshotStore, source func() domain.IdentitySnapshot, m *metrics.IdentityMetrics, cfg WriterConfig) *Writer {
	breaker := circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(cfg.FailureThreshold).
		WithDelay(cfg.BreakerDelay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Identity persistence circuit breaker state changed",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
		}).
		Build()

	w := &Writer{
		backend: backend,
		source:  source,
		metrics: m,
		cfg:     cfg,
		breaker: breaker,
		dirty:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Notify schedules a snapshot write. It never blocks.
func (w *Writer) Notify() {
	select {
	case w.dirty <- struct{}{}:
	default:
		// a write is already pending and will pick up the latest state
	}
}

// Stop flushes a pending write and waits for the goroutine to exit.
func (w *Writer) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.stop) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("identity writer stop: %w", ctx.Err())
	}
}

func (w *Writer) run() {
	defer close(w.done)

	for {
		select {
		case <-w.dirty:
			w.write(false)
		case <-w.stop:
			select {
			case <-w.dirty:
				w.unsaved = true
			default:
			}
			if w.unsaved {
				w.write(true)
			}
			return
		}
	}
}

// write persists the current snapshot. force bypasses an open breaker; it is
// used for the final flush on shutdown.
func (w *Writer) write(force bool) {
	permitted := w.breaker.TryAcquirePermit()
	if !permitted && !force {
		slog.Warn("Skipping identity snapshot write, circuit open")
		w.unsaved = true
		w.record("skipped")
		return
	}

	snapshot := w.source()

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := retry.DoVoid(ctx, w.cfg.Retry, retry.StopOnContext, func(ctx context.Context) error {
		return w.backend.SaveSnapshot(ctx, snapshot)
	})
	if w.metrics != nil {
		w.metrics.SnapshotWriteSeconds.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		if permitted {
			w.breaker.RecordError(err)
		}
		slog.Error("Failed to persist identity snapshot", "identities", len(snapshot), "error", err)
		w.unsaved = true
		w.record("error")
		return
	}

	if permitted {
		w.breaker.RecordSuccess()
	}
	w.unsaved = false
	slog.Debug("Persisted identity snapshot", "identities", len(snapshot))
	w.record("ok")
}

func (w *Writer) record(status string) {
	if w.metrics != nil {
		w.metrics.SnapshotWrites.WithLabelValues(status).Inc()
	}
}
