package identity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/chatrelay/internal/adapter/metrics"
	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/pscheid92/chatrelay/internal/platform/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mutableSource is a thread-safe snapshot source for writer tests.
type mutableSource struct {
	mu   sync.Mutex
	snap domain.IdentitySnapshot
}

func (s *mutableSource) set(address string, identity domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		s.snap = make(domain.IdentitySnapshot)
	}
	s.snap[address] = identity
}

func (s *mutableSource) get() domain.IdentitySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

func newTestWriter(t *testing.T, backend *fakeBackend, cfg WriterConfig) (*Writer, *mutableSource, *metrics.IdentityMetrics) {
	t.Helper()
	source := &mutableSource{}
	m := metrics.NewIdentityMetrics(prometheus.NewRegistry())
	w := NewWriter(backend, source.get, m, cfg)
	t.Cleanup(func() { _ = w.Stop(context.Background()) })
	return w, source, m
}

func TestWriter_WritesLatestSnapshot(t *testing.T) {
	backend := &fakeBackend{}
	w, source, _ := newTestWriter(t, backend, testWriterConfig())

	source.set("1.2.3.4", "a")
	w.Notify()
	source.set("5.6.7.8", "b")
	w.Notify()

	require.Eventually(t, func() bool {
		return len(backend.lastSave()) == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, domain.IdentitySnapshot{"1.2.3.4": "a", "5.6.7.8": "b"}, backend.lastSave())
}

func TestWriter_NotifyNeverBlocks(t *testing.T) {
	backend := &fakeBackend{}
	w, source, _ := newTestWriter(t, backend, testWriterConfig())
	source.set("1.2.3.4", "a")

	done := make(chan struct{})
	go func() {
		for range 10_000 {
			w.Notify()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked")
	}

	require.NoError(t, w.Stop(context.Background()))
	assert.LessOrEqual(t, backend.saveCount(), 10_000)
	assert.Equal(t, domain.IdentitySnapshot{"1.2.3.4": "a"}, backend.lastSave())
}

func TestWriter_StopFlushesPendingWrite(t *testing.T) {
	backend := &fakeBackend{}
	w, source, _ := newTestWriter(t, backend, testWriterConfig())

	source.set("1.2.3.4", "a")
	w.Notify()
	require.NoError(t, w.Stop(context.Background()))

	assert.Equal(t, domain.IdentitySnapshot{"1.2.3.4": "a"}, backend.lastSave())
}

func TestWriter_StopIsIdempotent(t *testing.T) {
	w, _, _ := newTestWriter(t, &fakeBackend{}, testWriterConfig())

	require.NoError(t, w.Stop(context.Background()))
	require.NoError(t, w.Stop(context.Background()))
	w.Notify() // after stop: must not block or panic
}

func TestWriter_RetriesTransientFailure(t *testing.T) {
	backend := &fakeBackend{failNext: 2}
	cfg := testWriterConfig()
	cfg.Retry = retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}
	w, source, m := newTestWriter(t, backend, cfg)

	source.set("1.2.3.4", "a")
	w.Notify()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.SnapshotWrites.WithLabelValues("ok")) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 3, backend.attemptCount())
	assert.Zero(t, testutil.ToFloat64(m.SnapshotWrites.WithLabelValues("error")))
}

func TestWriter_BreakerSkipsWritesWhileOpen(t *testing.T) {
	backend := &fakeBackend{failAll: true}
	cfg := testWriterConfig()
	cfg.FailureThreshold = 2
	w, source, m := newTestWriter(t, backend, cfg)
	source.set("1.2.3.4", "a")

	for want := 1; want <= 2; want++ {
		w.Notify()
		require.Eventually(t, func() bool {
			return testutil.ToFloat64(m.SnapshotWrites.WithLabelValues("error")) == float64(want)
		}, time.Second, time.Millisecond)
	}

	w.Notify()
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.SnapshotWrites.WithLabelValues("skipped")) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 2, backend.attemptCount())
}

func TestWriter_StopForcesFlushAfterSkippedWrite(t *testing.T) {
	backend := &fakeBackend{failAll: true}
	cfg := testWriterConfig()
	cfg.FailureThreshold = 1
	w, source, m := newTestWriter(t, backend, cfg)
	source.set("1.2.3.4", "a")

	w.Notify()
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.SnapshotWrites.WithLabelValues("error")) == 1
	}, time.Second, time.Millisecond)

	backend.setFailAll(false)
	require.NoError(t, w.Stop(context.Background()))

	assert.Equal(t, domain.IdentitySnapshot{"1.2.3.4": "a"}, backend.lastSave())
}
