package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatrelay/internal/adapter/metrics"
	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/pscheid92/chatrelay/internal/platform/correlation"
	"github.com/pscheid92/chatrelay/internal/registry"
)

const (
	defaultSendBufferSize = 64
	shutdownReason        = "Server shutting down"
)

type Options struct {
	// SendBufferSize is the number of envelopes queued per recipient before
	// further envelopes are dropped for it.
	SendBufferSize int
	// ExcludeSender keeps a message from being echoed back to its sender.
	ExcludeSender bool
	Clock         clockwork.Clock
	Metrics       *metrics.RelayMetrics
}

// Engine owns the live connections and fans inbound messages out to them.
type Engine struct {
	identities  domain.IdentityResolver
	connections *registry.Registry[*Connection]
	clock       clockwork.Clock
	metrics     *metrics.RelayMetrics
	bufferSize  int
	exclude     bool
	stopped     atomic.Bool
}

func NewEngine(identities domain.IdentityResolver, opts Options) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	bufferSize := opts.SendBufferSize
	if bufferSize <= 0 {
		bufferSize = defaultSendBufferSize
	}

	return &Engine{
		identities:  identities,
		connections: registry.New[*Connection](),
		clock:       clock,
		metrics:     opts.Metrics,
		bufferSize:  bufferSize,
		exclude:     opts.ExcludeSender,
	}
}

// Connect resolves the identity for address and admits the connection.
// The returned connection is OPEN.
func (e *Engine) Connect(ctx context.Context, transport Transport, address string) (*Connection, error) {
	if e.stopped.Load() {
		return nil, domain.ErrEngineStopped
	}

	conn := &Connection{id: correlation.NewID(), address: address}
	conn.state.Store(int32(StateConnecting))

	conn.identity = e.identities.ResolveOrAssign(ctx, address)
	conn.ctx = correlation.WithFields(context.WithoutCancel(ctx), correlation.Fields{
		ConnID:   conn.id,
		Identity: conn.identity.String(),
		Address:  address,
	})
	conn.writer = newClientWriter(transport, e.clock, e.bufferSize, e.metrics, func(err error) {
		e.Disconnect(conn, fmt.Errorf("write failed: %w", err))
	})

	conn.state.Store(int32(StateOpen))
	total := e.connections.Admit(conn)

	// Stop may have drained the registry between the check above and Admit.
	if e.stopped.Load() {
		e.Disconnect(conn, nil)
		return nil, domain.ErrEngineStopped
	}

	if e.metrics != nil {
		e.metrics.ConnectionsTotal.Inc()
		e.metrics.ActiveConnections.Set(float64(total))
	}
	slog.InfoContext(conn.ctx, "Client connected", "total_clients", total)
	return conn, nil
}

// OnMessage broadcasts payload from conn to every open connection and returns
// the number of recipients it was queued for. Messages on a connection that is
// not OPEN are discarded.
func (e *Engine) OnMessage(conn *Connection, payload []byte) int {
	if conn.State() != StateOpen {
		if e.metrics != nil {
			e.metrics.MessagesDiscarded.Inc()
		}
		slog.DebugContext(conn.ctx, "Discarding message on closed connection")
		return 0
	}
	if e.metrics != nil {
		e.metrics.MessagesReceived.Inc()
	}

	data, err := encodeEnvelope(domain.Envelope{From: conn.identity, Message: decodeText(payload)})
	if err != nil {
		slog.ErrorContext(conn.ctx, "Failed to marshal envelope", "error", err)
		return 0
	}

	queued := 0
	for _, recipient := range e.connections.Snapshot() {
		if e.exclude && recipient == conn {
			continue
		}
		if !recipient.IsOpen() {
			continue
		}
		if !recipient.writer.enqueue(data) {
			if e.metrics != nil {
				e.metrics.EnvelopesDropped.Inc()
			}
			slog.WarnContext(recipient.ctx, "Send buffer full, dropping envelope", "from", conn.identity.String())
			continue
		}
		queued++
	}
	return queued
}

// Disconnect moves conn to CLOSED and removes it from the registry. Only the
// first call has an effect; cause is logged when non-nil.
func (e *Engine) Disconnect(conn *Connection, cause error) {
	e.close(conn, cause, "")
}

func (e *Engine) close(conn *Connection, cause error, reason string) {
	conn.closeOnce.Do(func() {
		conn.state.Store(int32(StateClosed))
		e.connections.Remove(conn)

		if reason != "" {
			conn.writer.stopGraceful(reason)
		} else {
			conn.writer.stop()
		}

		remaining := e.connections.Len()
		if e.metrics != nil {
			e.metrics.ActiveConnections.Set(float64(remaining))
		}
		if cause != nil {
			if e.metrics != nil {
				e.metrics.ConnectionErrors.Inc()
			}
			slog.ErrorContext(conn.ctx, "Client connection error", "error", cause)
		}
		slog.InfoContext(conn.ctx, "Client disconnected", "remaining_clients", remaining)
	})
}

// Stop refuses new connections and closes every open one with a normal
// closure frame.
func (e *Engine) Stop() {
	if !e.stopped.CompareAndSwap(false, true) {
		return
	}

	conns := e.connections.Drain()
	slog.Info("Relay engine shutting down", "clients", len(conns))

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.close(conn, nil, shutdownReason)
		}()
	}
	wg.Wait()

	slog.Info("Relay engine shutdown complete", "disconnected_clients", len(conns))
}

// ConnectionCount returns the number of connections in the registry.
func (e *Engine) ConnectionCount() int {
	return e.connections.Len()
}

// decodeText turns a frame payload into text, replacing invalid UTF-8.
func decodeText(payload []byte) string {
	return strings.ToValidUTF8(string(payload), "�")
}

func encodeEnvelope(env domain.Envelope) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(env); err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
