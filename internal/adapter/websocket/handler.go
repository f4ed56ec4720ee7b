package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatrelay/internal/adapter/metrics"
	"github.com/pscheid92/chatrelay/internal/relay"
)

const (
	pongWait        = 60 * time.Second
	closeWriteGrace = time.Second
)

type relayEngine interface {
	Connect(ctx context.Context, transport relay.Transport, address string) (*relay.Connection, error)
	OnMessage(conn *relay.Connection, payload []byte) int
	Disconnect(conn *relay.Connection, cause error)
}

type HandlerConfig struct {
	MaxMessageBytes int64
	AllowedOrigins  []string
	// Limits is optional; nil admits every connection.
	Limits  *Limits
	Clock   clockwork.Clock
	Metrics *metrics.RelayMetrics
}

// Handler upgrades requests to WebSocket connections and pumps inbound frames
// into the relay engine.
type Handler struct {
	engine          relayEngine
	upgrader        websocket.Upgrader
	limits          *Limits
	maxMessageBytes int64
	clock           clockwork.Clock
	metrics         *metrics.RelayMetrics
}

func NewHandler(engine relayEngine, cfg HandlerConfig) *Handler {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	h := &Handler{
		engine:          engine,
		limits:          cfg.Limits,
		maxMessageBytes: cfg.MaxMessageBytes,
		clock:           clock,
		metrics:         cfg.Metrics,
	}
	checkOrigin := NewCheckOrigin(cfg.AllowedOrigins)
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	address := ClientAddress(r)

	if !h.upgrader.CheckOrigin(r) {
		h.reject(w, address, RejectOrigin)
		return
	}

	if h.limits != nil {
		if ok, reason := h.limits.Acquire(address); !ok {
			h.reject(w, address, reason)
			return
		}
		defer h.limits.Release(address)
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written an error response
		slog.Debug("WebSocket upgrade failed", "address", address, "error", err)
		return
	}

	conn, err := h.engine.Connect(r.Context(), ws, address)
	if err != nil {
		slog.Warn("Connection refused by relay", "address", address, "error", err)
		closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")
		_ = ws.WriteControl(websocket.CloseMessage, closeMsg, h.clock.Now().Add(closeWriteGrace))
		_ = ws.Close()
		return
	}

	h.readLoop(ws, conn)
}

// readLoop runs until the connection fails or closes, then hands the cause to
// the engine. Disconnect is idempotent, so a close the engine initiated is fine.
func (h *Handler) readLoop(ws *websocket.Conn, conn *relay.Connection) {
	if h.maxMessageBytes > 0 {
		ws.SetReadLimit(h.maxMessageBytes)
	}
	h.extendReadDeadline(ws)
	ws.SetPongHandler(func(string) error {
		h.extendReadDeadline(ws)
		return nil
	})

	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			h.engine.Disconnect(conn, readError(err))
			return
		}
		h.extendReadDeadline(ws)
		h.engine.OnMessage(conn, payload)
	}
}

func (h *Handler) extendReadDeadline(ws *websocket.Conn) {
	_ = ws.SetReadDeadline(h.clock.Now().Add(pongWait))
}

func (h *Handler) reject(w http.ResponseWriter, address string, reason RejectReason) {
	if h.metrics != nil {
		h.metrics.RejectedConnections.WithLabelValues(string(reason)).Inc()
	}
	slog.Warn("Connection rejected", "address", address, "reason", string(reason))

	status := reason.StatusCode()
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	http.Error(w, http.StatusText(status), status)
}

// readError classifies a read failure. Ordinary client departures and our own
// closes are not errors.
func readError(err error) error {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure,
	) {
		return nil
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
