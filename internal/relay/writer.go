package relay

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatrelay/internal/adapter/metrics"
)

const (
	writeDeadline = 5 * time.Second
	pingInterval  = 30 * time.Second
)

// Transport is the write side of a client connection. *websocket.Conn satisfies it.
type Transport interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type clientWriter struct {
	transport   Transport
	clock       clockwork.Clock
	metrics     *metrics.RelayMetrics
	sendChannel chan []byte
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	failed      atomic.Bool
	onFailure   func(error)
}

func newClientWriter(transport Transport, clock clockwork.Clock, bufferSize int, m *metrics.RelayMetrics, onFailure func(error)) *clientWriter {
	cw := &clientWriter{
		transport:   transport,
		clock:       clock,
		metrics:     m,
		sendChannel: make(chan []byte, bufferSize),
		doneChannel: make(chan struct{}),
		onFailure:   onFailure,
	}
	cw.wg.Add(1)
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cw.wg.Done()

	for {
		select {
		case msg := <-cw.sendChannel:
			cw.updateWriteDeadline()
			if err := cw.transport.WriteMessage(websocket.TextMessage, msg); err != nil {
				cw.fail(err)
				return
			}
			if cw.metrics != nil {
				cw.metrics.EnvelopesSent.Inc()
			}
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.transport.WriteMessage(websocket.PingMessage, nil); err != nil {
				cw.fail(err)
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

// fail marks the writer unusable and reports err. The callback runs on its own
// goroutine because it usually ends up in stop, which waits for run to exit.
func (cw *clientWriter) fail(err error) {
	if cw.stopped() {
		return
	}
	cw.failed.Store(true)
	if cw.onFailure != nil {
		go cw.onFailure(err)
	}
}

// enqueue hands msg to the writer without blocking. It returns false when the
// writer is stopped or its buffer is full.
func (cw *clientWriter) enqueue(msg []byte) bool {
	if !cw.writable() {
		return false
	}
	select {
	case cw.sendChannel <- msg:
		return true
	default:
		return false
	}
}

func (cw *clientWriter) writable() bool {
	return !cw.failed.Load() && !cw.stopped()
}

func (cw *clientWriter) stopped() bool {
	select {
	case <-cw.doneChannel:
		return true
	default:
		return false
	}
}

func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		_ = cw.transport.Close()
	})
	cw.wg.Wait()
}

// stopGraceful sends a close frame with reason before closing.
func (cw *clientWriter) stopGraceful(reason string) {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)

		// run must have exited before we write, the transport allows one writer
		cw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		cw.updateWriteDeadline()
		_ = cw.transport.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = cw.transport.Close()
	})
	cw.wg.Wait()
}

func (cw *clientWriter) updateWriteDeadline() {
	_ = cw.transport.SetWriteDeadline(cw.clock.Now().Add(writeDeadline))
}
