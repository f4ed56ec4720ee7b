package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pscheid92/chatrelay/internal/domain"
)

type frame struct {
	kind int
	data []byte
}

// fakeTransport records frames instead of writing them to a socket.
type fakeTransport struct {
	mu       sync.Mutex
	frames   []frame
	closed   bool
	writeErr error
	gate     chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

// newGatedTransport blocks every write until release is called.
func newGatedTransport() *fakeTransport {
	return &fakeTransport{gate: make(chan struct{})}
}

func (f *fakeTransport) release() { close(f.gate) }

func (f *fakeTransport) WriteMessage(kind int, data []byte) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("use of closed network connection")
	}
	if f.writeErr != nil {
		return f.writeErr
	}
	f.frames = append(f.frames, frame{kind: kind, data: append([]byte(nil), data...)})
	return nil
}

func (f *fakeTransport) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) failWrites(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) framesOf(kind int) []frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []frame
	for _, fr := range f.frames {
		if fr.kind == kind {
			out = append(out, fr)
		}
	}
	return out
}

func (f *fakeTransport) rawTexts() []string {
	var out []string
	for _, fr := range f.framesOf(websocket.TextMessage) {
		out = append(out, string(fr.data))
	}
	return out
}

func (f *fakeTransport) envelopes() []domain.Envelope {
	var out []domain.Envelope
	for _, fr := range f.framesOf(websocket.TextMessage) {
		var env domain.Envelope
		if err := json.Unmarshal(fr.data, &env); err != nil {
			panic(err)
		}
		out = append(out, env)
	}
	return out
}

// sequentialResolver hands out T1, T2, ... in first-contact order.
type sequentialResolver struct {
	mu    sync.Mutex
	known map[string]domain.Identity
}

func newSequentialResolver() *sequentialResolver {
	return &sequentialResolver{known: make(map[string]domain.Identity)}
}

func (r *sequentialResolver) ResolveOrAssign(_ context.Context, address string) domain.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.known[address]; ok {
		return id
	}
	id := domain.Identity(fmt.Sprintf("T%d", len(r.known)+1))
	r.known[address] = id
	return id
}
