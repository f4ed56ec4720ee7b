package relay

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pscheid92/chatrelay/internal/domain"
)

type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection is one client session owned by the Engine.
type Connection struct {
	id       string
	identity domain.Identity
	address  string
	ctx      context.Context

	state     atomic.Int32
	writer    *clientWriter
	closeOnce sync.Once
}

func (c *Connection) ID() string                { return c.id }
func (c *Connection) Identity() domain.Identity { return c.identity }
func (c *Connection) Address() string           { return c.address }

// Context carries the connection's log fields.
func (c *Connection) Context() context.Context { return c.ctx }

func (c *Connection) State() State { return State(c.state.Load()) }

// IsOpen reports whether the connection accepts outbound envelopes.
func (c *Connection) IsOpen() bool {
	return c.State() == StateOpen && c.writer.writable()
}
