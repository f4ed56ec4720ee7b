package websocket

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	rateLimiterIdleTTL     = 10 * time.Minute
	rateLimiterSweepPeriod = 5 * time.Minute
)

// RejectReason describes why a connection attempt was refused.
type RejectReason string

const (
	RejectGlobal RejectReason = "global_limit"
	RejectPerIP  RejectReason = "per_ip_limit"
	RejectRate   RejectReason = "rate_limit"
	RejectOrigin RejectReason = "origin"
)

// StatusCode is the HTTP status sent back for a rejected upgrade.
func (r RejectReason) StatusCode() int {
	switch r {
	case RejectGlobal:
		return http.StatusServiceUnavailable
	case RejectOrigin:
		return http.StatusForbidden
	default:
		return http.StatusTooManyRequests
	}
}

type LimitsConfig struct {
	MaxConnections       int
	MaxConnectionsPerIP  int
	ConnectionsPerSecond float64
	Burst                int
}

// Limits gates new connections by a global cap, a per-address cap and a
// per-address token bucket.
type Limits struct {
	current atomic.Int64
	max     int64

	mu        sync.Mutex
	perIP     map[string]int
	maxPerIP  int
	buckets   map[string]*bucket
	rate      rate.Limit
	burst     int
	clock     clockwork.Clock
	nextSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLimits(cfg LimitsConfig, clock clockwork.Clock) *Limits {
	return &Limits{
		max:       int64(cfg.MaxConnections),
		perIP:     make(map[string]int),
		maxPerIP:  cfg.MaxConnectionsPerIP,
		buckets:   make(map[string]*bucket),
		rate:      rate.Limit(cfg.ConnectionsPerSecond),
		burst:     cfg.Burst,
		clock:     clock,
		nextSweep: clock.Now().Add(rateLimiterSweepPeriod),
	}
}

// Acquire reserves a connection slot for address. On success the caller must
// call Release once the connection ends.
func (l *Limits) Acquire(address string) (bool, RejectReason) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// rate first, it costs nothing to undo
	if !l.allowLocked(address) {
		return false, RejectRate
	}
	if !l.acquireGlobal() {
		return false, RejectGlobal
	}
	if l.perIP[address] >= l.maxPerIP {
		l.current.Add(-1)
		return false, RejectPerIP
	}
	l.perIP[address]++
	return true, ""
}

func (l *Limits) Release(address string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count := l.perIP[address]; count > 0 {
		if count == 1 {
			delete(l.perIP, address)
		} else {
			l.perIP[address] = count - 1
		}
		l.current.Add(-1)
	}
}

// Current returns the number of held slots.
func (l *Limits) Current() int64 {
	return l.current.Load()
}

// Count returns the number of slots held by address.
func (l *Limits) Count(address string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[address]
}

func (l *Limits) acquireGlobal() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// allowLocked must be called with mu held.
func (l *Limits) allowLocked(address string) bool {
	now := l.clock.Now()
	if now.After(l.nextSweep) {
		cutoff := now.Add(-rateLimiterIdleTTL)
		for key, b := range l.buckets {
			if b.lastSeen.Before(cutoff) {
				delete(l.buckets, key)
			}
		}
		l.nextSweep = now.Add(rateLimiterSweepPeriod)
	}

	b, ok := l.buckets[address]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[address] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}
