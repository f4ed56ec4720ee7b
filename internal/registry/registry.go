// Package registry holds the live set of relay connections.
package registry

import (
	"sync"

	"github.com/samber/lo"
)

// Registry is a concurrency-safe set. Snapshot hands out a copy, so callers
// can iterate while members are admitted or removed elsewhere.
type Registry[C comparable] struct {
	mu      sync.RWMutex
	members map[C]struct{}
}

func New[C comparable]() *Registry[C] {
	return &Registry[C]{members: make(map[C]struct{})}
}

// Admit adds c to the set and returns the new size.
func (r *Registry[C]) Admit(c C) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[c] = struct{}{}
	return len(r.members)
}

// Remove deletes c from the set. Removing an absent member is a no-op;
// the return value reports whether c was present.
func (r *Registry[C]) Remove(c C) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[c]; !ok {
		return false
	}
	delete(r.members, c)
	return true
}

// Contains reports whether c is currently a member.
func (r *Registry[C]) Contains(c C) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[c]
	return ok
}

// Snapshot returns the members at this instant, in no particular order.
func (r *Registry[C]) Snapshot() []C {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.members)
}

func (r *Registry[C]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Drain removes and returns every member.
func (r *Registry[C]) Drain() []C {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := lo.Keys(r.members)
	r.members = make(map[C]struct{})
	return out
}
