package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/pscheid92/chatrelay/internal/domain"
)

var errBackendDown = errors.New("backend down")

// fakeBackend records every saved snapshot and can be told to fail.
type fakeBackend struct {
	mu       sync.Mutex
	loaded   domain.IdentitySnapshot
	loadErr  error
	saves    []domain.IdentitySnapshot
	attempts int
	failNext int  // fail this many upcoming saves
	failAll  bool // fail every save
}

func (f *fakeBackend) LoadSnapshot(context.Context) (domain.IdentitySnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.loaded.Clone(), nil
}

func (f *fakeBackend) SaveSnapshot(_ context.Context, snapshot domain.IdentitySnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failAll {
		return errBackendDown
	}
	if f.failNext > 0 {
		f.failNext--
		return errBackendDown
	}
	f.saves = append(f.saves, snapshot.Clone())
	return nil
}

func (f *fakeBackend) setFailAll(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = v
}

func (f *fakeBackend) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func (f *fakeBackend) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func (f *fakeBackend) lastSave() domain.IdentitySnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saves) == 0 {
		return nil
	}
	return f.saves[len(f.saves)-1]
}
