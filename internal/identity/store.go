package identity

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/pscheid92/chatrelay/internal/adapter/metrics"
	"github.com/pscheid92/chatrelay/internal/domain"
)

// Store maps client addresses to identities and persists new assignments
// through a Writer.
type Store struct {
	mu         sync.Mutex
	identities domain.IdentitySnapshot

	backend domain.IdentitySnapshotStore
	writer  *Writer
	metrics *metrics.IdentityMetrics
}

var _ domain.IdentityResolver = (*Store)(nil)

// NewStore creates an empty store backed by backend and starts its writer.
// Call Load before serving traffic and Close on shutdown.
func NewStore(backend domain.IdentitySnapshotStore, m *metrics.IdentityMetrics, cfg WriterConfig) *Store {
	s := &Store{
		identities: make(domain.IdentitySnapshot),
		backend:    backend,
		metrics:    m,
	}
	s.writer = NewWriter(backend, s.Snapshot, m, cfg)
	return s
}

// Load replaces the in-memory mapping with the persisted snapshot.
// A missing or unreadable snapshot leaves the store empty; it never fails.
func (s *Store) Load(ctx context.Context) {
	snapshot, err := s.backend.LoadSnapshot(ctx)
	switch {
	case errors.Is(err, domain.ErrSnapshotNotFound):
		slog.Info("No identity snapshot found, starting with an empty mapping")
		snapshot = nil
	case err != nil:
		slog.Error("Failed to load identity snapshot, starting with an empty mapping", "error", err)
		snapshot = nil
	}

	loaded := make(domain.IdentitySnapshot, len(snapshot))
	for address, identity := range snapshot {
		if identity == "" {
			slog.Warn("Skipping empty identity in snapshot", "address", address)
			continue
		}
		// Mapped keys yield to an exact key for the same address.
		key := domain.CanonicalAddress(address)
		if _, taken := loaded[key]; taken && key != address {
			continue
		}
		loaded[key] = identity
	}

	s.mu.Lock()
	s.identities = loaded
	s.mu.Unlock()

	s.setKnown(len(loaded))
	if len(loaded) > 0 {
		slog.Info("Loaded identity snapshot", "identities", len(loaded))
	}
}

// ResolveOrAssign returns the identity for address, generating and recording
// a new one on first contact. Persistence of the new mapping happens
// asynchronously.
func (s *Store) ResolveOrAssign(ctx context.Context, address string) domain.Identity {
	s.mu.Lock()
	if identity, ok := s.identities[address]; ok {
		s.mu.Unlock()
		return identity
	}
	identity := domain.Identity(uuid.NewString())
	s.identities[address] = identity
	known := len(s.identities)
	s.mu.Unlock()

	s.setKnown(known)
	if s.metrics != nil {
		s.metrics.AssignmentsTotal.Inc()
	}
	slog.InfoContext(ctx, "New address assigned identity", "address", address, "identity", identity.String())

	s.writer.Notify()
	return identity
}

// Snapshot returns a copy of the current mapping.
func (s *Store) Snapshot() domain.IdentitySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identities.Clone()
}

// Len returns the number of known addresses.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.identities)
}

// Close stops the writer after flushing any pending snapshot.
func (s *Store) Close(ctx context.Context) error {
	return s.writer.Stop(ctx)
}

func (s *Store) setKnown(n int) {
	if s.metrics != nil {
		s.metrics.KnownIdentities.Set(float64(n))
	}
}
