package badger

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/pscheid92/chatrelay/internal/domain"
)

const keyPrefix = "identity:"

// IdentityStore keeps one key per address under keyPrefix.
type IdentityStore struct {
	db *badger.DB
}

var _ domain.IdentitySnapshotStore = (*IdentityStore)(nil)

func NewIdentityStore(db *badger.DB) *IdentityStore {
	return &IdentityStore{db: db}
}

func (s *IdentityStore) LoadSnapshot(_ context.Context) (domain.IdentitySnapshot, error) {
	snapshot := make(domain.IdentitySnapshot)

	err := s.db.View(func(txn *badger.Txn) error {
		existing, err := readAll(txn)
		if err != nil {
			return err
		}
		for address, identity := range existing {
			snapshot[address] = domain.Identity(identity)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read identities: %w", err)
	}

	if len(snapshot) == 0 {
		return nil, domain.ErrSnapshotNotFound
	}
	return snapshot, nil
}

// SaveSnapshot makes the stored keys match snapshot, touching only keys that
// changed.
func (s *IdentityStore) SaveSnapshot(_ context.Context, snapshot domain.IdentitySnapshot) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		existing, err := readAll(txn)
		if err != nil {
			return err
		}

		for address := range existing {
			if _, keep := snapshot[address]; !keep {
				if err := txn.Delete(key(address)); err != nil {
					return err
				}
			}
		}
		for address, identity := range snapshot {
			if existing[address] == identity.String() {
				continue
			}
			if err := txn.Set(key(address), []byte(identity)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write identities: %w", err)
	}
	return nil
}

// Ping reports whether the database is still open.
func (s *IdentityStore) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return fmt.Errorf("badger database is closed")
	}
	return nil
}

func key(address string) []byte {
	return []byte(keyPrefix + address)
}

func readAll(txn *badger.Txn) (map[string]string, error) {
	prefix := []byte(keyPrefix)
	out := make(map[string]string)

	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		address := string(bytes.TrimPrefix(item.Key(), prefix))
		if err := item.Value(func(v []byte) error {
			out[address] = string(v)
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to read value for %q: %w", address, err)
		}
	}
	return out, nil
}
