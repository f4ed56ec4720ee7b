package redis

import (
	"context"
	"fmt"

	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/redis/go-redis/v9"
)

// IdentityStore keeps the identity snapshot in one Redis hash, field per
// address.
type IdentityStore struct {
	rdb *redis.Client
	key string
}

var _ domain.IdentitySnapshotStore = (*IdentityStore)(nil)

func NewIdentityStore(rdb *redis.Client, key string) *IdentityStore {
	return &IdentityStore{rdb: rdb, key: key}
}

func (s *IdentityStore) LoadSnapshot(ctx context.Context) (domain.IdentitySnapshot, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read identity hash: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrSnapshotNotFound
	}

	snapshot := make(domain.IdentitySnapshot, len(fields))
	for address, identity := range fields {
		snapshot[address] = domain.Identity(identity)
	}
	return snapshot, nil
}

// SaveSnapshot replaces the hash atomically.
func (s *IdentityStore) SaveSnapshot(ctx context.Context, snapshot domain.IdentitySnapshot) error {
	values := make(map[string]any, len(snapshot))
	for address, identity := range snapshot {
		values[address] = identity.String()
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(values) > 0 {
			pipe.HSet(ctx, s.key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write identity hash: %w", err)
	}
	return nil
}

func (s *IdentityStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
