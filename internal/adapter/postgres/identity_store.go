package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/chatrelay/internal/domain"
)

// IdentityStore keeps the identity snapshot in the client_identities table.
type IdentityStore struct {
	pool *pgxpool.Pool
}

var _ domain.IdentitySnapshotStore = (*IdentityStore)(nil)

func NewIdentityStore(pool *pgxpool.Pool) *IdentityStore {
	return &IdentityStore{pool: pool}
}

func (s *IdentityStore) LoadSnapshot(ctx context.Context) (domain.IdentitySnapshot, error) {
	rows, err := s.pool.Query(ctx, `SELECT address, identity FROM client_identities`)
	if err != nil {
		return nil, fmt.Errorf("failed to query identities: %w", err)
	}
	defer rows.Close()

	snapshot := make(domain.IdentitySnapshot)
	var address, identity string
	if _, err := pgx.ForEachRow(rows, []any{&address, &identity}, func() error {
		snapshot[address] = domain.Identity(identity)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to read identities: %w", err)
	}

	if len(snapshot) == 0 {
		return nil, domain.ErrSnapshotNotFound
	}
	return snapshot, nil
}

// SaveSnapshot replaces the table contents in one transaction. Rows for
// addresses that keep their identity retain their assigned_at.
func (s *IdentityStore) SaveSnapshot(ctx context.Context, snapshot domain.IdentitySnapshot) error {
	addresses := make([]string, 0, len(snapshot))
	identities := make([]string, 0, len(snapshot))
	for address, identity := range snapshot {
		addresses = append(addresses, address)
		identities = append(identities, identity.String())
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM client_identities c
			WHERE NOT EXISTS (
				SELECT 1 FROM unnest($1::text[], $2::text[]) AS s(address, identity)
				WHERE s.address = c.address AND s.identity = c.identity
			)`, addresses, identities); err != nil {
			return fmt.Errorf("failed to prune identities: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO client_identities (address, identity)
			SELECT address, identity FROM unnest($1::text[], $2::text[]) AS s(address, identity)
			ON CONFLICT (address) DO NOTHING`, addresses, identities); err != nil {
			return fmt.Errorf("failed to insert identities: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save identity snapshot: %w", err)
	}
	return nil
}

func (s *IdentityStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
