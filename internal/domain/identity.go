package domain

import "context"

// Identity is the opaque pseudonymous token assigned to a client address.
type Identity string

func (i Identity) String() string { return string(i) }

// IdentitySnapshot maps client addresses to their identity tokens.
type IdentitySnapshot map[string]Identity

// Clone returns an independent copy of the snapshot.
func (s IdentitySnapshot) Clone() IdentitySnapshot {
	out := make(IdentitySnapshot, len(s))
	for address, identity := range s {
		out[address] = identity
	}
	return out
}

// IdentitySnapshotStore persists the full address -> identity mapping.
// SaveSnapshot overwrites whatever was stored before.
// LoadSnapshot returns ErrSnapshotNotFound when nothing has been stored yet.
type IdentitySnapshotStore interface {
	LoadSnapshot(ctx context.Context) (IdentitySnapshot, error)
	SaveSnapshot(ctx context.Context, snapshot IdentitySnapshot) error
}

// IdentityResolver hands out stable identities for client addresses.
type IdentityResolver interface {
	ResolveOrAssign(ctx context.Context, address string) Identity
}
