package redis

import (
	"context"
	"testing"

	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "chatrelay:test:identities"

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(context.Background(), "not a url", nil)
	assert.Error(t, err)
}

func TestIdentityStore_LoadMissing(t *testing.T) {
	store := NewIdentityStore(setupTestClient(t), testKey)

	_, err := store.LoadSnapshot(context.Background())

	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestIdentityStore_RoundTrip(t *testing.T) {
	store := NewIdentityStore(setupTestClient(t), testKey)
	ctx := context.Background()
	want := domain.IdentitySnapshot{"1.2.3.4": "a", "::1": "b"}

	require.NoError(t, store.SaveSnapshot(ctx, want))
	got, err := store.LoadSnapshot(ctx)

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestIdentityStore_SaveOverwrites(t *testing.T) {
	client := setupTestClient(t)
	store := NewIdentityStore(client, testKey)
	ctx := context.Background()

	require.NoError(t, store.SaveSnapshot(ctx, domain.IdentitySnapshot{"1.2.3.4": "a", "5.6.7.8": "b"}))
	require.NoError(t, store.SaveSnapshot(ctx, domain.IdentitySnapshot{"9.9.9.9": "c"}))

	got, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.IdentitySnapshot{"9.9.9.9": "c"}, got)
	assert.Equal(t, int64(1), client.HLen(ctx, testKey).Val())
}

func TestIdentityStore_SaveEmptyClears(t *testing.T) {
	store := NewIdentityStore(setupTestClient(t), testKey)
	ctx := context.Background()

	require.NoError(t, store.SaveSnapshot(ctx, domain.IdentitySnapshot{"1.2.3.4": "a"}))
	require.NoError(t, store.SaveSnapshot(ctx, domain.IdentitySnapshot{}))

	_, err := store.LoadSnapshot(ctx)
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestIdentityStore_Ping(t *testing.T) {
	store := NewIdentityStore(setupTestClient(t), testKey)

	assert.NoError(t, store.Ping(context.Background()))
}
