package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	require.NoError(t, err, "failed to create redis store")
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	store, _ := setupTestRedis(t)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestNewRedisStoreBadURL(t *testing.T) {
	_, err := NewRedisStore("not a url")
	assert.Error(t, err)
}

func TestSaveAndLookup(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	data := Data{OperatorID: "op_1", Email: "gift@example.com"}
	require.NoError(t, store.Save(ctx, "hash-1", data, time.Now().Add(time.Hour)))
	assert.True(t, s.Exists("journey:session:hash-1"), "expected prefixed key in redis")

	got, err := store.Lookup(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "op_1", got.OperatorID)
	assert.Equal(t, "gift@example.com", got.Email)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestLookupExpiredSession(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "expiring", Data{OperatorID: "op_1"}, time.Now().Add(time.Second)))
	s.FastForward(2 * time.Second)

	_, err := store.Lookup(ctx, "expiring")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevoke(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "to-revoke", Data{OperatorID: "op_1"}, time.Now().Add(time.Hour)))
	require.NoError(t, store.Revoke(ctx, "to-revoke"))
	_, err := store.Lookup(ctx, "to-revoke")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "h", Data{OperatorID: "op_1"}, now.Add(time.Minute)))
	_, err := store.Lookup(ctx, "h")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = store.Lookup(ctx, "h")
	assert.ErrorIs(t, err, ErrNotFound, "after expiry")

	_ = store.Save(ctx, "h2", Data{OperatorID: "op_1"}, now.Add(time.Minute))
	_ = store.Revoke(ctx, "h2")
	_, err = store.Lookup(ctx, "h2")
	assert.ErrorIs(t, err, ErrNotFound, "after revoke")
}
