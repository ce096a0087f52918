package kv

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStoreFromClient(client), mr
}

func TestRedisStoreSetGetWithTTL(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	data, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v"), data)

	mr.FastForward(time.Minute + time.Second)

	_, found, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)
}

func TestRedisStoreMissingKey(t *testing.T) {
	store, _ := newTestRedisStore(t)

	_, found, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, found)
}

func TestRedisStoreSets(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.SAdd(ctx, "set", "a", "b"))

	ok, err := store.SIsMember(ctx, "set", "a")
	require.NoError(t, err)
	require.True(t, ok)

	members, err := store.SMembers(ctx, "set")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, members)

	require.NoError(t, store.SRem(ctx, "set", "a"))
	ok, err = store.SIsMember(ctx, "set", "a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisStoreFixedWindowCounter(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "rl", 5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.Equal(t, 5*time.Minute, ttl)

	// The window anchors on the first increment only.
	mr.FastForward(2 * time.Minute)
	count, ttl, err = store.IncrementWithTTL(ctx, "rl", 5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
	require.Equal(t, 3*time.Minute, ttl)

	// The counter resets once the window lapses.
	mr.FastForward(3*time.Minute + time.Second)
	count, ttl, err = store.IncrementWithTTL(ctx, "rl", 5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.Equal(t, 5*time.Minute, ttl)
}

func TestRedisStoreCounterRepairsLostExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	// A counter that survived without an expiry, as after a crash between
	// INCR and the first PEXPIRE.
	require.NoError(t, mr.Set("rl", "3"))
	require.Equal(t, time.Duration(0), mr.TTL("rl"))

	count, ttl, err := store.IncrementWithTTL(ctx, "rl", 5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(4), count)
	require.Equal(t, 5*time.Minute, ttl)
	require.Equal(t, 5*time.Minute, mr.TTL("rl"))

	// The repaired window expires normally.
	mr.FastForward(5*time.Minute + time.Second)
	count, _, err = store.IncrementWithTTL(ctx, "rl", 5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestRedisStoreDelete(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, store.Delete(ctx, "a", "b"))

	_, found, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, found)
}
