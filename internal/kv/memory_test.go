package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))

	data, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v"), data)

	require.NoError(t, store.Delete(ctx, "k"))
	_, found, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)

	now = now.Add(time.Minute + time.Second)
	_, found, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)
}

func TestMemoryStoreSets(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SAdd(ctx, "set", "a", "b"))
	require.NoError(t, store.SAdd(ctx, "set", "b", "c"))

	members, err := store.SMembers(ctx, "set")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b", "c"}, members)

	ok, err := store.SIsMember(ctx, "set", "b")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.SRem(ctx, "set", "b", "zzz"))
	ok, err = store.SIsMember(ctx, "set", "b")
	require.NoError(t, err)
	require.False(t, ok)

	members, err = store.SMembers(ctx, "empty")
	require.NoError(t, err)
	require.Empty(t, members)
}

func TestMemoryStoreIncrementWithTTL(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "rl", 5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.Equal(t, 5*time.Minute, ttl)

	// Later increments in the same window never extend it.
	now = now.Add(2 * time.Minute)
	count, ttl, err = store.IncrementWithTTL(ctx, "rl", 5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
	require.Equal(t, 3*time.Minute, ttl)

	// A new window starts from one once the old one lapses.
	now = now.Add(4 * time.Minute)
	count, ttl, err = store.IncrementWithTTL(ctx, "rl", 5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.Equal(t, 5*time.Minute, ttl)
}
