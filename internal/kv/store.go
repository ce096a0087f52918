package kv

import (
	"context"
	"time"
)

// Store is the shared expiring key-value contract used by the session store,
// the rate limiter, and the security configuration service. All durable state
// lives behind this interface so the serving tier stays stateless.
type Store interface {
	// Get returns the value for key, reporting presence separately from errors.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key. A positive ttl bounds the key's lifetime;
	// ttl <= 0 stores without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes one or more keys, ignoring missing keys.
	Delete(ctx context.Context, keys ...string) error

	// SAdd adds members to the set stored at key.
	SAdd(ctx context.Context, key string, members ...string) error
	// SRem removes members from the set stored at key.
	SRem(ctx context.Context, key string, members ...string) error
	// SMembers returns every member of the set stored at key.
	SMembers(ctx context.Context, key string) ([]string, error)
	// SIsMember reports whether member belongs to the set stored at key.
	SIsMember(ctx context.Context, key, member string) (bool, error)

	// IncrementWithTTL increments the counter at key and, only when this is
	// the first increment of the window, pins the key's expiry to the window
	// length. Subsequent increments never extend the window.
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}
