package kv

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xrak-labs/sessiond/pkg/metrics"
)

// Failover routes calls to a primary Store until the first primary failure,
// then permanently switches the process to an in-memory fallback. Degraded
// mode trades cross-process visibility for availability: sessions created
// locally keep working, other instances will not see them. The adapter never
// reconnects on its own; an operator restart is the recovery path.
type Failover struct {
	primary  Store
	fallback Store
	degraded atomic.Bool
	once     sync.Once
	log      *zap.Logger
}

// NewFailover pairs a primary store with an in-memory fallback. A nil
// primary starts the adapter already degraded, which lets the process boot
// when the store is unreachable at startup.
func NewFailover(primary Store, log *zap.Logger) *Failover {
	if log == nil {
		log = zap.NewNop()
	}
	f := &Failover{
		primary:  primary,
		fallback: NewMemoryStore(),
		log:      log,
	}
	if primary == nil {
		f.trip(errors.New("no primary store configured"))
	}
	return f
}

// Degraded reports whether the adapter has switched to the fallback.
func (f *Failover) Degraded() bool {
	return f.degraded.Load()
}

// callerCancelled distinguishes a client disconnect from a store outage so an
// aborted request cannot trip degraded mode.
func callerCancelled(ctx context.Context, err error) bool {
	return ctx != nil && ctx.Err() != nil && errors.Is(err, ctx.Err())
}

func (f *Failover) trip(err error) {
	f.once.Do(func() {
		f.degraded.Store(true)
		metrics.StoreDegraded.Set(1)
		f.log.Error("primary store unreachable, switching to in-memory fallback for process lifetime",
			zap.Error(err),
		)
	})
}

func (f *Failover) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !f.degraded.Load() {
		data, found, err := f.primary.Get(ctx, key)
		if err == nil {
			return data, found, nil
		}
		if callerCancelled(ctx, err) {
			return nil, false, err
		}
		f.trip(err)
	}
	return f.fallback.Get(ctx, key)
}

func (f *Failover) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !f.degraded.Load() {
		err := f.primary.Set(ctx, key, value, ttl)
		if err == nil {
			return nil
		}
		if callerCancelled(ctx, err) {
			return err
		}
		f.trip(err)
	}
	return f.fallback.Set(ctx, key, value, ttl)
}

func (f *Failover) Delete(ctx context.Context, keys ...string) error {
	if !f.degraded.Load() {
		err := f.primary.Delete(ctx, keys...)
		if err == nil {
			return nil
		}
		if callerCancelled(ctx, err) {
			return err
		}
		f.trip(err)
	}
	return f.fallback.Delete(ctx, keys...)
}

func (f *Failover) SAdd(ctx context.Context, key string, members ...string) error {
	if !f.degraded.Load() {
		err := f.primary.SAdd(ctx, key, members...)
		if err == nil {
			return nil
		}
		if callerCancelled(ctx, err) {
			return err
		}
		f.trip(err)
	}
	return f.fallback.SAdd(ctx, key, members...)
}

func (f *Failover) SRem(ctx context.Context, key string, members ...string) error {
	if !f.degraded.Load() {
		err := f.primary.SRem(ctx, key, members...)
		if err == nil {
			return nil
		}
		if callerCancelled(ctx, err) {
			return err
		}
		f.trip(err)
	}
	return f.fallback.SRem(ctx, key, members...)
}

func (f *Failover) SMembers(ctx context.Context, key string) ([]string, error) {
	if !f.degraded.Load() {
		members, err := f.primary.SMembers(ctx, key)
		if err == nil {
			return members, nil
		}
		if callerCancelled(ctx, err) {
			return nil, err
		}
		f.trip(err)
	}
	return f.fallback.SMembers(ctx, key)
}

func (f *Failover) SIsMember(ctx context.Context, key, member string) (bool, error) {
	if !f.degraded.Load() {
		hit, err := f.primary.SIsMember(ctx, key, member)
		if err == nil {
			return hit, nil
		}
		if callerCancelled(ctx, err) {
			return false, err
		}
		f.trip(err)
	}
	return f.fallback.SIsMember(ctx, key, member)
}

func (f *Failover) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if !f.degraded.Load() {
		count, ttl, err := f.primary.IncrementWithTTL(ctx, key, window)
		if err == nil {
			return count, ttl, nil
		}
		if callerCancelled(ctx, err) {
			return 0, 0, err
		}
		f.trip(err)
	}
	return f.fallback.IncrementWithTTL(ctx, key, window)
}
