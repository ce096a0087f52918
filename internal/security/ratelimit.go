package security

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xrak-labs/sessiond/internal/kv"
)

const (
	emailCounterPrefix = "rl:login:email:"
	ipCounterPrefix    = "rl:login:ip:"
)

// RateCheckResult reports a login rate-limit decision with both counter values.
type RateCheckResult struct {
	Allowed    bool
	EmailCount int64
	IPCount    int64
}

// Limiter gates login attempts with fixed-window counters and the UA
// denylist. Both checks fail open: store unavailability must not turn into a
// login outage.
type Limiter struct {
	store  kv.Store
	config *ConfigService
	policy FailurePolicy
	log    *zap.Logger
}

// NewLimiter builds a login limiter. Production wiring passes FailOpen so a
// store outage never turns into a login outage.
func NewLimiter(store kv.Store, config *ConfigService, policy FailurePolicy, log *zap.Logger) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("limiter: kv store is required")
	}
	if config == nil {
		return nil, errors.New("limiter: config service is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Limiter{store: store, config: config, policy: policy, log: log}, nil
}

// CheckUserAgent reports whether the client's User-Agent is denylisted,
// consulting the hashed set and the raw set independently so a failure in
// one lookup cannot mask a hit in the other. Lookup errors follow the
// limiter's failure policy.
func (l *Limiter) CheckUserAgent(ctx context.Context, uaHash, rawUA string) bool {
	if uaHash != "" {
		hit, err := l.store.SIsMember(ctx, uaHashSetKey, uaHash)
		if err != nil {
			l.onStoreError("ua denylist hash lookup", err)
			if l.policy == FailClosed {
				return true
			}
		} else if hit {
			return true
		}
	}

	if rawUA != "" {
		hit, err := l.store.SIsMember(ctx, uaRawSetKey, rawUA)
		if err != nil {
			l.onStoreError("ua denylist raw lookup", err)
			if l.policy == FailClosed {
				return true
			}
		} else if hit {
			return true
		}
	}

	return false
}

// CheckLoginRateLimit increments the per-email and per-IP fixed-window
// counters and reports whether the attempt is still within both caps. The
// first increment of a window pins its expiry; later increments never extend
// it. Store errors follow the limiter's failure policy.
func (l *Limiter) CheckLoginRateLimit(ctx context.Context, email, ip string) RateCheckResult {
	cfg := l.config.RateLimit(ctx)
	window := time.Duration(cfg.WindowSeconds) * time.Second

	emailCount, _, err := l.store.IncrementWithTTL(ctx, emailCounterPrefix+email, window)
	if err != nil {
		l.onStoreError("email counter", err)
		return RateCheckResult{Allowed: l.policy == FailOpen}
	}

	ipCount, _, err := l.store.IncrementWithTTL(ctx, ipCounterPrefix+ip, window)
	if err != nil {
		l.onStoreError("ip counter", err)
		return RateCheckResult{Allowed: l.policy == FailOpen, EmailCount: emailCount}
	}

	return RateCheckResult{
		Allowed:    emailCount <= int64(cfg.MaxPerEmail) && ipCount <= int64(cfg.MaxPerIP),
		EmailCount: emailCount,
		IPCount:    ipCount,
	}
}

func (l *Limiter) onStoreError(op string, err error) {
	l.log.Warn("rate limiter store call failed",
		zap.String("op", op),
		zap.Error(err),
	)
}
