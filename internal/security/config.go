package security

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xrak-labs/sessiond/internal/kv"
)

const (
	uaHashSetKey     = "security:ua:blacklist"
	uaRawSetKey      = "security:ua:blacklist:raw"
	rateLimitCfgKey  = "security:rl:login:config"
	adminEmailSetKey = "security:admin:emails"
)

// RateLimitConfig holds the login rate-limit thresholds.
type RateLimitConfig struct {
	WindowSeconds int `json:"window_seconds"`
	MaxPerIP      int `json:"max_per_ip"`
	MaxPerEmail   int `json:"max_per_email"`
}

// UADenylist carries both denylist variants: hashed fingerprints and raw
// User-Agent strings. The two sets are unioned at check time.
type UADenylist struct {
	Hashes []string `json:"hashes"`
	Raw    []string `json:"raw"`
}

// ConfigService reads and writes security configuration held in the shared
// store so threshold changes take effect without a process restart. Static
// defaults (from file/env configuration) back every read when the store has
// no value or is unreachable.
type ConfigService struct {
	store          kv.Store
	defaults       RateLimitConfig
	fallbackAdmins map[string]struct{}
}

// NewConfigService builds the service. fallbackAdminEmails supplements the
// store-held allowlist so a wiped store cannot lock every operator out.
func NewConfigService(store kv.Store, defaults RateLimitConfig, fallbackAdminEmails []string) (*ConfigService, error) {
	if store == nil {
		return nil, errors.New("security config: kv store is required")
	}
	if defaults.WindowSeconds <= 0 {
		defaults.WindowSeconds = 300
	}
	if defaults.MaxPerIP <= 0 {
		defaults.MaxPerIP = 5
	}
	if defaults.MaxPerEmail <= 0 {
		defaults.MaxPerEmail = 5
	}

	admins := make(map[string]struct{}, len(fallbackAdminEmails))
	for _, email := range fallbackAdminEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			admins[email] = struct{}{}
		}
	}

	return &ConfigService{store: store, defaults: defaults, fallbackAdmins: admins}, nil
}

// RateLimit returns the effective login rate-limit config: the store value
// when present and sane, otherwise the static defaults.
func (s *ConfigService) RateLimit(ctx context.Context) RateLimitConfig {
	data, found, err := s.store.Get(ctx, rateLimitCfgKey)
	if err != nil || !found {
		return s.defaults
	}

	var cfg RateLimitConfig
	if json.Unmarshal(data, &cfg) != nil {
		return s.defaults
	}
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = s.defaults.WindowSeconds
	}
	if cfg.MaxPerIP <= 0 {
		cfg.MaxPerIP = s.defaults.MaxPerIP
	}
	if cfg.MaxPerEmail <= 0 {
		cfg.MaxPerEmail = s.defaults.MaxPerEmail
	}
	return cfg
}

// SetRateLimit persists new thresholds. The value has no expiry; it is
// configuration, not state.
func (s *ConfigService) SetRateLimit(ctx context.Context, cfg RateLimitConfig) error {
	if cfg.WindowSeconds <= 0 || cfg.MaxPerIP <= 0 || cfg.MaxPerEmail <= 0 {
		return errors.New("security config: thresholds must be positive")
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("security config: marshal rate limit: %w", err)
	}
	return s.store.Set(ctx, rateLimitCfgKey, payload, 0)
}

// UADenylist lists both denylist sets. Store errors yield empty sets so an
// outage never turns the denylist into an accidental block-all.
func (s *ConfigService) UADenylist(ctx context.Context) UADenylist {
	list := UADenylist{Hashes: []string{}, Raw: []string{}}
	if hashes, err := s.store.SMembers(ctx, uaHashSetKey); err == nil {
		list.Hashes = hashes
	}
	if raw, err := s.store.SMembers(ctx, uaRawSetKey); err == nil {
		list.Raw = raw
	}
	return list
}

// AddUADenylist inserts entries into the relevant sets, skipping blanks.
func (s *ConfigService) AddUADenylist(ctx context.Context, entries UADenylist) error {
	if hashes := compactEntries(entries.Hashes); len(hashes) > 0 {
		if err := s.store.SAdd(ctx, uaHashSetKey, hashes...); err != nil {
			return fmt.Errorf("security config: add ua hashes: %w", err)
		}
	}
	if raw := compactEntries(entries.Raw); len(raw) > 0 {
		if err := s.store.SAdd(ctx, uaRawSetKey, raw...); err != nil {
			return fmt.Errorf("security config: add raw uas: %w", err)
		}
	}
	return nil
}

// RemoveUADenylist deletes entries from the relevant sets.
func (s *ConfigService) RemoveUADenylist(ctx context.Context, entries UADenylist) error {
	if hashes := compactEntries(entries.Hashes); len(hashes) > 0 {
		if err := s.store.SRem(ctx, uaHashSetKey, hashes...); err != nil {
			return fmt.Errorf("security config: remove ua hashes: %w", err)
		}
	}
	if raw := compactEntries(entries.Raw); len(raw) > 0 {
		if err := s.store.SRem(ctx, uaRawSetKey, raw...); err != nil {
			return fmt.Errorf("security config: remove raw uas: %w", err)
		}
	}
	return nil
}

// IsAdminEmail reports allowlist membership, consulting the store first and
// the static fallback list second.
func (s *ConfigService) IsAdminEmail(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false, nil
	}

	hit, err := s.store.SIsMember(ctx, adminEmailSetKey, email)
	if err == nil && hit {
		return true, nil
	}

	if _, ok := s.fallbackAdmins[email]; ok {
		return true, nil
	}
	return false, err
}

// AddAdminEmail grants the allowlist entry in the store.
func (s *ConfigService) AddAdminEmail(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return errors.New("security config: email is required")
	}
	return s.store.SAdd(ctx, adminEmailSetKey, email)
}

func compactEntries(entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
