package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xrak-labs/sessiond/internal/kv"
)

const (
	sessionKeyPrefix = "sess:"
	userIndexPrefix  = "sessidx:user:"
)

// DefaultTTL is the fallback session lifetime when none is configured.
const DefaultTTL = time.Hour

// ErrInvalidSessionID marks a blank or malformed session id.
var ErrInvalidSessionID = errors.New("session: invalid session id")

// Store persists sessions in the shared expiring KV store and maintains the
// per-user index that backs device enumeration. All methods are safe for
// concurrent use; the only read-modify-write on a record is TTL renewal,
// which is idempotent under concurrent callers.
type Store struct {
	store kv.Store
	now   func() time.Time
	log   *zap.Logger
	ttl   time.Duration
}

// StoreConfig tunes the Store.
type StoreConfig struct {
	DefaultTTL time.Duration
	Clock      func() time.Time
	Logger     *zap.Logger
}

// NewStore builds a session store over the supplied KV adapter.
func NewStore(store kv.Store, cfg StoreConfig) (*Store, error) {
	if store == nil {
		return nil, errors.New("session store: kv store is required")
	}

	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Store{store: store, now: clock, log: log, ttl: ttl}, nil
}

// TTL exposes the configured full session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

func sessionKey(sid string) string {
	return sessionKeyPrefix + sid
}

func userIndexKey(userID int64) string {
	return userIndexPrefix + strconv.FormatInt(userID, 10)
}

// Get resolves a session id to its live record. An expired record is purged
// (with cascading index removal) and reported as absent. Store adapter errors
// are treated as absent too: session reads fail safe to logged-out, never to
// a user-visible failure.
func (s *Store) Get(ctx context.Context, sid string) (*Session, bool) {
	if sid == "" {
		return nil, false
	}

	data, found, err := s.store.Get(ctx, sessionKey(sid))
	if err != nil {
		s.log.Warn("session read failed, treating as absent", zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.log.Warn("session record corrupt, purging", zap.Error(err))
		_ = s.store.Delete(ctx, sessionKey(sid))
		return nil, false
	}

	if sess.Expired(s.now()) {
		s.Delete(ctx, sid)
		return nil, false
	}

	return &sess, true
}

// Set persists a session under sid. When ttl is positive the expiry becomes
// now+ttl, otherwise the incoming ExpiresAt is preserved. CSRFSecret and
// IssuedAt are filled only when absent so an idempotent re-save never rotates
// them. Authenticated sessions are added to the owning user's index.
func (s *Store) Set(ctx context.Context, sid string, sess Session, ttl time.Duration) error {
	if sid == "" {
		return ErrInvalidSessionID
	}

	now := s.now()

	if existing, ok := s.Get(ctx, sid); ok {
		sess = existing.Merge(sess)
	}

	if sess.CSRFSecret == "" {
		secret, err := GenerateCSRFSecret()
		if err != nil {
			return fmt.Errorf("session store: generate csrf secret: %w", err)
		}
		sess.CSRFSecret = secret
	}
	if sess.IssuedAt == 0 {
		sess.IssuedAt = now.Unix()
	}
	if ttl > 0 {
		sess.ExpiresAt = now.Add(ttl).Unix()
	} else if sess.ExpiresAt == 0 {
		sess.ExpiresAt = now.Add(s.ttl).Unix()
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session store: marshal: %w", err)
	}

	native := time.Duration(sess.ExpiresAt-now.Unix()) * time.Second
	if native <= 0 {
		native = time.Second
	}

	if err := s.store.Set(ctx, sessionKey(sid), payload, native); err != nil {
		return fmt.Errorf("session store: save: %w", err)
	}

	// Index update follows the record write in the same logical operation.
	// A crash between the two leaves a dangling id that ListUserSessions
	// self-heals.
	if sess.UserID > 0 {
		if err := s.store.SAdd(ctx, userIndexKey(sess.UserID), sid); err != nil {
			s.log.Warn("session index add failed", zap.Int64("user_id", sess.UserID), zap.Error(err))
		}
	}

	return nil
}

// Touch re-saves a live session with its remaining TTL. Renewal never
// slides the expiry; only login grants the full window.
func (s *Store) Touch(ctx context.Context, sid string, sess Session) error {
	remaining := sess.RemainingTTL(s.now())
	if remaining <= 0 {
		return nil
	}
	return s.Set(ctx, sid, sess, 0)
}

// Delete removes a session. The record is read first (best effort) so the
// per-user index can be cleaned up; record removal is never blocked by index
// errors.
func (s *Store) Delete(ctx context.Context, sid string) {
	if sid == "" {
		return
	}

	var owner int64
	if data, found, err := s.store.Get(ctx, sessionKey(sid)); err == nil && found {
		var sess Session
		if json.Unmarshal(data, &sess) == nil {
			owner = sess.UserID
		}
	}

	if err := s.store.Delete(ctx, sessionKey(sid)); err != nil {
		s.log.Warn("session delete failed", zap.Error(err))
	}

	if owner > 0 {
		if err := s.store.SRem(ctx, userIndexKey(owner), sid); err != nil {
			s.log.Warn("session index remove failed", zap.Int64("user_id", owner), zap.Error(err))
		}
	}
}

// ListUserSessionIDs returns the raw index contents for a user.
func (s *Store) ListUserSessionIDs(ctx context.Context, userID int64) ([]string, error) {
	if userID <= 0 {
		return nil, nil
	}
	ids, err := s.store.SMembers(ctx, userIndexKey(userID))
	if err != nil {
		return nil, fmt.Errorf("session store: list index: %w", err)
	}
	return ids, nil
}

// UserSession pairs a session id with its resolved record.
type UserSession struct {
	ID      string
	Session Session
}

// ListUserSessions resolves each indexed id to its live session, dropping and
// unindexing ids whose record has independently expired. This is the
// self-healing path for dangling index entries.
func (s *Store) ListUserSessions(ctx context.Context, userID int64) ([]UserSession, error) {
	ids, err := s.ListUserSessionIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	sessions := make([]UserSession, 0, len(ids))
	for _, sid := range ids {
		sess, ok := s.Get(ctx, sid)
		if !ok {
			if remErr := s.store.SRem(ctx, userIndexKey(userID), sid); remErr != nil {
				s.log.Warn("dangling session index cleanup failed", zap.Error(remErr))
			}
			continue
		}
		sessions = append(sessions, UserSession{ID: sid, Session: *sess})
	}
	return sessions, nil
}

// RevokeAll deletes every live session belonging to a user and returns the
// revoked ids. Individual failures are aggregated rather than aborting the
// sweep.
func (s *Store) RevokeAll(ctx context.Context, userID int64) ([]string, error) {
	ids, err := s.ListUserSessionIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	var errs error
	revoked := make([]string, 0, len(ids))
	for _, sid := range ids {
		if _, ok := s.Get(ctx, sid); !ok {
			// Already gone; Get purged it and cascaded the index.
			continue
		}
		if delErr := s.store.Delete(ctx, sessionKey(sid)); delErr != nil {
			errs = multierr.Append(errs, delErr)
			continue
		}
		if remErr := s.store.SRem(ctx, userIndexKey(userID), sid); remErr != nil {
			errs = multierr.Append(errs, remErr)
		}
		revoked = append(revoked, sid)
	}
	return revoked, errs
}
