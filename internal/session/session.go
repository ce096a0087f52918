package session

import (
	"time"

	"github.com/xrak-labs/sessiond/pkg/crypto"
)

// Role is a coarse authority label carried on a session.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
	RoleVIP   Role = "vip"
)

const sessionIDBytes = 32

// Session is the server-held record identifying one browsing context. The
// client only ever holds the opaque session id in a cookie; everything else
// stays in the shared store.
type Session struct {
	UserID      int64  `json:"user_id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Roles       []Role `json:"roles,omitempty"`
	IsAdmin     bool   `json:"is_admin,omitempty"`

	// CSRFSecret is generated once per session and never rotated on refresh.
	// It reaches the client only through the session bootstrap response.
	CSRFSecret string `json:"csrf_secret,omitempty"`

	UAHash string `json:"ua_hash,omitempty"`

	IssuedAt  int64 `json:"issued_at"`
	ExpiresAt int64 `json:"expires_at"`
}

// NewID returns a fresh unguessable session identifier.
func NewID() (string, error) {
	return crypto.GenerateToken(sessionIDBytes)
}

// Anonymous reports whether the session belongs to no authenticated user.
func (s Session) Anonymous() bool {
	return s.UserID <= 0
}

// Expired reports whether the session has passed its authoritative expiry.
// ExpiresAt wins over whatever the backing store's native TTL reports.
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt > 0 && now.Unix() >= s.ExpiresAt
}

// RemainingTTL returns the time left until expiry, never negative.
func (s Session) RemainingTTL(now time.Time) time.Duration {
	remaining := time.Duration(s.ExpiresAt-now.Unix()) * time.Second
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HasRole reports whether the session carries the given role.
func (s Session) HasRole(role Role) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Merge overlays the incoming session onto the receiver, preserving the
// idempotent fields: CSRFSecret and IssuedAt are kept from the existing
// record whenever already set, so a re-save never rotates them.
func (s Session) Merge(in Session) Session {
	out := in
	if s.CSRFSecret != "" {
		out.CSRFSecret = s.CSRFSecret
	}
	if s.IssuedAt != 0 {
		out.IssuedAt = s.IssuedAt
	}
	return out
}

// WithExtendedTTL returns a copy whose expiry is now+ttl.
func (s Session) WithExtendedTTL(now time.Time, ttl time.Duration) Session {
	out := s
	out.ExpiresAt = now.Add(ttl).Unix()
	return out
}
