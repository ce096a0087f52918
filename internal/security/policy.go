package security

import (
	"context"

	"github.com/xrak-labs/sessiond/internal/session"
)

// FailurePolicy states what a check does when its backing store cannot answer.
// Denying erroneously is cheap to detect and retry; an outage that blocks all
// logins is far more damaging, so the gate checks fail open while session and
// CSRF validity fail closed.
type FailurePolicy int

const (
	// FailOpen permits the action when the dependency is unavailable.
	FailOpen FailurePolicy = iota
	// FailClosed denies the action when the dependency is unavailable.
	FailClosed
)

// AdminDecider answers admin-email allowlist membership.
type AdminDecider interface {
	IsAdminEmail(ctx context.Context, email string) (bool, error)
}

// IsAdmin is the single admin policy: a session is administrative when it
// carries the admin role, the fast-path boolean, or its email is on the
// separately-configured allowlist. The allowlist covers freshly-granted
// admins whose session roles are stale; an allowlist lookup failure is
// treated as non-admin.
func IsAdmin(ctx context.Context, sess *session.Session, allowlist AdminDecider) bool {
	if sess == nil || sess.Anonymous() {
		return false
	}
	if sess.IsAdmin || sess.HasRole(session.RoleAdmin) {
		return true
	}
	if allowlist == nil || sess.Email == "" {
		return false
	}
	ok, err := allowlist.IsAdminEmail(ctx, sess.Email)
	if err != nil {
		return false
	}
	return ok
}
