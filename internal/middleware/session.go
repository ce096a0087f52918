package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/xrak-labs/sessiond/internal/session"
	"github.com/xrak-labs/sessiond/pkg/errors"
	"github.com/xrak-labs/sessiond/pkg/response"
)

// SessionCookieName carries the opaque session id; nothing else ever enters
// the cookie.
const SessionCookieName = "sid"

const (
	// CtxSessionKey holds the resolved *session.Session.
	CtxSessionKey = "session"
	// CtxSessionIDKey holds the raw session id from the cookie.
	CtxSessionIDKey = "sessionID"
)

// ResolveSession loads the session referenced by the cookie into the request
// context. Missing, expired, or unreadable sessions leave the context empty;
// resolution itself never rejects a request.
func ResolveSession(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(SessionCookieName)
		if err == nil && sid != "" {
			c.Set(CtxSessionIDKey, sid)
			if sess, ok := store.Get(c.Request.Context(), sid); ok {
				c.Set(CtxSessionKey, sess)
			}
		}
		c.Next()
	}
}

// SessionFrom extracts the resolved session, if any.
func SessionFrom(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(CtxSessionKey)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*session.Session)
	return sess, ok
}

// SessionIDFrom extracts the cookie's session id, if any.
func SessionIDFrom(c *gin.Context) string {
	return c.GetString(CtxSessionIDKey)
}

// RequireUser rejects requests without a live authenticated session.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := SessionFrom(c)
		if !ok || sess.Anonymous() {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}
