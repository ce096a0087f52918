package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/xrak-labs/sessiond/internal/security"
	"github.com/xrak-labs/sessiond/pkg/errors"
	"github.com/xrak-labs/sessiond/pkg/response"
)

// RequireAdmin gates a route on the combined admin policy: session role,
// fast-path flag, or admin-email allowlist. Anonymous or missing sessions
// are unauthorized; authenticated non-admins are forbidden.
func RequireAdmin(allowlist security.AdminDecider) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := SessionFrom(c)
		if !ok || sess.Anonymous() {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		if !security.IsAdmin(c.Request.Context(), sess, allowlist) {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}
