package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xrak-labs/sessiond/internal/session"
	"github.com/xrak-labs/sessiond/pkg/errors"
	"github.com/xrak-labs/sessiond/pkg/logger"
	"github.com/xrak-labs/sessiond/pkg/response"
)

var unsafeMethods = map[string]struct{}{
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
}

// CSRF enforces the session-bound token on unsafe methods. It must run after
// session resolution and before any state mutation. A failure is a uniform
// forbidden outcome: it never reveals whether the session existed.
func CSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isUnsafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		token := session.ExtractCSRFToken(c.Request.Header)

		var secret string
		if sess, ok := SessionFrom(c); ok {
			secret = sess.CSRFSecret
		}

		if !session.ValidateCSRF(secret, token) {
			logger.WithModule("csrf").Warn("csrf validation failed",
				// Never log token or secret contents
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Bool("token_present", token != ""),
			)
			response.Error(c, errors.ErrCSRFInvalid)
			c.Abort()
			return
		}

		c.Next()
	}
}

func isUnsafeMethod(method string) bool {
	_, ok := unsafeMethods[method]
	return ok
}
