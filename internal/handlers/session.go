package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xrak-labs/sessiond/internal/auth"
	"github.com/xrak-labs/sessiond/internal/middleware"
	"github.com/xrak-labs/sessiond/internal/session"
	"github.com/xrak-labs/sessiond/pkg/response"
)

// SessionHandler serves the session bootstrap endpoint every page load hits.
type SessionHandler struct {
	svc          *auth.Service
	sessions     *session.Store
	secureCookie bool
}

func NewSessionHandler(svc *auth.Service, sessions *session.Store, secureCookie bool) *SessionHandler {
	return &SessionHandler{svc: svc, sessions: sessions, secureCookie: secureCookie}
}

// GET /api/session
//
// Returns the caller's session, issuing a fresh anonymous one when the
// cookie is absent or points at a dead record. Authenticated sessions get
// renewed with their remaining TTL on every bootstrap.
func (h *SessionHandler) Bootstrap(c *gin.Context) {
	ctx := requestContext(c)
	cookieSID := middleware.SessionIDFrom(c)

	sid, sess, issued, err := h.svc.Bootstrap(ctx, cookieSID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	if issued {
		setSessionCookie(c, sid, int(h.sessions.TTL().Seconds()), h.secureCookie)
	} else if !sess.Anonymous() {
		h.svc.Touch(ctx, sid, *sess, requestMeta(c))
	}

	response.Success(c, http.StatusOK, newSessionView(sess))
}
