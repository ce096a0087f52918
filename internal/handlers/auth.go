package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xrak-labs/sessiond/internal/auth"
	"github.com/xrak-labs/sessiond/internal/middleware"
	"github.com/xrak-labs/sessiond/internal/session"
	"github.com/xrak-labs/sessiond/pkg/errors"
	"github.com/xrak-labs/sessiond/pkg/response"
)

// AuthHandler manages the login/logout/password flows.
type AuthHandler struct {
	svc          *auth.Service
	sessions     *session.Store
	secureCookie bool
}

func NewAuthHandler(svc *auth.Service, sessions *session.Store, secureCookie bool) *AuthHandler {
	return &AuthHandler{svc: svc, sessions: sessions, secureCookie: secureCookie}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type sessionView struct {
	Authenticated bool     `json:"authenticated"`
	UserID        int64    `json:"user_id,omitempty"`
	Email         string   `json:"email,omitempty"`
	DisplayName   string   `json:"display_name,omitempty"`
	Roles         []string `json:"roles,omitempty"`
	IsAdmin       bool     `json:"is_admin,omitempty"`
	CSRFToken     string   `json:"csrf_token"`
	IssuedAt      int64    `json:"issued_at"`
	ExpiresAt     int64    `json:"expires_at"`
}

func newSessionView(sess *session.Session) sessionView {
	roles := make([]string, 0, len(sess.Roles))
	for _, r := range sess.Roles {
		roles = append(roles, string(r))
	}
	return sessionView{
		Authenticated: !sess.Anonymous(),
		UserID:        sess.UserID,
		Email:         sess.Email,
		DisplayName:   sess.DisplayName,
		Roles:         roles,
		IsAdmin:       sess.IsAdmin,
		CSRFToken:     sess.CSRFSecret,
		IssuedAt:      sess.IssuedAt,
		ExpiresAt:     sess.ExpiresAt,
	}
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	sid, sess, err := h.svc.Login(requestContext(c), req.Email, req.Password, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	setSessionCookie(c, sid, int(h.sessions.TTL().Seconds()), h.secureCookie)
	response.Success(c, http.StatusOK, newSessionView(sess))
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if sid := middleware.SessionIDFrom(c); sid != "" {
		h.svc.Logout(requestContext(c), sid)
	}
	clearSessionCookie(c, h.secureCookie)
	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}

// POST /api/auth/password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	sess, ok := middleware.SessionFrom(c)
	if !ok || sess.Anonymous() {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	sid := middleware.SessionIDFrom(c)
	if err := h.svc.ChangePassword(requestContext(c), sess.UserID, sid, req.OldPassword, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"changed": true})
}
