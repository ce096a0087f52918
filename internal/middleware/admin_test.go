package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xrak-labs/sessiond/internal/kv"
	"github.com/xrak-labs/sessiond/internal/security"
	"github.com/xrak-labs/sessiond/internal/session"
)

func newAdminRouter(t *testing.T, store *session.Store) *gin.Engine {
	t.Helper()

	allowlist, err := security.NewConfigService(kv.NewMemoryStore(), security.RateLimitConfig{}, []string{"ops@example.com"})
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ResolveSession(store))
	r.GET("/admin", RequireUser(), RequireAdmin(allowlist), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func adminRequest(r *gin.Engine, sid string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sid})
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAdmin(t *testing.T) {
	store := newSessionStore(t)
	r := newAdminRouter(t, store)

	flagged := seedSession(t, store, session.Session{UserID: 1, IsAdmin: true})
	roled := seedSession(t, store, session.Session{UserID: 2, Roles: []session.Role{session.RoleAdmin}})
	listed := seedSession(t, store, session.Session{UserID: 3, Email: "ops@example.com"})
	plain := seedSession(t, store, session.Session{UserID: 4, Email: "user@example.com"})

	require.Equal(t, http.StatusOK, adminRequest(r, flagged).Code)
	require.Equal(t, http.StatusOK, adminRequest(r, roled).Code)
	require.Equal(t, http.StatusOK, adminRequest(r, listed).Code)

	require.Equal(t, http.StatusForbidden, adminRequest(r, plain).Code)
	require.Equal(t, http.StatusUnauthorized, adminRequest(r, "").Code)
}
