package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xrak-labs/sessiond/internal/kv"
	"github.com/xrak-labs/sessiond/internal/session"
)

func newSessionStore(t *testing.T) *session.Store {
	t.Helper()

	store, err := session.NewStore(kv.NewMemoryStore(), session.StoreConfig{DefaultTTL: time.Hour})
	require.NoError(t, err)
	return store
}

func seedSession(t *testing.T, store *session.Store, sess session.Session) string {
	t.Helper()

	sid, err := session.NewID()
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), sid, sess, time.Hour))
	return sid
}

func TestResolveSessionLoadsCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newSessionStore(t)
	sid := seedSession(t, store, session.Session{UserID: 7, Email: "user@example.com"})

	r := gin.New()
	r.Use(ResolveSession(store))
	r.GET("/probe", func(c *gin.Context) {
		sess, ok := SessionFrom(c)
		require.True(t, ok)
		require.Equal(t, int64(7), sess.UserID)
		require.Equal(t, sid, SessionIDFrom(c))
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sid})
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestResolveSessionNeverRejects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newSessionStore(t)

	r := gin.New()
	r.Use(ResolveSession(store))
	r.GET("/probe", func(c *gin.Context) {
		_, ok := SessionFrom(c)
		require.False(t, ok)
		c.Status(http.StatusOK)
	})

	// No cookie at all.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	require.Equal(t, http.StatusOK, w.Code)

	// A cookie pointing at nothing.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "dead-sid"})
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRequireUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newSessionStore(t)

	authedSID := seedSession(t, store, session.Session{UserID: 7})
	anonSID := seedSession(t, store, session.Session{UserID: 0})

	r := gin.New()
	r.Use(ResolveSession(store))
	r.GET("/private", RequireUser(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// Authenticated session passes.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: authedSID})
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// Anonymous session is rejected.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: anonSID})
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// No session at all is rejected.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
