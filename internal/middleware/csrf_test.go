package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xrak-labs/sessiond/internal/session"
)

func newCSRFRouter(t *testing.T, store *session.Store) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ResolveSession(store))
	r.Use(CSRF())
	r.POST("/mutate", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/read", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestCSRFAllowsSafeMethodsWithoutToken(t *testing.T) {
	store := newSessionStore(t)
	r := newCSRFRouter(t, store)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/read", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCSRFAcceptsMatchingToken(t *testing.T) {
	store := newSessionStore(t)
	sid := seedSession(t, store, session.Session{UserID: 7})

	sess, ok := store.Get(context.Background(), sid)
	require.True(t, ok)

	r := newCSRFRouter(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sid})
	req.Header.Set(session.CSRFHeaderName, sess.CSRFSecret)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestCSRFRejectionIsUniform(t *testing.T) {
	store := newSessionStore(t)
	sid := seedSession(t, store, session.Session{UserID: 7})

	r := newCSRFRouter(t, store)

	cases := []struct {
		name  string
		sid   string
		token string
	}{
		{"valid session, missing token", sid, ""},
		{"valid session, wrong token", sid, "wrong-token-wrong-token-wrong-token-wrong-t"},
		{"no session, with token", "", "some-token-some-token-some-token-some-token"},
		{"dead session, with token", "dead-sid", "some-token-some-token-some-token-some-token"},
		{"nothing at all", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
			if tc.sid != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tc.sid})
			}
			if tc.token != "" {
				req.Header.Set(session.CSRFHeaderName, tc.token)
			}
			r.ServeHTTP(w, req)

			require.Equal(t, http.StatusForbidden, w.Code)
			require.Contains(t, w.Body.String(), "CSRF_TOKEN_INVALID")
		})
	}
}

func TestCSRFAnonymousSessionTokenWorks(t *testing.T) {
	store := newSessionStore(t)
	sid := seedSession(t, store, session.Session{UserID: 0})

	sess, ok := store.Get(context.Background(), sid)
	require.True(t, ok)

	r := newCSRFRouter(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sid})
	req.Header.Set(session.CSRFHeaderName, sess.CSRFSecret)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
}
