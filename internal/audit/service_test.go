package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xrak-labs/sessiond/internal/database/testutil"
	"github.com/xrak-labs/sessiond/internal/models"
	"github.com/xrak-labs/sessiond/internal/session"
)

// staticSessions serves a fixed live-session list.
type staticSessions struct {
	sessions []session.UserSession
}

func (s *staticSessions) ListUserSessions(_ context.Context, _ int64) ([]session.UserSession, error) {
	return s.sessions, nil
}

func newTestService(t *testing.T, live *staticSessions) *Service {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	svc, err := NewService(db, live, nil)
	require.NoError(t, err)
	return svc
}

func TestRecordAndQueryEvents(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	svc.RecordLoginAttempt(ctx, 7, "sid-1", Meta{IP: "10.0.0.1", UAHash: "abcd"})
	svc.RecordIssued(ctx, 7, "sid-1", Meta{IP: "10.0.0.1", UAHash: "abcd"})
	svc.RecordRefreshed(ctx, "sid-1", Meta{IP: "10.0.0.1"})
	svc.RecordRevoked(ctx, "sid-1")
	svc.RecordLoginFailed(ctx, "user@example.com", Meta{IP: "10.0.0.1", Reason: "password_mismatch"})
	svc.RecordPasswordChanged(ctx, 7)

	recent, err := svc.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 6)

	bySession, err := svc.BySession(ctx, "sid-1")
	require.NoError(t, err)
	require.Len(t, bySession, 4)

	events := make([]string, 0, len(bySession))
	for _, ev := range bySession {
		events = append(events, ev.Event)
	}
	require.ElementsMatch(t, []string{
		models.AuditEventLogin,
		models.AuditEventIssue,
		models.AuditEventRefresh,
		models.AuditEventRevoke,
	}, events)

	byUser, err := svc.ByUser(ctx, 7, 10)
	require.NoError(t, err)
	require.Len(t, byUser, 3)
}

func TestRecordLoginFailedCarriesReasonAndEmail(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	svc.RecordLoginFailed(ctx, "user@example.com", Meta{Reason: "rate_limited"})

	recent, err := svc.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, models.AuditEventLoginFailed, recent[0].Event)
	require.Contains(t, string(recent[0].Meta), "rate_limited")
	require.Contains(t, string(recent[0].Meta), "user@example.com")
}

func TestRecentLimitBounds(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		svc.RecordRevoked(ctx, "sid")
	}

	recent, err := svc.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 50)

	recent, err = svc.Recent(ctx, 20)
	require.NoError(t, err)
	require.Len(t, recent, 20)
}

func TestActiveDevicesJoinsLiveSessions(t *testing.T) {
	now := time.Now()
	live := &staticSessions{sessions: []session.UserSession{
		{ID: "sid-live", Session: session.Session{UserID: 7, UAHash: "hash-live", IssuedAt: now.Unix()}},
		{ID: "sid-unaudited", Session: session.Session{UserID: 7, UAHash: "hash-un", IssuedAt: now.Unix()}},
	}}
	svc := newTestService(t, live)
	ctx := context.Background()

	// One live session has an issue row, one revoked session does too.
	svc.RecordIssued(ctx, 7, "sid-live", Meta{IP: "10.0.0.1", UAHash: "hash-live"})
	svc.RecordIssued(ctx, 7, "sid-dead", Meta{IP: "10.0.0.2", UAHash: "hash-dead"})

	devices, err := svc.ActiveDevices(ctx, 7)
	require.NoError(t, err)
	require.Len(t, devices, 2)

	byID := map[string]Device{}
	for _, d := range devices {
		byID[d.SessionID] = d
	}

	require.Contains(t, byID, "sid-live")
	require.Equal(t, "10.0.0.1", byID["sid-live"].IP)
	require.Equal(t, "hash-live", byID["sid-live"].UAHash)

	// The live-but-unaudited session still shows up, from store data alone.
	require.Contains(t, byID, "sid-unaudited")
	require.Equal(t, "hash-un", byID["sid-unaudited"].UAHash)

	// The audited-but-dead session does not.
	require.NotContains(t, byID, "sid-dead")
}

func TestActiveDevicesNoLiveSessions(t *testing.T) {
	svc := newTestService(t, &staticSessions{})

	devices, err := svc.ActiveDevices(context.Background(), 7)
	require.NoError(t, err)
	require.Empty(t, devices)
}

func TestCleanupOlderThan(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	svc.RecordRevoked(ctx, "fresh")

	stale := models.SessionAuditEvent{
		UserID:    7,
		SessionID: "stale",
		Event:     models.AuditEventRevoke,
		CreatedAt: time.Now().AddDate(0, 0, -120),
	}
	require.NoError(t, svc.db.Create(&stale).Error)

	removed, err := svc.CleanupOlderThan(ctx, 90)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	recent, err := svc.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, "fresh", recent[0].SessionID)

	_, err = svc.CleanupOlderThan(ctx, 0)
	require.Error(t, err)
}
