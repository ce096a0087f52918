package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xrak-labs/sessiond/internal/audit"
	"github.com/xrak-labs/sessiond/internal/database/testutil"
	"github.com/xrak-labs/sessiond/internal/models"
)

func newAuditService(t *testing.T) *audit.Service {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	svc, err := audit.NewService(db, nil, nil)
	require.NoError(t, err)

	stale := models.SessionAuditEvent{
		UserID:    1,
		SessionID: "stale",
		Event:     models.AuditEventRevoke,
		CreatedAt: time.Now().AddDate(0, 0, -40),
	}
	require.NoError(t, db.Create(&stale).Error)

	svc.RecordRevoked(context.Background(), "fresh")
	return svc
}

func TestCleanerRunOnce(t *testing.T) {
	svc := newAuditService(t)

	cleaner := NewCleaner(svc, WithRetentionDays(30))
	require.NoError(t, cleaner.RunOnce(context.Background()))

	events, err := svc.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "fresh", events[0].SessionID)
}

func TestCleanerStartStop(t *testing.T) {
	svc := newAuditService(t)

	cleaner := NewCleaner(svc, WithRetentionDays(30), WithSchedule("@every 1h"))
	require.NoError(t, cleaner.Start())

	stopCtx := cleaner.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}

func TestCleanerNilAuditIsNoOp(t *testing.T) {
	cleaner := NewCleaner(nil)
	require.NoError(t, cleaner.Start())
	require.NoError(t, cleaner.RunOnce(context.Background()))
}
