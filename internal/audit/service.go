package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/xrak-labs/sessiond/internal/models"
	"github.com/xrak-labs/sessiond/internal/session"
)

// Meta carries contextual request information attached to audit events.
type Meta struct {
	IP        string `json:"ip,omitempty"`
	UAHash    string `json:"ua_hash,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Geo       string `json:"geo,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Email     string `json:"email,omitempty"`
}

// LiveSessionSource resolves which of a user's sessions are currently live.
type LiveSessionSource interface {
	ListUserSessions(ctx context.Context, userID int64) ([]session.UserSession, error)
}

// Service records immutable session lifecycle facts. Every Record* call is
// best effort: failures are logged and swallowed so the audit trail can never
// fail the operation it describes.
type Service struct {
	db       *gorm.DB
	sessions LiveSessionSource
	log      *zap.Logger
}

// NewService constructs the audit service. sessions may be nil when the
// device view is not needed (e.g. in narrow tests).
func NewService(db *gorm.DB, sessions LiveSessionSource, log *zap.Logger) (*Service, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, sessions: sessions, log: log}, nil
}

func (s *Service) record(ctx context.Context, userID int64, sessionID, event string, meta Meta) {
	payload, err := json.Marshal(meta)
	if err != nil {
		s.log.Warn("audit meta marshal failed", zap.String("event", event), zap.Error(err))
		payload = []byte("{}")
	}

	row := models.SessionAuditEvent{
		UserID:    userID,
		SessionID: sessionID,
		Event:     event,
		Meta:      datatypes.JSON(payload),
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.log.Warn("audit write failed",
			zap.String("event", event),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
	}
}

// RecordIssued logs a session issuance.
func (s *Service) RecordIssued(ctx context.Context, userID int64, sessionID string, meta Meta) {
	s.record(ctx, userID, sessionID, models.AuditEventIssue, meta)
}

// RecordLoginAttempt logs a successful login attempt. Failed attempts go
// through RecordLoginFailed with their reason discriminator; a successful
// attempt carries an empty reason.
func (s *Service) RecordLoginAttempt(ctx context.Context, userID int64, sessionID string, meta Meta) {
	s.record(ctx, userID, sessionID, models.AuditEventLogin, meta)
}

// RecordRefreshed logs a session TTL renewal or field merge.
func (s *Service) RecordRefreshed(ctx context.Context, sessionID string, meta Meta) {
	s.record(ctx, 0, sessionID, models.AuditEventRefresh, meta)
}

// RecordRevoked logs a session revocation.
func (s *Service) RecordRevoked(ctx context.Context, sessionID string) {
	s.record(ctx, 0, sessionID, models.AuditEventRevoke, Meta{})
}

// RecordLoginFailed logs a rejected login attempt with its reason
// discriminator.
func (s *Service) RecordLoginFailed(ctx context.Context, email string, meta Meta) {
	meta.Email = email
	s.record(ctx, 0, "", models.AuditEventLoginFailed, meta)
}

// RecordPasswordChanged logs a password change for the user.
func (s *Service) RecordPasswordChanged(ctx context.Context, userID int64) {
	s.record(ctx, userID, "", models.AuditEventPasswordChanged, Meta{})
}

// Recent returns the latest events ordered by recency.
func (s *Service) Recent(ctx context.Context, limit int) ([]models.SessionAuditEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var events []models.SessionAuditEvent
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("audit service: recent: %w", err)
	}
	return events, nil
}

// ByUser returns a user's events newest first.
func (s *Service) ByUser(ctx context.Context, userID int64, limit int) ([]models.SessionAuditEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var events []models.SessionAuditEvent
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("audit service: by user: %w", err)
	}
	return events, nil
}

// BySession returns the full history of one session id.
func (s *Service) BySession(ctx context.Context, sessionID string) ([]models.SessionAuditEvent, error) {
	var events []models.SessionAuditEvent
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("audit service: by session: %w", err)
	}
	return events, nil
}

// Device summarises one active browsing context for the device view.
type Device struct {
	SessionID string    `json:"session_id"`
	UAHash    string    `json:"ua_hash,omitempty"`
	IP        string    `json:"ip,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
}

// ActiveDevices joins a user's audit issue events against the sessions that
// are still live in the store. An issue event whose session is gone is not a
// device, no matter how recent.
func (s *Service) ActiveDevices(ctx context.Context, userID int64) ([]Device, error) {
	if s.sessions == nil {
		return nil, errors.New("audit service: no session source configured")
	}

	live, err := s.sessions.ListUserSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("audit service: list live sessions: %w", err)
	}
	if len(live) == 0 {
		return []Device{}, nil
	}

	ids := make([]string, 0, len(live))
	byID := make(map[string]session.Session, len(live))
	for _, us := range live {
		ids = append(ids, us.ID)
		byID[us.ID] = us.Session
	}

	var issued []models.SessionAuditEvent
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND event = ? AND session_id IN ?", userID, models.AuditEventIssue, ids).
		Order("created_at DESC").
		Find(&issued).Error; err != nil {
		return nil, fmt.Errorf("audit service: issue events: %w", err)
	}

	devices := make([]Device, 0, len(live))
	seen := make(map[string]struct{}, len(live))
	for _, ev := range issued {
		if _, dup := seen[ev.SessionID]; dup {
			continue
		}
		seen[ev.SessionID] = struct{}{}

		var meta Meta
		_ = json.Unmarshal(ev.Meta, &meta)
		devices = append(devices, Device{
			SessionID: ev.SessionID,
			UAHash:    meta.UAHash,
			IP:        meta.IP,
			IssuedAt:  ev.CreatedAt,
		})
	}

	// Sessions live in the store but missing an issue row (degraded-mode
	// writes, audit outage) still count as devices.
	for _, us := range live {
		if _, ok := seen[us.ID]; ok {
			continue
		}
		devices = append(devices, Device{
			SessionID: us.ID,
			UAHash:    byID[us.ID].UAHash,
			IssuedAt:  time.Unix(byID[us.ID].IssuedAt, 0),
		})
	}

	return devices, nil
}

// CleanupOlderThan deletes events past the retention window, returning the
// number of rows removed.
func (s *Service) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, errors.New("audit service: retentionDays must be positive")
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.SessionAuditEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("audit service: cleanup: %w", result.Error)
	}
	return result.RowsAffected, nil
}
