package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit event discriminators. Each lifecycle fact is its own immutable row;
// revocation is never an update to the issue row.
const (
	AuditEventIssue           = "issue"
	AuditEventLogin           = "login"
	AuditEventRefresh         = "refresh"
	AuditEventRevoke          = "revoke"
	AuditEventLoginFailed     = "login_failed"
	AuditEventPasswordChanged = "password_change"
)

// SessionAuditEvent is one append-only fact about a session or login attempt.
type SessionAuditEvent struct {
	ID        string         `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    int64          `gorm:"index;not null" json:"user_id"`
	SessionID string         `gorm:"index;size:64" json:"session_id"`
	Event     string         `gorm:"not null;size:32" json:"event"`
	Meta      datatypes.JSON `json:"meta"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (e *SessionAuditEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
