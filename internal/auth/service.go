package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xrak-labs/sessiond/internal/audit"
	"github.com/xrak-labs/sessiond/internal/models"
	"github.com/xrak-labs/sessiond/internal/security"
	"github.com/xrak-labs/sessiond/internal/session"
	"github.com/xrak-labs/sessiond/pkg/crypto"
	apperrors "github.com/xrak-labs/sessiond/pkg/errors"
	"github.com/xrak-labs/sessiond/pkg/metrics"
)

// Audit reason discriminators attached to login attempt events.
const (
	ReasonUADenied         = "ua_denied"
	ReasonRateLimited      = "rate_limited"
	ReasonNoUser           = "no_user"
	ReasonPasswordMismatch = "password_mismatch"
)

// RequestMeta is the client context forwarded from the request layer.
type RequestMeta struct {
	IP        string
	UserAgent string
}

func (m RequestMeta) uaHash() string {
	return crypto.HashUserAgent(m.UserAgent)
}

func (m RequestMeta) auditMeta() audit.Meta {
	return audit.Meta{
		IP:        m.IP,
		UAHash:    m.uaHash(),
		UserAgent: m.UserAgent,
	}
}

// Service orchestrates the login chain and session lifecycle. Within one
// login the sequence UA check, rate limit, credential check, session issue,
// audit write is strictly sequential; each step can short-circuit the rest.
type Service struct {
	db       *gorm.DB
	sessions *session.Store
	limiter  *security.Limiter
	config   *security.ConfigService
	auditor  *audit.Service
	now      func() time.Time
	log      *zap.Logger
}

// Config wires the service's collaborators.
type Config struct {
	DB       *gorm.DB
	Sessions *session.Store
	Limiter  *security.Limiter
	Security *security.ConfigService
	Auditor  *audit.Service
	Clock    func() time.Time
	Logger   *zap.Logger
}

// NewService validates the wiring and returns the auth service.
func NewService(cfg Config) (*Service, error) {
	if cfg.DB == nil {
		return nil, errors.New("auth service: db is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("auth service: session store is required")
	}
	if cfg.Limiter == nil {
		return nil, errors.New("auth service: limiter is required")
	}
	if cfg.Security == nil {
		return nil, errors.New("auth service: security config is required")
	}
	if cfg.Auditor == nil {
		return nil, errors.New("auth service: auditor is required")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		db:       cfg.DB,
		sessions: cfg.Sessions,
		limiter:  cfg.Limiter,
		config:   cfg.Security,
		auditor:  cfg.Auditor,
		now:      clock,
		log:      log,
	}, nil
}

// Login runs the full gate chain and, on success, issues an authenticated
// session with the full TTL. Every attempt leaves exactly one attempt record;
// successes additionally leave an issue record.
func (s *Service) Login(ctx context.Context, email, password string, meta RequestMeta) (string, *session.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, apperrors.ErrBadRequest
	}

	if s.limiter.CheckUserAgent(ctx, meta.uaHash(), meta.UserAgent) {
		s.recordFailure(ctx, email, meta, ReasonUADenied)
		return "", nil, apperrors.ErrUserAgentDenied
	}

	if rl := s.limiter.CheckLoginRateLimit(ctx, email, meta.IP); !rl.Allowed {
		s.recordFailure(ctx, email, meta, ReasonRateLimited)
		return "", nil, apperrors.ErrRateLimited
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.recordFailure(ctx, email, meta, ReasonNoUser)
		return "", nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, apperrors.ErrInternalServer.WithInternal(fmt.Errorf("auth service: find user: %w", err))
	}

	if !crypto.VerifyPassword(user.PasswordHash, password) {
		s.recordFailure(ctx, email, meta, ReasonPasswordMismatch)
		return "", nil, apperrors.ErrInvalidCredentials
	}

	sid, sess, err := s.issue(ctx, &user, meta)
	if err != nil {
		return "", nil, err
	}

	attempt := meta.auditMeta()
	attempt.Email = email
	s.auditor.RecordLoginAttempt(ctx, user.ID, sid, attempt)
	s.auditor.RecordIssued(ctx, user.ID, sid, meta.auditMeta())

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	metrics.SessionsIssued.WithLabelValues("authenticated").Inc()

	return sid, sess, nil
}

func (s *Service) issue(ctx context.Context, user *models.User, meta RequestMeta) (string, *session.Session, error) {
	sid, err := session.NewID()
	if err != nil {
		return "", nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	roles := []session.Role{session.RoleUser}
	isAdmin := user.IsAdmin
	if !isAdmin {
		// A freshly-granted admin email may outrun the stored flag.
		if ok, lookupErr := s.config.IsAdminEmail(ctx, user.Email); lookupErr == nil && ok {
			isAdmin = true
		}
	}
	if isAdmin {
		roles = append(roles, session.RoleAdmin)
	}

	sess := session.Session{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Roles:       roles,
		IsAdmin:     isAdmin,
		UAHash:      meta.uaHash(),
	}

	if err := s.sessions.Set(ctx, sid, sess, s.sessions.TTL()); err != nil {
		return "", nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	stored, ok := s.sessions.Get(ctx, sid)
	if !ok {
		return "", nil, apperrors.ErrInternalServer.WithInternal(errors.New("auth service: session vanished after save"))
	}
	return sid, stored, nil
}

func (s *Service) recordFailure(ctx context.Context, email string, meta RequestMeta, reason string) {
	m := meta.auditMeta()
	m.Reason = reason
	s.auditor.RecordLoginFailed(ctx, email, m)
	metrics.LoginAttempts.WithLabelValues(reason).Inc()
}

// Bootstrap resolves the current session or issues a fresh anonymous one.
// The second return reports whether a new session (and therefore a new
// cookie) was issued.
func (s *Service) Bootstrap(ctx context.Context, sid string, meta RequestMeta) (string, *session.Session, bool, error) {
	if sid != "" {
		if sess, ok := s.sessions.Get(ctx, sid); ok {
			return sid, sess, false, nil
		}
	}

	newSID, err := session.NewID()
	if err != nil {
		return "", nil, false, apperrors.ErrInternalServer.WithInternal(err)
	}

	sess := session.Session{
		UserID: 0,
		UAHash: meta.uaHash(),
	}
	if err := s.sessions.Set(ctx, newSID, sess, s.sessions.TTL()); err != nil {
		return "", nil, false, apperrors.ErrInternalServer.WithInternal(err)
	}

	stored, ok := s.sessions.Get(ctx, newSID)
	if !ok {
		return "", nil, false, apperrors.ErrInternalServer.WithInternal(errors.New("auth service: bootstrap session vanished"))
	}

	metrics.SessionsIssued.WithLabelValues("anonymous").Inc()
	return newSID, stored, true, nil
}

// Touch renews a live session with its remaining TTL and records the refresh.
func (s *Service) Touch(ctx context.Context, sid string, sess session.Session, meta RequestMeta) {
	if err := s.sessions.Touch(ctx, sid, sess); err != nil {
		s.log.Warn("session renewal failed", zap.Error(err))
		return
	}
	s.auditor.RecordRefreshed(ctx, sid, meta.auditMeta())
}

// Logout deletes the session and records the revocation.
func (s *Service) Logout(ctx context.Context, sid string) {
	if sid == "" {
		return
	}
	s.sessions.Delete(ctx, sid)
	s.auditor.RecordRevoked(ctx, sid)
	metrics.SessionsRevoked.Inc()
}

// RevokeDevice removes one of the user's sessions. The target must belong to
// the user; revoking someone else's session id reports not found.
func (s *Service) RevokeDevice(ctx context.Context, userID int64, sid string) error {
	target, ok := s.sessions.Get(ctx, sid)
	if !ok || target.UserID != userID {
		return apperrors.ErrNotFound
	}

	s.sessions.Delete(ctx, sid)
	s.auditor.RecordRevoked(ctx, sid)
	metrics.SessionsRevoked.Inc()
	return nil
}

// RevokeAllDevices removes every live session of the user, recording one
// revoke event per session.
func (s *Service) RevokeAllDevices(ctx context.Context, userID int64) (int, error) {
	revoked, err := s.sessions.RevokeAll(ctx, userID)
	for _, sid := range revoked {
		s.auditor.RecordRevoked(ctx, sid)
		metrics.SessionsRevoked.Inc()
	}
	if err != nil {
		return len(revoked), apperrors.ErrInternalServer.WithInternal(err)
	}
	return len(revoked), nil
}

// ChangePassword verifies the current password, stores the new hash, revokes
// the user's other sessions, and records the change.
func (s *Service) ChangePassword(ctx context.Context, userID int64, currentSID, oldPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return apperrors.NewBadRequest("password must be at least 8 characters")
	}

	var user models.User
	if err := s.db.WithContext(ctx).Take(&user, "id = ?", userID).Error; err != nil {
		return apperrors.ErrNotFound
	}

	if !crypto.VerifyPassword(user.PasswordHash, oldPassword) {
		return apperrors.ErrInvalidCredentials
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return apperrors.ErrInternalServer.WithInternal(err)
	}

	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("password_hash", hash).Error; err != nil {
		return apperrors.ErrInternalServer.WithInternal(fmt.Errorf("auth service: update password: %w", err))
	}

	// Other devices must re-authenticate with the new password; the session
	// that performed the change stays live.
	if ids, listErr := s.sessions.ListUserSessionIDs(ctx, userID); listErr == nil {
		for _, sid := range ids {
			if sid == currentSID {
				continue
			}
			s.sessions.Delete(ctx, sid)
			s.auditor.RecordRevoked(ctx, sid)
			metrics.SessionsRevoked.Inc()
		}
	}

	s.auditor.RecordPasswordChanged(ctx, userID)
	return nil
}
