package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xrak-labs/sessiond/internal/audit"
	"github.com/xrak-labs/sessiond/internal/auth"
	"github.com/xrak-labs/sessiond/internal/security"
	"github.com/xrak-labs/sessiond/pkg/crypto"
	"github.com/xrak-labs/sessiond/pkg/errors"
	"github.com/xrak-labs/sessiond/pkg/response"
)

// SecurityHandler exposes the admin-only security configuration surface.
type SecurityHandler struct {
	config *security.ConfigService
	audit  *audit.Service
	svc    *auth.Service
}

func NewSecurityHandler(config *security.ConfigService, auditSvc *audit.Service, svc *auth.Service) *SecurityHandler {
	return &SecurityHandler{config: config, audit: auditSvc, svc: svc}
}

type uaDenylistRequest struct {
	UserAgents []string `json:"user_agents" validate:"required,min=1,dive,required"`
}

func (r uaDenylistRequest) entries() security.UADenylist {
	var out security.UADenylist
	for _, ua := range r.UserAgents {
		if hash := crypto.HashUserAgent(ua); hash != "" {
			out.Hashes = append(out.Hashes, hash)
			out.Raw = append(out.Raw, ua)
		}
	}
	return out
}

// GET /api/admin/security/ua
func (h *SecurityHandler) GetUADenylist(c *gin.Context) {
	response.Success(c, http.StatusOK, h.config.UADenylist(requestContext(c)))
}

// POST /api/admin/security/ua
func (h *SecurityHandler) AddUADenylist(c *gin.Context) {
	var req uaDenylistRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.config.AddUADenylist(requestContext(c), req.entries()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, h.config.UADenylist(requestContext(c)))
}

// DELETE /api/admin/security/ua
func (h *SecurityHandler) RemoveUADenylist(c *gin.Context) {
	var req uaDenylistRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.config.RemoveUADenylist(requestContext(c), req.entries()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, h.config.UADenylist(requestContext(c)))
}

type rateLimitRequest struct {
	WindowSeconds int `json:"window_seconds" validate:"required,min=1"`
	MaxPerIP      int `json:"max_per_ip" validate:"required,min=1"`
	MaxPerEmail   int `json:"max_per_email" validate:"required,min=1"`
}

// GET /api/admin/security/rate-limit
func (h *SecurityHandler) GetRateLimit(c *gin.Context) {
	response.Success(c, http.StatusOK, h.config.RateLimit(requestContext(c)))
}

// PUT /api/admin/security/rate-limit
func (h *SecurityHandler) SetRateLimit(c *gin.Context) {
	var req rateLimitRequest
	if !bindAndValidate(c, &req) {
		return
	}

	cfg := security.RateLimitConfig{
		WindowSeconds: req.WindowSeconds,
		MaxPerIP:      req.MaxPerIP,
		MaxPerEmail:   req.MaxPerEmail,
	}
	if err := h.config.SetRateLimit(requestContext(c), cfg); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, cfg)
}

// GET /api/admin/security/audit
func (h *SecurityHandler) RecentAudit(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 0)
	events, err := h.audit.Recent(requestContext(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, events, &response.Meta{Limit: limit, Total: len(events)})
}

func userIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, errors.NewBadRequest("invalid user id"))
		return 0, false
	}
	return id, true
}

// GET /api/admin/users/:id/devices
func (h *SecurityHandler) UserDevices(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	devices, err := h.audit.ActiveDevices(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, newDeviceViews(devices, ""))
}

// DELETE /api/admin/users/:id/devices
func (h *SecurityHandler) RevokeUserDevices(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	revoked, err := h.svc.RevokeAllDevices(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked_count": revoked})
}
