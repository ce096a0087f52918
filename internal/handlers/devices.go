package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xrak-labs/sessiond/internal/audit"
	"github.com/xrak-labs/sessiond/internal/auth"
	"github.com/xrak-labs/sessiond/internal/middleware"
	"github.com/xrak-labs/sessiond/pkg/errors"
	"github.com/xrak-labs/sessiond/pkg/response"
)

// DeviceHandler exposes the caller's own active sessions.
type DeviceHandler struct {
	svc   *auth.Service
	audit *audit.Service
}

func NewDeviceHandler(svc *auth.Service, auditSvc *audit.Service) *DeviceHandler {
	return &DeviceHandler{svc: svc, audit: auditSvc}
}

type deviceView struct {
	SessionID string `json:"session_id"`
	UAHash    string `json:"ua_hash,omitempty"`
	IP        string `json:"ip,omitempty"`
	IssuedAt  int64  `json:"issued_at,omitempty"`
	Current   bool   `json:"current"`
}

func newDeviceViews(devices []audit.Device, currentSID string) []deviceView {
	views := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, deviceView{
			SessionID: d.SessionID,
			UAHash:    d.UAHash,
			IP:        d.IP,
			IssuedAt:  d.IssuedAt.Unix(),
			Current:   d.SessionID == currentSID,
		})
	}
	return views
}

// GET /api/devices
func (h *DeviceHandler) List(c *gin.Context) {
	sess, ok := middleware.SessionFrom(c)
	if !ok || sess.Anonymous() {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	devices, err := h.audit.ActiveDevices(requestContext(c), sess.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, newDeviceViews(devices, middleware.SessionIDFrom(c)))
}

// DELETE /api/devices/:sid
func (h *DeviceHandler) Revoke(c *gin.Context) {
	sess, ok := middleware.SessionFrom(c)
	if !ok || sess.Anonymous() {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	sid := c.Param("sid")
	if sid == "" {
		response.Error(c, errors.NewBadRequest("session id is required"))
		return
	}

	if err := h.svc.RevokeDevice(requestContext(c), sess.UserID, sid); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": sid})
}

// DELETE /api/devices
//
// Revokes every session belonging to the caller, the current one included.
// The client is expected to bootstrap a fresh session afterwards.
func (h *DeviceHandler) RevokeAll(c *gin.Context) {
	sess, ok := middleware.SessionFrom(c)
	if !ok || sess.Anonymous() {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	revoked, err := h.svc.RevokeAllDevices(requestContext(c), sess.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked_count": revoked})
}
