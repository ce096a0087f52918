package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/xrak-labs/sessiond/internal/kv"
	"github.com/xrak-labs/sessiond/pkg/response"
)

// HealthHandler reports process liveness plus the store's degraded flag so
// operators can see a silent fallback without reading logs.
type HealthHandler struct {
	db       *gorm.DB
	failover *kv.Failover
}

func NewHealthHandler(db *gorm.DB, failover *kv.Failover) *HealthHandler {
	return &HealthHandler{db: db, failover: failover}
}

// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	dbOK := true
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(requestContext(c)) != nil {
		dbOK = false
	}

	response.Success(c, http.StatusOK, gin.H{
		"status":         "ok",
		"database":       dbOK,
		"store_degraded": h.failover.Degraded(),
	})
}
