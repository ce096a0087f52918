package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/xrak-labs/sessiond/internal/audit"
	"github.com/xrak-labs/sessiond/internal/auth"
	"github.com/xrak-labs/sessiond/internal/handlers"
	"github.com/xrak-labs/sessiond/internal/kv"
	"github.com/xrak-labs/sessiond/internal/middleware"
	"github.com/xrak-labs/sessiond/internal/security"
	"github.com/xrak-labs/sessiond/internal/session"
)

// Deps collects everything the HTTP surface needs.
type Deps struct {
	DB       *gorm.DB
	Sessions *session.Store
	Auth     *auth.Service
	Audit    *audit.Service
	Security *security.ConfigService
	Failover *kv.Failover

	// SecureCookie marks the session cookie Secure. Off for local HTTP
	// development, on everywhere else.
	SecureCookie bool
}

func (d Deps) validate() error {
	if d.DB == nil {
		return fmt.Errorf("database handle must be provided")
	}
	if d.Sessions == nil {
		return fmt.Errorf("session store must be provided")
	}
	if d.Auth == nil {
		return fmt.Errorf("auth service must be provided")
	}
	if d.Audit == nil {
		return fmt.Errorf("audit service must be provided")
	}
	if d.Security == nil {
		return fmt.Errorf("security config service must be provided")
	}
	if d.Failover == nil {
		return fmt.Errorf("failover store must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
//
// Middleware order matters: the session must be resolved before the CSRF
// guard can compare the header token against the session secret.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.ResolveSession(deps.Sessions))
	r.Use(middleware.CSRF())

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Failover)
	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	sessionHandler := handlers.NewSessionHandler(deps.Auth, deps.Sessions, deps.SecureCookie)
	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Sessions, deps.SecureCookie)
	deviceHandler := handlers.NewDeviceHandler(deps.Auth, deps.Audit)
	securityHandler := handlers.NewSecurityHandler(deps.Security, deps.Audit, deps.Auth)

	// Public routes. Bootstrap and login must work without an existing
	// authenticated session.
	r.GET("/api/session", sessionHandler.Bootstrap)
	r.POST("/api/auth/login", authHandler.Login)
	r.POST("/api/auth/logout", authHandler.Logout)

	// Routes requiring an authenticated session.
	user := r.Group("/api")
	user.Use(middleware.RequireUser())
	{
		user.POST("/auth/password", authHandler.ChangePassword)
		user.GET("/devices", deviceHandler.List)
		user.DELETE("/devices", deviceHandler.RevokeAll)
		user.DELETE("/devices/:sid", deviceHandler.Revoke)
	}

	// Admin-only security surface.
	admin := r.Group("/api/admin")
	admin.Use(middleware.RequireUser(), middleware.RequireAdmin(deps.Security))
	{
		admin.GET("/security/ua", securityHandler.GetUADenylist)
		admin.POST("/security/ua", securityHandler.AddUADenylist)
		admin.DELETE("/security/ua", securityHandler.RemoveUADenylist)
		admin.GET("/security/rate-limit", securityHandler.GetRateLimit)
		admin.PUT("/security/rate-limit", securityHandler.SetRateLimit)
		admin.GET("/security/audit", securityHandler.RecentAudit)
		admin.GET("/users/:id/devices", securityHandler.UserDevices)
		admin.DELETE("/users/:id/devices", securityHandler.RevokeUserDevices)
	}

	return r, nil
}
