package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xrak-labs/sessiond/internal/api"
	"github.com/xrak-labs/sessiond/internal/app"
	"github.com/xrak-labs/sessiond/internal/app/maintenance"
	"github.com/xrak-labs/sessiond/internal/audit"
	"github.com/xrak-labs/sessiond/internal/auth"
	"github.com/xrak-labs/sessiond/internal/database"
	"github.com/xrak-labs/sessiond/internal/kv"
	"github.com/xrak-labs/sessiond/internal/security"
	"github.com/xrak-labs/sessiond/internal/session"
	"github.com/xrak-labs/sessiond/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sessiond", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg.Database.Connection())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
	}()

	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	var primary kv.Store
	redisStore, err := kv.NewRedisStore(cfg.Redis.Connection())
	if err != nil {
		log.Warn("redis unreachable at startup, running on in-memory fallback", zap.Error(err))
	} else {
		primary = redisStore
		defer redisStore.Close()
		log.Info("redis connected", zap.String("addr", cfg.Redis.Address))
	}
	store := kv.NewFailover(primary, logger.WithModule("kv"))

	sessions, err := session.NewStore(store, session.StoreConfig{
		DefaultTTL: cfg.Session.TTL,
		Logger:     logger.WithModule("session"),
	})
	if err != nil {
		return fmt.Errorf("initialise session store: %w", err)
	}

	securityCfg, err := security.NewConfigService(store, cfg.Security.RateLimitDefaults(), cfg.Security.AdminEmails)
	if err != nil {
		return fmt.Errorf("initialise security config: %w", err)
	}

	limiter, err := security.NewLimiter(store, securityCfg, security.FailOpen, logger.WithModule("security"))
	if err != nil {
		return fmt.Errorf("initialise limiter: %w", err)
	}

	auditSvc, err := audit.NewService(db, sessions, logger.WithModule("audit"))
	if err != nil {
		return fmt.Errorf("initialise audit service: %w", err)
	}

	authSvc, err := auth.NewService(auth.Config{
		DB:       db,
		Sessions: sessions,
		Limiter:  limiter,
		Security: securityCfg,
		Auditor:  auditSvc,
		Logger:   logger.WithModule("auth"),
	})
	if err != nil {
		return fmt.Errorf("initialise auth service: %w", err)
	}

	cleaner := maintenance.NewCleaner(auditSvc,
		maintenance.WithRetentionDays(cfg.Audit.RetentionDays),
		maintenance.WithSchedule(cfg.Audit.Schedule),
	)
	if err := cleaner.Start(); err != nil {
		return fmt.Errorf("start maintenance jobs: %w", err)
	}
	defer func() {
		stopCtx := cleaner.Stop()
		if err := cleaner.RunOnce(stopCtx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}()

	router, err := api.NewRouter(api.Deps{
		DB:           db,
		Sessions:     sessions,
		Auth:         authSvc,
		Audit:        auditSvc,
		Security:     securityCfg,
		Failover:     store,
		SecureCookie: cfg.Session.SecureCookie,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}
