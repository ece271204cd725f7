package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chainsync/gateway/internal/config"
	"github.com/chainsync/gateway/internal/erp"
	"github.com/chainsync/gateway/internal/handler"
	"github.com/chainsync/gateway/internal/middleware"
	"github.com/chainsync/gateway/internal/model"
	"github.com/chainsync/gateway/internal/pkg/logger"
	"github.com/chainsync/gateway/internal/pkg/tracing"
	"github.com/chainsync/gateway/internal/repository"
	"github.com/chainsync/gateway/internal/service"
	"github.com/chainsync/gateway/internal/stream"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize Logger and Tracing
	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	defer logger.Sync()

	shutdownTracing, err := tracing.Init(context.Background(), tracing.Config{
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Env,
		Endpoint:    cfg.Tracing.Endpoint,
	})
	if err != nil {
		logger.Error("Tracing disabled", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	} else if cfg.Tracing.Endpoint != "" {
		logger.Info("Tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}

	// 3. Idempotency Persistence (Redis > Postgres > Memory)
	var idemStore middleware.IdempotencyStore
	var pruners []service.Job
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(cfg.Redis)
		if err == nil {
			logger.Info("Connected to Redis", "addr", cfg.Redis.Addr)
			idemStore = repository.NewRedisIdempotencyStore(redisClient, cfg.Idempotency.TTL, cfg.Idempotency.LockTTL)
			defer redisClient.Close()
		} else {
			logger.Error("Failed to connect to Redis", "error", err)
		}
	}
	if idemStore == nil && cfg.Database.DSN != "" {
		db, err := repository.NewDB(context.Background(), cfg.Database)
		if err == nil {
			pgStore := repository.NewPostgresIdempotencyStore(db, cfg.Idempotency.TTL, cfg.Idempotency.LockTTL)
			if err := pgStore.EnsureSchema(context.Background()); err != nil {
				logger.Error("Failed to create idempotency schema", "error", err)
				db.Close()
			} else {
				logger.Info("Connected to PostgreSQL")
				idemStore = pgStore
				pruners = append(pruners, service.NewPruneJob("idempotency_prune", pgStore))
				defer db.Close()
			}
		} else {
			logger.Error("Failed to connect to DB", "error", err)
		}
	}
	if idemStore == nil {
		logger.Info("Using in-memory idempotency store")
		idemStore = middleware.NewInMemIdempotencyStore(cfg.Idempotency.TTL, cfg.Idempotency.LockTTL)
	}

	// 4. Initialize Core Services
	erpClient := erp.NewClient(cfg.ERP.BaseURL, cfg.ERP.APIKey)
	auditLog := service.NewAuditLog(model.AuditLogCapacity)
	hub := stream.NewHub()
	syncSvc := service.NewSyncService(erpClient, auditLog, hub)

	var scheduler *service.Scheduler
	if cfg.Scheduler.Enabled {
		jobs := append([]service.Job{
			service.NewShipmentSyncJob(syncSvc, service.DemoShipmentSource{}),
			service.NewInventorySyncJob(syncSvc, service.DemoInventorySource{}),
		}, pruners...)
		scheduler = service.NewScheduler(cfg.Scheduler.Interval, jobs...)
		if err := scheduler.Start(context.Background()); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
	}

	// 5. Setup Router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	r := handler.NewRouter(handler.RouterConfig{
		ServiceName: cfg.Tracing.ServiceName,
		ReadOnly:    cfg.Server.ReadOnly,
		MetricsPath: metricsPath,
		Sync:        syncSvc,
		Hub:         hub,
		Idempotency: idemStore,
		Limiter:     middleware.NewLimiter(cfg.Server.RateLimitQPS, cfg.Server.RateLimitBurst),
	})

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("ChainSync started", "port", cfg.Server.Port, "erp", cfg.ERP.BaseURL, "read_only", cfg.Server.ReadOnly)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if scheduler != nil {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Warn("Scheduler did not stop cleanly", "error", err)
		}
	}
	hub.Close()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Warn("Tracing shutdown failed", "error", err)
	}

	logger.Info("Server exiting")
}
