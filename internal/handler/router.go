package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/chainsync/gateway/internal/middleware"
	"github.com/chainsync/gateway/internal/service"
	"github.com/chainsync/gateway/internal/stream"
)

type RouterConfig struct {
	ServiceName string
	ReadOnly    bool
	MetricsPath string // empty disables the scrape endpoint

	Sync        *service.SyncService
	Hub         *stream.Hub
	Idempotency middleware.IdempotencyStore
	Limiter     *rate.Limiter
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = middleware.NewLimiter(0, 0)
	}
	idem := cfg.Idempotency
	if idem == nil {
		idem = middleware.NewInMemIdempotencyStore(0, 0)
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "chainsync"
	}

	syncHandler := NewSyncHandler(cfg.Sync)
	auditHandler := NewAuditHandler(cfg.Sync.AuditLog())

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(middleware.RequestLogMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.ErrorHandler())

	r.GET("/", Dashboard)
	r.GET("/health", Health)
	if cfg.MetricsPath != "" {
		r.GET(cfg.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	api.Use(middleware.RateLimitMiddleware(limiter))
	{
		api.GET("/sync_logs", auditHandler.List)
		if cfg.Hub != nil {
			api.GET("/sync_logs/stream", NewStreamHandler(cfg.Hub).Serve)
		}
	}

	writes := api.Group("")
	writes.Use(middleware.ReadOnlyMiddleware(cfg.ReadOnly))
	writes.Use(middleware.IdempotencyMiddleware(idem))
	{
		writes.POST("/shipments/update", syncHandler.UpdateShipment)
		writes.POST("/inventory/update", syncHandler.UpdateInventory)
	}

	return r
}
