// Package router wires the gin engine, middleware and routes.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/infrastructure/config"
	"github.com/channelsync/backend/internal/infrastructure/logger"
	"github.com/channelsync/backend/internal/interfaces/http/handler"
	"github.com/channelsync/backend/internal/interfaces/http/middleware"
)

// Handlers aggregates the handlers the router mounts
type Handlers struct {
	Health  *handler.HealthHandler
	Webhook *handler.WebhookHandler
	Sync    *handler.SyncHandler
}

// Setup builds the gin engine with middleware and all routes mounted
func Setup(cfg *config.Config, log *zap.Logger, h Handlers) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanRequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if len(cfg.HTTP.TrustedProxies) > 0 {
		_ = engine.SetTrustedProxies(cfg.HTTP.TrustedProxies)
	}

	engine.GET("/health", h.Health.Health)

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/webhooks/:channel_id/:event", h.Webhook.Receive)
		v1.POST("/webhook-deliveries/:id/retry", h.Webhook.RetryDelivery)

		v1.POST("/channels/:id/sync", h.Sync.TriggerSync)
		v1.GET("/channels/:id/rate-limits", h.Sync.GetRateLimits)
		v1.GET("/sync-runs/:id", h.Sync.GetSyncRun)
		v1.GET("/conflicts", h.Sync.ListConflicts)
	}

	return engine
}
