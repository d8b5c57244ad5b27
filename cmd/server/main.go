package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	syncapp "github.com/channelsync/backend/internal/application/sync"
	"github.com/channelsync/backend/internal/application/webhook"
	"github.com/channelsync/backend/internal/application/worker"
	"github.com/channelsync/backend/internal/domain/channel"
	"github.com/channelsync/backend/internal/infrastructure/channels"
	"github.com/channelsync/backend/internal/infrastructure/config"
	"github.com/channelsync/backend/internal/infrastructure/event"
	"github.com/channelsync/backend/internal/infrastructure/logger"
	"github.com/channelsync/backend/internal/infrastructure/persistence"
	"github.com/channelsync/backend/internal/infrastructure/queue"
	"github.com/channelsync/backend/internal/infrastructure/ratelimit"
	"github.com/channelsync/backend/internal/infrastructure/scheduler"
	"github.com/channelsync/backend/internal/infrastructure/telemetry"
	"github.com/channelsync/backend/internal/infrastructure/transform"
	"github.com/channelsync/backend/internal/interfaces/http/handler"
	"github.com/channelsync/backend/internal/interfaces/http/router"
)

const keyPrefix = "channelsync"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting channel sync engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	// Database
	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	db.DB.Logger = logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))

	if err := telemetry.RegisterDBTracing(db.DB, cfg.Telemetry, log); err != nil {
		log.Fatal("Failed to enable database tracing", zap.Error(err))
	}

	if cfg.App.Env != "production" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	log.Info("Database connected")

	// Redis backs the rate limiter and the job queue
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error("Error closing redis client", zap.Error(err))
		}
	}()
	log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))

	// Repositories
	channelRepo := persistence.NewGormChannelRepository(db.DB)
	stateRepo := persistence.NewGormSyncStateRepository(db.DB)
	runRepo := persistence.NewGormSyncRunRepository(db.DB)
	conflictRepo := persistence.NewGormConflictRecordRepository(db.DB)
	deliveryRepo := persistence.NewGormWebhookDeliveryRepository(db.DB)
	localStore := persistence.NewGormLocalStore(db.DB)

	// Event bus with the logging subscriber
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(event.NewLoggingHandler(log))
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Rate limiter and queue
	limits := ratelimit.NewLimits()
	limits.SetFallback(channel.RateLimit{
		Limit:  cfg.RateLimit.DefaultRequests,
		Window: cfg.RateLimit.DefaultWindow,
	})
	limiter := ratelimit.NewRedisLimiter(rdb, limits, keyPrefix)
	jobQueue := queue.NewRedisQueue(rdb, keyPrefix)

	// Adapter registry
	registry := syncapp.NewAdapterRegistry()
	mustRegister(log, registry, channel.ChannelTypeShopify, channels.ShopifyFactory())
	mustRegister(log, registry, channel.ChannelTypeWooCommerce, channels.WooCommerceFactory())

	// Sync orchestration
	resolver, err := syncapp.NewConflictResolver(
		channel.Strategy(cfg.Sync.DefaultStrategy), conflictRepo, bus, log)
	if err != nil {
		log.Fatal("Failed to build conflict resolver", zap.Error(err))
	}
	// Default transformer renames common provider payload keys to
	// their canonical names; unmapped keys pass through
	transformer := transform.NewFieldMapTransformer(transform.FieldMap{
		"title":              "name",
		"body_html":          "description",
		"inventory_quantity": "quantity",
	})

	orchestrator := syncapp.NewOrchestrator(
		registry, resolver, limiter, localStore,
		stateRepo, runRepo, channelRepo,
		transformer, bus, log,
		syncapp.Config{
			PageSize:     cfg.Sync.PageSize,
			ConflictSkew: cfg.Sync.ConflictSkew,
		},
	)

	// Webhook ingestion
	webhookHandler := webhook.NewHandler(deliveryRepo, channelRepo, jobQueue, bus, log, webhook.Config{
		Timeout:    cfg.Webhook.Timeout,
		MaxRetries: cfg.Webhook.MaxRetries,
	})

	// Background workers consuming queued sync and retry jobs
	pool := worker.NewPool(jobQueue, channelRepo, orchestrator, webhookHandler, log, worker.Config{
		Workers:      cfg.Sync.WorkerCount,
		PollInterval: cfg.Sync.PollInterval,
	})
	pool.Start(ctx)

	// Periodic trigger keeps stale channels syncing between webhooks
	trigger := scheduler.NewSyncTrigger(channelRepo, jobQueue, log, scheduler.DefaultConfig())
	trigger.Start(ctx)

	// HTTP surface
	health := handler.NewHealthHandler()
	health.AddCheck("database", func(context.Context) error { return db.Ping() })
	health.AddCheck("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })

	engine := router.Setup(cfg, log, router.Handlers{
		Health:  health,
		Webhook: handler.NewWebhookHandler(channelRepo, webhookHandler, channels.VerifyWebhookRequest, log),
		Sync:    handler.NewSyncHandler(channelRepo, runRepo, conflictRepo, limiter, orchestrator, log),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := trigger.Stop(shutdownCtx); err != nil {
		log.Error("Sync trigger shutdown failed", zap.Error(err))
	}
	if err := pool.Stop(shutdownCtx); err != nil {
		log.Error("Worker pool did not drain", zap.Error(err))
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Error("Event bus shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Telemetry shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

func mustRegister(log *zap.Logger, registry *syncapp.AdapterRegistry, channelType channel.ChannelType, factory channel.AdapterFactory) {
	if err := registry.Register(string(channelType), factory); err != nil {
		log.Fatal("Failed to register channel adapter",
			zap.String("channel_type", string(channelType)),
			zap.Error(err),
		)
	}
}
