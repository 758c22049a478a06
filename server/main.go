package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"topgun/api/routes"
	"topgun/internal/auth"
	"topgun/internal/notifications"
	"topgun/internal/paygateway"
	"topgun/internal/payments"
	"topgun/internal/shared/config"
	"topgun/internal/shared/database"
	"topgun/internal/shared/middleware"
	"topgun/pkg/cache"
	"topgun/pkg/logger"
	"topgun/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load environment variables
	appLogger := logger.GetDefault()

	// Smart environment loading
	if err := godotenv.Load(); err != nil {
		// Check if we're in production/container mode
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	// Load config
	cfg := config.Load()

	// Set Gin mode (debug/release)
	gin.SetMode(cfg.GinMode)

	// The logger was built before .env was read; rebuild it with the configured level
	logger.SetDefault(logger.NewWithLevel(cfg.LogLevel))
	appLogger = logger.GetDefault()

	appLogger.Info("Starting topgun backend",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("commit", GitCommit),
	)

	// Initialize DB
	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("failed to connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Cache: Redis when reachable, in-process otherwise
	var cacheService cache.Service
	if db.Redis != nil {
		cacheService = cache.NewService(db.Redis)
	} else {
		cacheService = cache.NewMemoryService()
		appLogger.Warn("Using in-memory cache; payment header locks are per process")
	}

	// Initialize Rate Limiter
	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled && db.Redis != nil {
		rateLimiterConfig := &ratelimit.Config{
			Enabled:                 cfg.RateLimit.Enabled,
			WindowDuration:          cfg.RateLimit.WindowDuration,
			DefaultRequests:         cfg.RateLimit.DefaultRequests,
			HealthRequests:          cfg.RateLimit.HealthRequests,
			PaymentCriticalRequests: cfg.RateLimit.PaymentCriticalRequests,
			PaymentReadRequests:     cfg.RateLimit.PaymentReadRequests,
			ChatRequests:            cfg.RateLimit.ChatRequests,
			WhitelistedIPs:          cfg.RateLimit.WhitelistedIPs,
		}

		rateLimiter = ratelimit.NewRateLimiter(db.GetRedisClient(), rateLimiterConfig)
		appLogger.Info("Rate limiter initialized",
			slog.Bool("enabled", cfg.RateLimit.Enabled),
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("default_requests", cfg.RateLimit.DefaultRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	// Payment events
	var publisher notifications.PaymentEventPublisher = notifications.NoopPublisher{}
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()

	if cfg.Kafka.Enabled {
		producer, err := notifications.NewKafkaPaymentEventProducer(notifications.NewKafkaProducerConfig(cfg.Kafka))
		if err != nil {
			appLogger.Error("Failed to initialize payment event producer", slog.Any("error", err))
			appLogger.Info("Continuing without payment events")
		} else {
			publisher = producer
			appLogger.Info("Payment event producer initialized", slog.String("topic", cfg.Kafka.PaymentEventsTopic))
		}

		consumer, err := notifications.NewPaymentEventConsumer(
			notifications.NewConsumerConfig(cfg.Kafka),
			notifications.AuditHandler{Logger: appLogger},
		)
		if err != nil {
			appLogger.Error("Failed to initialize payment audit consumer", slog.Any("error", err))
		} else {
			consumer.Start(consumerCtx)

			// Ensure the consumer is stopped on shutdown
			defer func() {
				consumerCancel()
				if err := consumer.Stop(); err != nil {
					appLogger.Error("Error stopping payment audit consumer", slog.Any("error", err))
				}
			}()
		}
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			appLogger.Error("Error closing payment event producer", slog.Any("error", err))
		}
	}()

	verifier := auth.NewTokenService(cfg)
	gateway := paygateway.NewClient(cfg.PayGateway)

	// Setup router with rate limiter
	appRouter := routes.NewRouter(cfg, db, cacheService, verifier, gateway, publisher)
	router := setupRouter(cfg, db, rateLimiter, appRouter)

	// Background reconciler for cancellations the gateway confirmed but the ledger missed
	if cfg.Reconcile.Enabled {
		jobs := payments.NewJobProcessor(appRouter.PaymentService(), &payments.JobConfig{
			ReconcileInterval: cfg.Reconcile.Interval,
			ReconcileGrace:    cfg.Reconcile.Grace,
			BatchSize:         cfg.Reconcile.BatchSize,
		})
		jobs.Start(consumerCtx)
		defer jobs.Stop()
	}

	// HTTP server
	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		appLogger.Info("🚀 Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("api_status", fmt.Sprintf("http://localhost:%s%s/status", cfg.Port, cfg.GetAPIBasePath())),
			slog.String("chat", fmt.Sprintf("ws://localhost:%s/ws", cfg.Port)),
			slog.Bool("redis", db.Redis != nil),
			slog.Bool("rate_limiting", rateLimiter != nil),
			slog.Bool("kafka", cfg.Kafka.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

func setupRouter(cfg *config.Config, db *database.DB, rateLimiter *ratelimit.RateLimiter, appRouter *routes.Router) *gin.Engine {
	engine := gin.New()
	appLogger := logger.GetDefault()

	// Built-in middleware: logs requests + recovers from panics
	engine.Use(middleware.RequestID(), RequestLoggerMiddleware(appLogger), gin.Recovery())

	// CORS configuration
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Chat.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Global rate limiting middleware (applied to all routes)
	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter))
		appLogger.Info("Rate limiting middleware applied to all routes")
	}

	appRouter.SetupRoutes(engine)

	if db.Redis == nil {
		appLogger.Warn("Redis-backed features running on in-process fallbacks")
	}

	return engine
}

func RequestLoggerMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		l.LogHTTPRequest(c, duration)
	}
}
