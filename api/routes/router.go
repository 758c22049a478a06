// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"topgun/internal/auth"
	"topgun/internal/chat"
	"topgun/internal/notifications"
	"topgun/internal/paygateway"
	"topgun/internal/payments"
	"topgun/internal/seats"
	"topgun/internal/shared/config"
	"topgun/internal/shared/database"
	"topgun/pkg/cache"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Router holds all route dependencies
type Router struct {
	config    *config.Config
	db        *database.DB
	cache     cache.Service
	verifier  auth.Verifier
	gateway   paygateway.Gateway
	publisher notifications.PaymentEventPublisher
	locker    payments.HeaderLocker

	seatService    seats.Service // For dependency injection
	paymentService payments.Service
}

// NewRouter creates a new router instance
func NewRouter(
	cfg *config.Config,
	db *database.DB,
	cacheService cache.Service,
	verifier auth.Verifier,
	gateway paygateway.Gateway,
	publisher notifications.PaymentEventPublisher,
) *Router {
	r := &Router{
		config:    cfg,
		db:        db,
		cache:     cacheService,
		verifier:  verifier,
		gateway:   gateway,
		publisher: publisher,
	}

	// One header at a time across instances when Redis is around, per process otherwise
	if redisClient := db.GetRedisClient(); redisClient != nil {
		r.locker = payments.NewRedisHeaderLocker(redisClient, cfg.Redis.HeaderLockTTL)
	} else {
		r.locker = payments.NewLocalHeaderLocker()
	}
	return r
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check and basic info endpoints
	r.setupHealthRoutes(engine)

	// Swagger UI
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API routes
	api := engine.Group(r.config.GetAPIBasePath())
	// The browser client addresses /seats, /room and /ws from the root
	root := engine.Group("/")

	// Seat catalogue first: payments price against it
	r.setupSeatRoutes(api, root)

	r.setupPaymentRoutes(api, root)

	r.setupChatRoutes(api, root)

	api.GET("/status", r.status)
}

// PaymentService returns the payment orchestrator built by SetupRoutes
func (r *Router) PaymentService() payments.Service {
	return r.paymentService
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		// Perform health checks
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "topgun-backend",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "topgun-backend",
			"redis":     r.db.GetRedisClient() != nil,
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", r.status)
}

func (r *Router) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "operational",
		"api_version": r.config.APIVersion,
		"kafka":       r.config.Kafka.Enabled,
		"timestamp":   time.Now(),
	})
}

// setupSeatRoutes configures the seat catalogue
func (r *Router) setupSeatRoutes(groups ...*gin.RouterGroup) {
	seatRepo := seats.NewRepository(r.db.GetPostgreSQL())
	seatService := seats.NewService(seatRepo, r.cache, r.config.Redis.SeatCacheTTL)
	seatController := seats.NewController(seatService)

	// Store seat service for dependency injection
	r.seatService = seatService

	for _, rg := range groups {
		seats.SetupSeatRoutes(rg, seatController)
	}
}

// setupPaymentRoutes configures the payment orchestrator
func (r *Router) setupPaymentRoutes(groups ...*gin.RouterGroup) {
	paymentRepo := payments.NewRepository(r.db.GetPostgreSQL())
	paymentService := payments.NewService(
		paymentRepo,
		r.gateway,
		r.seatService,
		r.locker,
		r.publisher,
		r.cache,
		r.config.Redis.PaymentCacheTTL,
	)
	paymentController := payments.NewController(paymentService)

	// Exposed for the background reconciler
	r.paymentService = paymentService

	for _, rg := range groups {
		payments.SetupPaymentRoutes(rg, paymentController, r.verifier)
	}
}

// setupChatRoutes configures rooms and the STOMP websocket
func (r *Router) setupChatRoutes(groups ...*gin.RouterGroup) {
	chatRepo := chat.NewRepository(r.db.GetPostgreSQL())
	hub := chat.NewHub()
	chatService := chat.NewService(chatRepo, hub, r.verifier, r.cache)
	chatController := chat.NewController(chatService)
	stompHandler := chat.NewStompHandler(hub, chatService, r.verifier, r.config.Chat)

	for _, rg := range groups {
		chat.SetupChatRoutes(rg, chatController, stompHandler, r.verifier)
	}
}
