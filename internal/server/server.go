// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"courtyard/internal/cache"
	"courtyard/internal/config"
	"courtyard/internal/database"
	"courtyard/internal/directory"
	"courtyard/internal/featureflags"
	"courtyard/internal/middleware"
	"courtyard/internal/models"
	"courtyard/internal/notifications"
	"courtyard/internal/push"
	"courtyard/internal/repository"
	"courtyard/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	postRepo       repository.PostRepository
	commentRepo    repository.CommentRepository
	blockRepo      repository.BlockRepository
	notifRepo      repository.NotificationRepository
	tokenRepo      repository.DeviceTokenRepository
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	featureFlags   *featureflags.Manager
	dispatcher     push.Dispatcher

	postService         *service.PostService
	commentService      *service.CommentService
	blockService        *service.BlockService
	notificationService *service.NotificationService
	deviceTokenService  *service.DeviceTokenService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	dispatcher, err := buildDispatcher(cfg)
	if err != nil {
		return nil, err
	}

	return NewServerWithDeps(cfg, db, redisClient, dispatcher)
}

// buildDispatcher picks the push backend: FCM when credentials are configured,
// otherwise a no-op so local development works without a Firebase project.
func buildDispatcher(cfg *config.Config) (push.Dispatcher, error) {
	if cfg.FCMCredentialsFile == "" {
		log.Println("FCM credentials not configured, push delivery disabled")
		return push.NoopDispatcher{}, nil
	}
	d, err := push.NewFCMDispatcher(context.Background(), cfg.FCMCredentialsFile, cfg.FCMProjectID)
	if err != nil {
		return nil, fmt.Errorf("fcm dispatcher init failed: %w", err)
	}
	return d, nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, dispatcher push.Dispatcher) (*Server, error) {
	prom := middleware.InitMetrics("courtyard-api")

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		postRepo:       repository.NewPostRepository(db),
		commentRepo:    repository.NewCommentRepository(db),
		blockRepo:      repository.NewBlockRepository(db),
		notifRepo:      repository.NewNotificationRepository(db),
		tokenRepo:      repository.NewDeviceTokenRepository(db),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		dispatcher:     dispatcher,
	}

	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		server.hub = notifications.NewHub()
	} else {
		server.notifier = notifications.NewNotifier(nil)
	}

	var dir *directory.Client
	if cfg.DirectoryURL != "" {
		dir = directory.NewClient(cfg.DirectoryURL)
	}

	server.blockService = service.NewBlockService(server.blockRepo)
	server.notificationService = service.NewNotificationService(
		server.notifRepo, server.tokenRepo, server.dispatcher, server.notifier, server.featureFlags, dir)
	server.deviceTokenService = service.NewDeviceTokenService(server.tokenRepo, dir)
	server.postService = service.NewPostService(server.postRepo)
	server.commentService = service.NewCommentService(
		server.commentRepo, server.postRepo, server.blockService,
		service.NewSubmissionLimiter(redisClient, 30, 200),
		server.notificationService)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and Resident ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware runs before middlewares that can short-circuit (e.g.
	// limiter) so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they are handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Courtyard Backend Metrics Dashboard",
	}))

	// Protected routes
	protected := api.Group("", middleware.AuthRequired)

	// Post routes
	posts := protected.Group("/posts")
	posts.Post("/", middleware.RateLimit(
		s.redis, 5, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Get("/", s.GetPosts)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments", s.CreateComment)
	posts.Put("/:id/comments/:commentId", s.UpdateComment)
	posts.Delete("/:id/comments/:commentId", s.DeleteComment)
	posts.Put("/:id", s.UpdatePost)
	posts.Get("/:id", s.GetPost)

	// Block routes
	blocks := protected.Group("/blocks")
	blocks.Get("/me", s.GetMyBlocks)
	blocks.Post("/:residentId", s.BlockResident)
	blocks.Delete("/:residentId", s.UnblockResident)

	// Notification routes
	notifs := protected.Group("/notifications")
	notifs.Get("/me", s.GetMyNotificationFeed)
	notifs.Get("/", s.GetNotifications)
	notifs.Post("/", middleware.AdminRequired, s.CreateNotification)
	notifs.Put("/:id", middleware.AdminRequired, s.UpdateNotification)
	notifs.Delete("/:id", middleware.AdminRequired, s.DeleteNotification)
	notifs.Get("/:id", s.GetNotification)

	// Service-to-service endpoints: resident notifications with reference
	// dedupe, and store-nothing ephemeral pushes
	internal := protected.Group("/internal")
	internal.Post("/notifications", s.CreateResidentNotification)
	internal.Post("/push", s.SendPushOnly)

	// Device token routes
	tokens := protected.Group("/device-tokens")
	tokens.Post("/", s.RegisterDeviceToken)
	tokens.Delete("/", s.UnregisterDeviceToken)

	// Websocket endpoint - token via query param, validated before upgrade
	api.Get("/ws/notifications", middleware.WebSocketAuthRequired, s.WebsocketHandler())

	// Admin routes
	admin := protected.Group("/admin", middleware.AdminRequired)
	admin.Get("/feature-flags", s.GetFeatureFlags)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName: "Courtyard API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	// Wire the hub to the Redis subscriber if available
	if s.hub != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				log.Printf("failed to start %s wiring: %v", s.hub.Name(), err)
			}
		}()
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the wiring goroutine
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			log.Printf("error shutting down %s: %v", s.hub.Name(), err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
