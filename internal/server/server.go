// Package server contains the HTTP handlers for the marketplace API.
package server

import (
	"context"
	"log/slog"
	"time"

	_ "puzzlemarket/docs" // swagger docs
	"puzzlemarket/internal/config"
	"puzzlemarket/internal/featureflags"
	"puzzlemarket/internal/locale"
	"puzzlemarket/internal/middleware"
	"puzzlemarket/internal/models"
	"puzzlemarket/internal/repository"
	"puzzlemarket/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
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
	clock          service.Clock
	stores         *repository.Stores
	featureFlags   *featureflags.Manager
	catalog        *locale.Catalog

	conversationService *service.ConversationService
	messageService      *service.MessageService
	blockService        *service.BlockService
	moderationService   *service.ModerationService
	ledgerService       *service.LedgerService
	ratingService       *service.RatingService
	standingService     *service.StandingService
}

// Option customises a Server built by NewServerWithDeps.
type Option func(*Server)

// WithClock replaces the wall clock used by every service.
func WithClock(clock service.Clock) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

// WithoutMetrics skips Prometheus HTTP instrumentation.
func WithoutMetrics() Option {
	return func(s *Server) {
		s.promMiddleware = nil
	}
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// The bootstrap layer establishes DB/Redis; tests pass an in-memory database
// and optionally a miniredis-backed client.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, opts ...Option) (*Server, error) {
	fallback := cfg.DefaultLocale
	if fallback == "" {
		fallback = locale.DefaultLocale
	}
	catalog, err := locale.Load(fallback)
	if err != nil {
		return nil, err
	}

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("puzzlemarket-api"),
		clock:          service.SystemClock,
		stores:         repository.NewStores(db),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		catalog:        catalog,
	}
	for _, opt := range opts {
		opt(server)
	}

	stores := server.stores
	server.conversationService = service.NewConversationService(stores, server.featureFlags, catalog, server.clock)
	server.messageService = service.NewMessageService(stores, catalog, server.clock)
	server.blockService = service.NewBlockService(stores, server.clock)
	server.moderationService = service.NewModerationService(stores, server.clock)
	server.ledgerService = service.NewLedgerService(stores, server.featureFlags, server.clock)
	server.ratingService = service.NewRatingService(stores, cfg.RatingWindow(), server.clock)
	server.standingService = service.NewStandingService(stores, cfg.StandingCacheTTL(), server.clock)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.Tracing())
	app.Use(middleware.RequestContext())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	// Security headers
	app.Use(helmet.New())

	app.Use(middleware.AccessLog())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Accept-Language, Authorization",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
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
		Title: "Puzzle Marketplace Metrics Dashboard",
	}))

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	protected := api.Group("", middleware.AuthRequired)

	// Conversation routes
	conversations := protected.Group("/conversations")
	conversations.Post("/", middleware.RateLimit(s.redis, middleware.StartConversationLimit), s.StartConversation)
	conversations.Get("/", s.ListConversations)
	conversations.Get("/badges", s.GetBadges)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	conversations.Get("/:id/messages", s.GetMessages)
	conversations.Post("/:id/messages", middleware.RateLimit(s.redis, middleware.PostMessageLimit), s.PostMessage)
	conversations.Post("/:id/read", s.MarkConversationRead)
	conversations.Post("/:id/respond", s.RespondToConversation)
	conversations.Post("/:id/report", middleware.RateLimit(s.redis, middleware.ReportConversationLimit), s.ReportConversation)
	conversations.Get("/:id", s.GetConversation)

	// Block routes
	blocks := protected.Group("/blocks")
	blocks.Get("/", s.GetMyBlocks)
	blocks.Post("/:playerId", s.BlockPlayer)
	blocks.Delete("/:playerId", s.UnblockPlayer)

	// Player-facing trust data
	players := protected.Group("/players")
	players.Get("/:id/standing", s.GetPlayerStanding)
	players.Get("/:id/ratings", s.GetPlayerRatings)

	// Ratings
	protected.Get("/ratings/pending", s.GetPendingRatings)
	protected.Post("/transactions/:id/ratings", s.RateTransaction)

	// Listing status callbacks from the listing service, acting as the seller
	listings := protected.Group("/listings")
	listings.Post("/:id/sold", s.MarkListingSold)
	listings.Put("/:id/reservation", s.ReserveListing)
	listings.Delete("/:id/reservation", s.RemoveReservation)

	// Admin routes
	admin := protected.Group("/admin", middleware.AdminRequired(s.stores.Players.IsAdmin))
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Get("/reports", s.GetReports)
	admin.Get("/reports/:id", s.GetReport)
	admin.Post("/reports/:id/resolve", s.ResolveReport)
	admin.Post("/actions", s.ApplyModerationAction)
	admin.Get("/players/:id", s.GetPlayerModeration)
}

// App builds the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Puzzle Marketplace API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
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

	// Redis backs caching, rate limits and the digest lock but requests
	// still succeed without it.
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
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus != "healthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"message": "puzzlemarket",
		"version": "1.0.0",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	s.app = s.App()
	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
