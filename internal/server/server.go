// Package server contains the HTTP handlers and routing for the feed API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "feedpulse/docs" // swagger docs
	"feedpulse/internal/bootstrap"
	"feedpulse/internal/cache"
	"feedpulse/internal/config"
	"feedpulse/internal/featureflags"
	"feedpulse/internal/jobs"
	"feedpulse/internal/middleware"
	"feedpulse/internal/models"
	"feedpulse/internal/notifications"
	"feedpulse/internal/repository"
	"feedpulse/internal/service"

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

// PostAPI is the post use-case surface the handlers call.
type PostAPI interface {
	CreatePost(ctx context.Context, in service.CreatePostInput) (*models.PostWithStats, error)
	GetPost(ctx context.Context, postID, userID uint) (*models.PostWithStats, error)
	ListPosts(ctx context.Context, in service.ListPostsInput) (*service.PostPage, error)
	UpdatePost(ctx context.Context, in service.UpdatePostInput) (*models.Post, error)
	DeletePost(ctx context.Context, in service.DeletePostInput) error
}

// RatingAPI applies rating transitions.
type RatingAPI interface {
	ApplyTransition(ctx context.Context, postID, userID uint, target models.RatingType) (models.PostStats, error)
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	jobsDone       chan struct{}
	featureFlags   *featureflags.Manager
	posts          PostAPI
	ratings        RatingAPI
	viewSync       *jobs.ViewSync
}

// NewServer connects to the database and Redis, applies the schema and
// wires the server.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{ApplySchema: true})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	middleware.InitMiddleware(cfg)

	postRepo := repository.NewPostRepository(db)
	ratingRepo := repository.NewRatingRepository(db)
	store := cache.NewRedisStore(redisClient)
	flags := featureflags.NewManager(cfg.FeatureFlags)

	reader := service.NewStatsReader(store, ratingRepo, cfg.RatingCacheTTL())
	notifier := notifications.NewNotifier(redisClient)

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("feedpulse-api"),
		featureFlags:   flags,
		posts:          service.NewPostService(postRepo, store, reader, flags),
		ratings:        service.NewRatingService(postRepo, ratingRepo, store, reader, notifier, cfg.RatingMaxRetries),
		viewSync:       jobs.NewViewSync(store, postRepo, jobs.ViewSyncConfigFrom(cfg)),
	}, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
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

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Feedpulse Metrics Dashboard",
	}))

	api.Get("/swagger/*", swagger.HandlerDefault)

	// Public reads; a valid token makes the caller count as a viewer.
	publicPosts := api.Group("/posts", middleware.OptionalAuth)
	publicPosts.Get("/", s.GetPosts)
	publicPosts.Get("/from-user/:userId", s.GetUserPosts)
	publicPosts.Get("/:id", s.GetPost)

	protected := api.Group("", middleware.AuthRequired)
	protected.Get("/feature-flags", s.GetFeatureFlags)

	posts := protected.Group("/posts")
	posts.Post("/", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Post("/:id/rating", middleware.RateLimit(
		s.redis, 60, time.Minute, "rate_post"), s.RatePost)
	posts.Patch("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)
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
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.db == nil {
		dbStatus = "unavailable"
	} else if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis == nil {
		redisStatus = "unavailable"
	} else if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus != "healthy" {
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

// NewApp builds the Fiber app with middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Feedpulse API",
		BodyLimit: 1 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the background view sync (when enabled) and serves HTTP.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel
	s.app = s.NewApp()

	s.jobsDone = make(chan struct{})
	if s.config.ViewSyncEnabled && s.viewSync != nil {
		go func() {
			defer close(s.jobsDone)
			s.viewSync.Run(s.shutdownCtx)
		}()
	} else {
		close(s.jobsDone)
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	// the sync tick in flight finishes its durable writes before connections close
	if s.jobsDone != nil {
		select {
		case <-s.jobsDone:
		case <-ctx.Done():
			middleware.Logger.Warn("view sync did not stop before shutdown deadline")
		}
	}

	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
			}
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
