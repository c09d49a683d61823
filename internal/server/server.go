// Package server contains the HTTP handlers for the application's API endpoints.
package server

import (
	"fmt"
	"time"

	"ripple/internal/cache"
	"ripple/internal/config"
	"ripple/internal/database"
	"ripple/internal/middleware"
	"ripple/internal/repository"
	"ripple/internal/service"
	"ripple/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
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
	promMiddleware *fiberprometheus.FiberPrometheus
	userRepo       repository.UserRepository
	postRepo       repository.PostRepository
	commentRepo    repository.CommentRepository
	likeRepo       repository.LikeRepository
	images         *storage.ImageStore
	postService    *service.PostService
	commentService *service.CommentService
	likeService    *service.LikeService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Tests use this with an in-memory database and miniredis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	middleware.InitMiddleware(cfg)

	images, err := storage.NewImageStore(cfg.ImageUploadDir, cfg.ImageMaxUploadSizeMB)
	if err != nil {
		return nil, fmt.Errorf("image store init failed: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	likeRepo := repository.NewLikeRepository(db)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("ripple-api"),
		userRepo:       userRepo,
		postRepo:       postRepo,
		commentRepo:    commentRepo,
		likeRepo:       likeRepo,
		images:         images,
	}
	server.postService = service.NewPostService(postRepo, likeRepo, images)
	server.commentService = service.NewCommentService(commentRepo, postRepo, likeRepo)
	server.likeService = service.NewLikeService(likeRepo, postRepo, commentRepo)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Context middleware propagates request ID and user ID into slog
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Uploaded post images
	app.Static("/uploads/posts", s.images.Dir())

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Get("/me", middleware.AuthRequired, s.Me)

	// Public reads resolve the viewer when a token is present so liked
	// state and private-post visibility are viewer-accurate.
	api.Get("/posts", middleware.OptionalAuth, s.GetPosts)
	api.Get("/posts/:id", middleware.OptionalAuth, s.GetPost)
	api.Get("/post/:postId/comments", middleware.OptionalAuth, s.GetComments)
	api.Get("/like/:type/:id", middleware.OptionalAuth, s.GetLikes)

	// Protected routes
	protected := api.Group("", middleware.AuthRequired)

	protected.Post("/posts", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "create_post"), s.CreatePost)
	protected.Put("/posts/:id", s.UpdatePost)
	protected.Post("/posts/:id", s.UpdatePost) // multipart clients send POST with _method=PUT
	protected.Delete("/posts/:id", s.DeletePost)

	protected.Post("/post/comments/:postId", middleware.RateLimit(
		s.redis, 30, time.Minute, "create_comment"), s.CreateComment)
	protected.Put("/post/comments/:commentId", s.UpdateComment)
	protected.Delete("/post/comments/:commentId", s.DeleteComment)

	protected.Post("/like/:type/:id", s.ToggleLike)

	user := api.Group("/user", middleware.AuthRequired)
	user.Put("/update-profile", s.UpdateProfile)
	user.Put("/update-password", s.UpdatePassword)
}

// LivenessCheck reports that the process is up.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// ReadinessCheck reports whether the database and cache are reachable.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	checks := fiber.Map{"database": "ok", "redis": "ok"}
	healthy := true

	sqlDB, err := s.db.DB()
	if err != nil || sqlDB.PingContext(c.Context()) != nil {
		checks["database"] = "unreachable"
		healthy = false
	}

	if s.redis == nil {
		checks["redis"] = "disabled"
	} else if err := s.redis.Ping(c.Context()).Err(); err != nil {
		checks["redis"] = "unreachable"
	}

	status := fiber.StatusOK
	if !healthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"status": checks})
}
