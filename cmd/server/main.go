package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/seed"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/session"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	logging.Setup(cfg.AppEnv)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBDriver == "postgres" && cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	ctx := context.Background()

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.MigrateShared(); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
	if err := database.BootstrapGroups(database.DB); err != nil {
		slog.Error("role group bootstrap failed", "error", err)
		os.Exit(1)
	}

	// Database log handler (ERROR+ async batch)
	dbLogHandler := logging.NewDBHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		logging.StdoutHandler(cfg.AppEnv),
		dbLogHandler,
	)))

	// Log cleanup (30-day retention)
	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, 30*24*time.Hour, cleanupDone)

	// Media storage
	var storage services.Storage
	var localMedia *services.LocalStorage
	switch cfg.MediaBackend {
	case "s3":
		s3Storage, err := services.NewS3Storage(ctx, cfg.S3Bucket, cfg.S3Endpoint)
		if err != nil {
			slog.Error("s3 storage init failed", "error", err)
			os.Exit(1)
		}
		storage = s3Storage
	default:
		localMedia = services.NewLocalStorage(cfg.MediaDir, cfg.MediaDomain)
		storage = localMedia
	}

	// Recently shown recommendations
	var recent session.Store = session.NewMemoryStore(cfg.RecentLimit)
	if cfg.RedisAddr != "" {
		redisStore, err := session.NewRedisStore(ctx, cfg.RedisAddr, cfg.RecentLimit, cfg.RecentTTL)
		if err != nil {
			slog.Warn("redis unavailable, keeping recent recommendations in memory", "error", err)
		} else {
			defer redisStore.Close()
			recent = redisStore
		}
	}

	// Activity event stream
	var publisher services.ActivityPublisher
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		kafkaPublisher := services.NewKafkaPublisher(brokers, cfg.KafkaActivityTopic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	// Services
	retry := database.Retrier{Attempts: cfg.LockRetryAttempts, Delay: cfg.LockRetryDelay}
	permissionService := services.NewPermissionService(database.DB)
	authService := services.NewAuthService(database.DB, cfg, storage)
	templateService := services.NewTemplateService(database.DB, permissionService, storage)
	instanceService := services.NewInstanceService(database.DB, permissionService, retry)
	recommendationService := services.NewRecommendationService(database.DB, permissionService, storage, recent, retry)
	activityService := services.NewActivityService(database.DB, permissionService, publisher)
	roleService := services.NewRoleService(database.DB, permissionService)
	renderer := services.NewRenderer(database.DB, storage)

	// Template catalog
	if cfg.TemplatesSeedPath != "" {
		catalog, err := seed.Load(cfg.TemplatesSeedPath)
		if err != nil {
			slog.Error("failed to load template catalog", "path", cfg.TemplatesSeedPath, "error", err)
			os.Exit(1)
		}
		if _, err := seed.Apply(ctx, templateService, catalog); err != nil {
			slog.Error("failed to apply template catalog", "error", err)
			os.Exit(1)
		}
	}

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    64 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	if localMedia != nil {
		app.Static("/media", localMedia.Dir())
	}

	// Routes
	routes.Setup(app, cfg, permissionService, routes.Handlers{
		Auth:            handlers.NewAuthHandler(authService),
		Health:          handlers.NewHealthHandler(database.Ping),
		Templates:       handlers.NewTemplateHandler(templateService, renderer),
		Instances:       handlers.NewInstanceHandler(instanceService, renderer),
		Recommendations: handlers.NewRecommendationHandler(recommendationService, renderer),
		Activity:        handlers.NewActivityHandler(activityService),
		Admin:           handlers.NewAdminHandler(roleService),
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	close(cleanupDone)
	dbLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// Close database connections
	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	kind := "internal_error"
	switch code {
	case fiber.StatusBadRequest:
		kind = "validation_error"
	case fiber.StatusUnauthorized:
		kind = "unauthorized"
	case fiber.StatusForbidden:
		kind = "permission_denied"
	case fiber.StatusNotFound:
		kind = "not_found"
	case fiber.StatusTooManyRequests:
		kind = "rate_limited"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
		"detail":  fiber.Map{"type": kind, "message": message},
	})
}
