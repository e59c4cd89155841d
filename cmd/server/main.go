// Package main runs the community event registration HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gatherpoint/backend/config"
	"github.com/gatherpoint/backend/internal/activities"
	"github.com/gatherpoint/backend/internal/auth"
	"github.com/gatherpoint/backend/internal/events"
	"github.com/gatherpoint/backend/internal/middleware"
	"github.com/gatherpoint/backend/internal/registration"
	"github.com/gatherpoint/backend/internal/venues"
	"github.com/gatherpoint/backend/pkg/cache"
	"github.com/gatherpoint/backend/pkg/database"
	"github.com/gatherpoint/backend/pkg/redis"
	"github.com/gatherpoint/backend/pkg/response"
	"github.com/gatherpoint/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Availability cache degrades to direct reads when Redis is down.
	var availabilityCache *cache.Cache
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("availability cache disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		availabilityCache = cache.New(rdb.Client, logger)
	}

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ImagesBucket:         cfg.AWS.ImagesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Events
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, availabilityCache, s3Client, logger)

	// Registration engine
	registrationStore := registration.NewRepository(pool)
	registrationService := registration.NewService(registrationStore, cacheOrNil(availabilityCache), logger)
	registrationHandler := registration.NewHandler(registrationService, logger)

	// Venue / activity reference data
	venueRepo := venues.NewRepository(pool)
	venueHandler := venues.NewHandler(venueRepo, eventRepo, logger)
	activityRepo := activities.NewRepository(pool)
	activityHandler := activities.NewHandler(activityRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Public reads
	router.GET("/events", eventHandler.List)
	router.GET("/events/:id", eventHandler.GetByID)
	router.GET("/events/:id/availability", eventHandler.Availability)
	router.GET("/events/:id/image-url", eventHandler.GetImageURL)
	router.GET("/venues", venueHandler.List)
	router.GET("/venues/:id", venueHandler.GetByID)
	router.GET("/venues/:id/events", venueHandler.ListEvents)
	router.GET("/activities", activityHandler.List)
	router.GET("/activities/:id", activityHandler.GetByID)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me)

		// Registration engine
		api.POST("/events/:id/register", registrationHandler.Register)
		api.DELETE("/registrations/:id", registrationHandler.Cancel)
		api.GET("/events/:id/can-register", registrationHandler.CanRegister)
		api.GET("/events/:id/is-registered", registrationHandler.IsRegistered)
		api.GET("/registrations/mine", registrationHandler.ListMine)
		api.GET("/events/:id/registrations", middleware.RequireRole("admin"), registrationHandler.ListByEvent)

		// Event management
		api.POST("/events", middleware.RequireRole("admin"), eventHandler.Create)
		api.PUT("/events/:id", middleware.RequireRole("admin"), eventHandler.Update)
		api.DELETE("/events/:id", middleware.RequireRole("admin"), eventHandler.Delete)
		api.POST("/events/:id/image", middleware.RequireRole("admin"), eventHandler.UploadImage)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// cacheOrNil keeps the engine's cache dependency a typed nil-free interface.
func cacheOrNil(c *cache.Cache) registration.AvailabilityCache {
	if c == nil {
		return nil
	}
	return c
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
