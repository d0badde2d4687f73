package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/usergate/usergate/src/config"
	"github.com/usergate/usergate/src/database"
	"github.com/usergate/usergate/src/handlers"
	"github.com/usergate/usergate/src/logging"
	"github.com/usergate/usergate/src/middleware"
	"github.com/usergate/usergate/src/repositories"
	"github.com/usergate/usergate/src/services"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize structured logging
	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	log.Info().
		Int("port", cfg.Port).
		Str("log_level", cfg.LogLevel).
		Msg("starting usergate")

	// Initialize database
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := database.New(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	log.Info().Msg("database connected")

	// Initialize JWT secret in middleware
	if err := middleware.SetJWTSecret(cfg.JWTSecret); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize JWT secret")
	}

	// Repositories
	keyRepo := repositories.NewKeyRepository(db.GetPool())
	userRepo := repositories.NewUserRepository(db.GetPool())
	adminRepo := repositories.NewAdminRepository(db.GetPool())

	// Services
	keyService := services.NewKeyService(keyRepo)
	provisionService := services.NewProvisionService(keyService, userRepo)
	adminService := services.NewAdminService(adminRepo)
	expiryService := services.NewExpiryService(keyRepo, cfg.EnableExpirySweep, cfg.ExpirySweepEvery)

	// Auto-seed operator account on first run
	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		hasAdmins, err := adminService.HasAdmins(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("failed to check for existing admin users")
		} else if !hasAdmins {
			if _, err := adminService.CreateAdminUser(context.Background(), cfg.AdminUsername, cfg.AdminPassword); err != nil {
				log.Error().Err(err).Msg("failed to create initial admin user")
			} else {
				log.Info().Str("username", cfg.AdminUsername).Msg("initial admin user created")
			}
		}
	}

	// Seed declared admin keys (optional)
	if cfg.SeedKeysFile != "" {
		seedFile, err := services.LoadSeedFile(cfg.SeedKeysFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.SeedKeysFile).Msg("failed to load seed file")
		}
		seedService := services.NewSeedService(keyService, keyRepo)
		if err := seedService.Apply(context.Background(), seedFile); err != nil {
			log.Fatal().Err(err).Msg("failed to seed admin keys")
		}
		log.Info().Int("keys", len(seedFile.Keys)).Msg("admin key seed applied")
	}

	// Start background expiry sweeper
	expiryService.Start(context.Background())

	// Create Gin router
	router := gin.New()

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(gin.Recovery())

	if cfg.AllowedOrigins != "" {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = []string{cfg.AllowedOrigins}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", handlers.AdminKeyHeader}
		router.Use(cors.New(corsConfig))
	}

	setupRoutes(router, db, keyService, adminService, provisionService, cfg)

	// HTTP server with timeouts (protect from Slowloris)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	expiryService.Stop()

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server shut down successfully")
}

func setupRoutes(router *gin.Engine, db *database.Database, keyService *services.KeyService, adminService *services.AdminService, provisionService *services.ProvisionService, cfg *config.Config) {
	healthHandler := handlers.NewHealthHandler(db)
	externalHandler := handlers.NewExternalHandler(provisionService)
	adminHandler := handlers.NewAdminHandler(keyService, adminService, provisionService, cfg.DefaultKeyTTL)

	// Health check endpoints
	router.GET("/health", healthHandler.HandleHealth)
	router.GET("/ready", healthHandler.HandleReady)
	router.GET("/info", healthHandler.HandleInfo)

	// External user creation (admin-key gated)
	router.POST("/api/external/users",
		middleware.NewIPRateLimitingMiddleware(middleware.RateLimitConfig{
			RequestsPerMinute: cfg.ExternalRatePerMinute,
			Burst:             cfg.ExternalRateBurst,
		}),
		externalHandler.HandleCreateUser)

	// Operator authentication (rate limited per IP)
	router.POST("/admin/login", middleware.AuthRateLimitMiddleware(), adminHandler.HandleAdminLogin)

	// Operator endpoints (all require authentication)
	admin := router.Group("/admin", middleware.AdminAuthMiddleware())
	{
		admin.POST("/keys", adminHandler.HandleCreateKey)
		admin.GET("/keys", adminHandler.HandleListKeys)
		admin.POST("/keys/:id/revoke", adminHandler.HandleRevokeKey)
		admin.POST("/keys/:id/extend", adminHandler.HandleExtendKey)
		admin.GET("/users", adminHandler.HandleListUsers)
	}
}
