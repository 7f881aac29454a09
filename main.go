package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/studshare-be/internal/api"
	"github.com/isdelr/studshare-be/internal/auth"
	"github.com/isdelr/studshare-be/internal/cache"
	"github.com/isdelr/studshare-be/internal/config"
	"github.com/isdelr/studshare-be/internal/database"
	"github.com/isdelr/studshare-be/internal/logger"
	"github.com/isdelr/studshare-be/internal/metrics"
	"github.com/isdelr/studshare-be/internal/monitoring"
	"github.com/isdelr/studshare-be/internal/services"
	"github.com/isdelr/studshare-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, !cfg.Production)

	if cfg.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is not set; registration and login will fail")
	}

	// Set up database
	db, err := database.New(cfg.DatabasePath, cfg.DBMaxConns)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	userService := services.NewUserService(db)
	tokenService := services.NewTokenService(db)
	favoriteService := services.NewFavoriteService(db)
	listingService := services.NewListingService(db).WithEvents(hub)

	var listingCache *cache.ListingCache
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		listingCache, err = cache.NewListingCache(ctx, cfg.RedisAddr, cfg.ListingCacheTTL)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, serving listings without cache")
		} else {
			listingService.WithCache(listingCache)
			log.Info().Str("addr", cfg.RedisAddr).Msg("Listing cache enabled")
		}
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL, tokenService)
	metricsManager := metrics.NewManager("studshare")

	// Set up and run the background scheduler
	scheduler, err := monitoring.NewScheduler(tokenService, cfg.TokenPurgeSchedule)
	if err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.TokenPurgeSchedule).Msg("Invalid token purge schedule")
	}
	scheduler.Run()

	// Set up router
	router := api.NewRouter(api.Dependencies{
		DB:               db,
		Hub:              hub,
		UserService:      userService,
		ListingService:   listingService,
		FavoriteService:  favoriteService,
		TokenService:     tokenService,
		Tokens:           tokens,
		Metrics:          metricsManager,
		AllowedOrigins:   cfg.AllowedOrigins,
		ProductionCookie: cfg.Production,
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	hub.Stop()

	if listingCache != nil {
		if err := listingCache.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close listing cache")
		}
	}

	log.Info().Msg("Server exiting")
}
