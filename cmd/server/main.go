package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Naing-Lynn-Aung/chatting-app/internal/api"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/config"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/engine"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/events"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/media"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/presence"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/purge"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize the durable store: Redis when configured, in-memory
	// otherwise (development only)
	var (
		st          store.Store
		redisClient *redis.Client
	)
	if cfg.RedisURL != "" {
		redisStore, err := store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		st = redisStore
		redisClient = redisStore.Client()
		logger.Info().Msg("connected to Redis")
	} else {
		st = store.NewMemoryStore()
		logger.Warn().Msg("no REDIS_URL set, using in-memory store")
	}
	defer st.Close()

	// Media store
	var releaser media.Releaser = media.Noop{}
	if cfg.CloudinaryCloud != "" {
		releaser = media.NewCloudinary(cfg.CloudinaryCloud, cfg.CloudinaryKey, cfg.CloudinarySecret)
		logger.Info().Str("cloud", cfg.CloudinaryCloud).Msg("media release enabled")
	}

	// Core components
	dispatcher := events.NewDispatcher(logger)
	registry := presence.NewRegistry()
	eng := engine.New(st, releaser, registry, dispatcher, logger,
		engine.WithStoreTimeout(cfg.StoreTimeout))

	// Purge scheduler
	sweeper := purge.NewSweeper(st, releaser, dispatcher, logger, cfg.PurgeGrace)
	sweeper.SetStoreTimeout(cfg.StoreTimeout)
	scheduler, err := purge.NewScheduler(sweeper, cfg.PurgeInterval, cfg.PurgeCron, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid purge schedule")
	}
	go scheduler.Run(ctx)

	// Create router
	router := api.NewRouter(api.RouterConfig{
		Logger:      logger,
		Store:       st,
		Engine:      eng,
		RedisClient: redisClient,
		Whitelist:   cfg.RateLimitWhitelist,
		CORSOrigins: cfg.CORSOrigins,
	})

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting chat server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")
	stop()

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
