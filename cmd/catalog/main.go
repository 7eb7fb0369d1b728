package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/user/ytcatalog-go/internal/config"
	"github.com/user/ytcatalog-go/internal/scheduler"
	"github.com/user/ytcatalog-go/internal/server"
	"github.com/user/ytcatalog-go/internal/store"
	syncpkg "github.com/user/ytcatalog-go/internal/sync"
	"github.com/user/ytcatalog-go/internal/youtube"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 30 * time.Second
)

func main() {
	// Structured JSON logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mysqlStore, err := store.NewMySQLStore(&cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	log.Info().Msg("Database connection established")

	client := youtube.NewClient(&youtube.Config{
		APIKey:           cfg.YouTube.APIKey,
		BaseURL:          cfg.YouTube.BaseURL,
		ThumbnailBaseURL: cfg.YouTube.ThumbnailBaseURL,
		ThumbnailQuality: cfg.YouTube.ThumbnailQuality,
		Timeout:          cfg.YouTube.Timeout,
		RateLimit:        cfg.YouTube.RateLimit,
	})
	log.Info().Msg("API client initialized")

	sy := syncpkg.NewSyncer(client, cfg.Sync.RefreshDuration)

	sched := scheduler.NewScheduler(mysqlStore, sy, client, &cfg.Sync)

	httpServer := server.NewServer(mysqlStore, sy, client)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.Start(cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	sched.Start(ctx)
	log.Info().Msg("Scheduler started")

	log.Info().Msg("Catalog service started successfully")

	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	log.Info().Msg("Starting graceful shutdown...")

	sched.Stop()
	log.Info().Msg("Scheduler stopped")

	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping HTTP server")
	} else {
		log.Info().Msg("HTTP server stopped")
	}

	if err := mysqlStore.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database connection")
	} else {
		log.Info().Msg("Database connection closed")
	}

	cancel()

	select {
	case <-shutdownCtx.Done():
		if shutdownCtx.Err() == context.DeadlineExceeded {
			log.Warn().Msg("Shutdown timeout exceeded, forcing exit")
		}
	default:
		log.Info().Msg("Graceful shutdown completed")
	}
}
