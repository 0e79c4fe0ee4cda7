package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terra-clan/challenge-engine/internal/api"
	"github.com/terra-clan/challenge-engine/internal/cache"
	"github.com/terra-clan/challenge-engine/internal/challenge"
	"github.com/terra-clan/challenge-engine/internal/cleanup"
	"github.com/terra-clan/challenge-engine/internal/config"
	"github.com/terra-clan/challenge-engine/internal/events"
	"github.com/terra-clan/challenge-engine/internal/llm"
	"github.com/terra-clan/challenge-engine/internal/storage"
	"github.com/terra-clan/challenge-engine/internal/templates"
	"github.com/terra-clan/challenge-engine/internal/user"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting challenge-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Run database migrations
	slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
	if err := storage.Migrate(initCtx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize database repository
	repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
	})
	if err != nil {
		slog.Error("failed to create database repository", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected successfully")

	// Initialize Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	slog.Info("redis connected successfully")

	// Event bus: in-process dispatcher fanned out with the Redis
	// pub/sub publisher, plus a WebSocket hub on the dispatcher
	dispatcher := events.NewDispatcher()
	hub := events.NewHub(dispatcher)
	bus := events.NewFanout(dispatcher, events.NewRedisPublisher(redisCache.Client(), cfg.Redis.EventChannel))

	// LLM-backed generation and evaluation services
	llmClient, err := llm.NewClient(llm.Config{
		APIKey:  cfg.OpenRouter.APIKey,
		Model:   cfg.OpenRouter.Model,
		Timeout: cfg.OpenRouter.Timeout,
	}, logger)
	if err != nil {
		slog.Error("failed to create llm client", "error", err)
		os.Exit(1)
	}
	generator := llm.NewGeneratorService(llmClient)
	evaluator := llm.NewEvaluatorService(llmClient)

	// Load challenge templates
	templateLoader := templates.NewLoader()
	if err := templateLoader.LoadFromDir(cfg.Templates.Dir); err != nil {
		slog.Warn("failed to load templates from dir", "dir", cfg.Templates.Dir, "error", err)
	}

	// Domain services
	userService := user.NewService(repo, logger)
	progressService := user.NewProgressService(repo, logger)
	journeyService := user.NewJourneyService(repo, bus, logger)
	challengeService := challenge.NewService(repo, redisCache, bus, logger)
	factory := challenge.NewFactory()

	coordinator := challenge.NewCoordinator(
		userService,
		progressService,
		journeyService,
		challengeService,
		factory,
		templateLoader,
		generator,
		evaluator,
		logger,
	)

	// Create context with cancellation for background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start stale-challenge cleanup worker
	cleaner := cleanup.NewCleaner(repo, challengeService, cfg.Cleanup.Interval, cfg.Cleanup.MaxAge)
	cleaner.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, coordinator, challengeService, journeyService, templateLoader, hub, repo)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Stop background workers
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Let in-flight secondary effects finish before closing connections
	coordinator.WaitForSecondaries()

	if err := redisCache.Close(); err != nil {
		slog.Error("redis close error", "error", err)
	}
	if err := repo.Close(); err != nil {
		slog.Error("repository close error", "error", err)
	}

	slog.Info("challenge-engine stopped")
}
