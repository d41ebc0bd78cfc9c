package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/hugh/formlink/internal/access"
	"github.com/hugh/formlink/internal/archive"
	"github.com/hugh/formlink/internal/blob"
	"github.com/hugh/formlink/internal/clock"
	"github.com/hugh/formlink/internal/database"
	"github.com/hugh/formlink/internal/directory"
	"github.com/hugh/formlink/internal/links"
	"github.com/hugh/formlink/internal/tasks"
	"github.com/hugh/formlink/pkg/config"
	"github.com/hugh/formlink/pkg/crypto"
	"github.com/hugh/formlink/pkg/queue"
	"github.com/hugh/formlink/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting formlink worker")

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}
	if cfg.Encryption.Key == "" {
		logger.Warn("ENCRYPTION_KEY not set, using generated key - archives will be unreadable after restart")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := blob.New(ctx, cfg.Blob, logger)
	if err != nil {
		logger.Error("failed to create blob store", "error", err)
		os.Exit(1)
	}

	dir := directory.New(db)
	gate := access.NewGate(dir)
	linkService := links.NewService(db, gate, dir, clock.Real(), logger, links.Options{
		DefaultTTL:      cfg.Links.DefaultTTL(),
		MaxTTL:          cfg.Links.MaxTTL(),
		MaxPayloadBytes: cfg.Links.MaxPayloadBytes,
	})
	archiver := archive.New(db, store, encryptor, gate, logger)

	// Create Asynq server
	srv := queue.NewServer(&cfg.Redis, 10, logger)

	// Create task handler
	handler := tasks.NewHandler(logger, archiver, linkService, cfg.Links.Retention())

	// Register handlers
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	// Periodic retention sweep
	var scheduler *asynq.Scheduler
	if cfg.Links.Retention() > 0 {
		if err := util.ValidateCronExpr(cfg.Links.SweepCron); err != nil {
			logger.Error("invalid LINK_SWEEP_CRON", "cron", cfg.Links.SweepCron, "error", err)
			os.Exit(1)
		}

		scheduler = queue.NewScheduler(&cfg.Redis)
		if _, err := scheduler.Register(cfg.Links.SweepCron, tasks.NewSweepLinksTask(), asynq.Queue("low")); err != nil {
			logger.Error("failed to register link sweep", "error", err)
			os.Exit(1)
		}
		if err := scheduler.Start(); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}

		next, _ := util.NextCronTime(cfg.Links.SweepCron, clock.Real().Now())
		logger.Info("link sweep scheduled", "cron", cfg.Links.SweepCron, "next_run", next)
	}

	// Handle shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		if scheduler != nil {
			scheduler.Shutdown()
		}
		srv.Shutdown()
		cancel()
	}()

	logger.Info("worker started, waiting for tasks...")

	// Start the server
	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
	}

	// Wait for context cancellation
	<-ctx.Done()

	if closer, ok := store.(interface{ Close() error }); ok {
		closer.Close()
	}

	// Close database connection
	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}
