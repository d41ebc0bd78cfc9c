package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/formlink/internal/access"
	"github.com/hugh/formlink/internal/api"
	"github.com/hugh/formlink/internal/archive"
	"github.com/hugh/formlink/internal/auth"
	"github.com/hugh/formlink/internal/blob"
	"github.com/hugh/formlink/internal/clients"
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
	"github.com/redis/go-redis/v9"
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

	logger.Info("starting formlink server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if cfg.Server.IsDevelopment() {
		if err := database.AutoMigrate(db); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis, archiving and shared rate limits disabled", "error", err)
		redisClient.Close()
		redisClient = nil
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}
	if cfg.Encryption.Key == "" {
		logger.Warn("ENCRYPTION_KEY not set, using generated key - archives will be unreadable after restart")
	}

	store, err := blob.New(context.Background(), cfg.Blob, logger)
	if err != nil {
		logger.Error("failed to create blob store", "error", err)
		os.Exit(1)
	}

	// Initialize services
	dir := directory.New(db)
	gate := access.NewGate(dir)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService, dir, gate)
	clientService := clients.NewService(db, gate, dir)
	linkService := links.NewService(db, gate, dir, clock.Real(), logger, links.Options{
		DefaultTTL:      cfg.Links.DefaultTTL(),
		MaxTTL:          cfg.Links.MaxTTL(),
		MaxPayloadBytes: cfg.Links.MaxPayloadBytes,
	})
	archiver := archive.New(db, store, encryptor, gate, logger)

	// Submissions are archived by the worker
	var asynqClient *asynq.Client
	if redisClient != nil {
		asynqClient = queue.NewClient(&cfg.Redis)
		linkService.SetNotifier(tasks.NewSubmissionNotifier(asynqClient))
	}

	// Create router
	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		JWTService:     jwtService,
		AuthService:    authService,
		Gate:           gate,
		ClientService:  clientService,
		LinkService:    linkService,
		Archiver:       archiver,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
		SecureCookies:  !cfg.Server.IsDevelopment(),
	})
	defer router.Close()

	// Create HTTP server
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if asynqClient != nil {
		asynqClient.Close()
	}

	if redisClient != nil {
		redisClient.Close()
	}

	if closer, ok := store.(interface{ Close() error }); ok {
		closer.Close()
	}

	// Close database connection
	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}
