package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ngdi-portal/internal/config"
	"ngdi-portal/internal/notifier"
	"ngdi-portal/internal/repository"
	"ngdi-portal/internal/server"
	"ngdi-portal/internal/service"
	"ngdi-portal/internal/storage"
)

func main() {
	// Load .env before config so env overrides see it. Missing file is fine.
	_ = godotenv.Load()

	cfgPath := "configs/config.yml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}

	var logger *zap.Logger
	var err error

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(err)
	}

	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()

	// Database connection
	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	repository.MigrateDB(db, logger)

	// Redis backs the login rate limiter and the audit trail.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	// Object storage for avatars and attachments (optional)
	var storageClient *storage.Client
	if cfg.Storage.Enabled {
		storageClient, err = storage.NewClient(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize object storage", zap.Error(err))
		}
		logger.Info("Object storage initialized", zap.String("bucket", cfg.Storage.Bucket))
	}

	// Telegram bot for admin notifications (optional)
	userRepo := repository.NewUserRepository(db, logger)
	bot, err := notifier.NewBot(cfg, userRepo, logger)
	if err != nil {
		logger.Warn("Failed to initialize Telegram bot, continuing without it", zap.Error(err))
		bot = nil
	}

	var events service.Notifier = service.NoOpNotifier{}
	if bot != nil {
		events = bot
		go func() {
			if err := bot.Start(ctx); err != nil {
				logger.Error("Telegram bot failed", zap.Error(err))
			}
		}()
	}

	// Initialize and run the server
	srv := server.NewServer(db, redisClient, cfg, logger, storageClient, events)
	go srv.Run(cfg.Server.Port)

	<-ctx.Done()
	logger.Info("Application stopped.")
}
