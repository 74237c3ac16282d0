package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mroshb/pair_quiz/internal/cache"
	"github.com/mroshb/pair_quiz/internal/config"
	"github.com/mroshb/pair_quiz/internal/database"
	"github.com/mroshb/pair_quiz/internal/handlers"
	"github.com/mroshb/pair_quiz/internal/lock"
	"github.com/mroshb/pair_quiz/internal/repositories"
	"github.com/mroshb/pair_quiz/internal/services"
	"github.com/mroshb/pair_quiz/pkg/logger"
	"github.com/mroshb/pair_quiz/telegram"
)

const lockTTL = 30 * time.Second

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	logger.Init()
	defer logger.Sync()

	logger.Info("Starting pair quiz server...")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", err)
	}

	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProductionSecurity(); err != nil {
			logger.Fatal("Production security validation failed", err)
		}
		logger.Info("Production security validation passed")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	if cfg.SeedQuestions {
		if err := database.SeedQuestions(db, cfg.QuestionsPerGame); err != nil {
			logger.Warn("Failed to seed questions", "error", err)
		}
	}

	// Redis is optional: without it statistics are not cached and locks are process-local.
	var redisCache *cache.RedisCache
	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.RedisAddr != "" {
		redisCache = cache.NewRedisCache(cfg)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := redisCache.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Fatal("Failed to connect to redis", err)
		}
		defer redisCache.Close()
		locker = lock.NewRedisLocker(redisCache.Client, lockTTL)
		logger.Info("Redis connected", "addr", cfg.RedisAddr)
	}

	bonusPolicy, err := services.ParseBonusPolicy(cfg.BonusPolicy)
	if err != nil {
		logger.Fatal("Invalid bonus policy", err)
	}

	userRepo := repositories.NewUserRepository(db)
	questionRepo := repositories.NewQuestionRepository(db)
	gameRepo := repositories.NewPairGameRepository(db)
	statsRepo := repositories.NewStatisticsRepository(db)

	gameSvc := services.NewPairGameService(gameRepo, questionRepo, userRepo, locker, services.PairGameConfig{
		QuestionsPerGame:  cfg.QuestionsPerGame,
		FinishGracePeriod: cfg.FinishGracePeriod,
		BonusPolicy:       bonusPolicy,
	})
	statsSvc := services.NewStatisticsService(statsRepo, userRepo, redisCache, cfg.StatsCacheTTL)
	gameSvc.OnGameFinished(statsSvc)

	var bot *telegram.Bot
	if cfg.BotToken != "" {
		bot, err = telegram.InitBot(cfg, userRepo, gameSvc, statsSvc)
		if err != nil {
			logger.Fatal("Failed to initialize bot", err)
		}
		logger.Info("Telegram bot started")
	}

	// Every finish listener is registered before the sweeper can finish games.
	sweeper := services.NewExpirySweeper(gameSvc, cfg.SweepInterval, cfg.PendingMatchTTL)
	sweeper.Start()

	manager := handlers.NewHandlerManager(cfg, db, redisCache, gameSvc, statsSvc)
	server := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           manager.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	manager.Close()
	sweeper.Stop()
	if bot != nil {
		bot.Stop()
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Info("Server stopped")
}
