package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/cache"
	"github.com/Dosada05/tournament-engine/config"
	"github.com/Dosada05/tournament-engine/db"
	"github.com/Dosada05/tournament-engine/handlers"
	"github.com/Dosada05/tournament-engine/notifications"
	"github.com/Dosada05/tournament-engine/repositories"
	api "github.com/Dosada05/tournament-engine/routes"
	"github.com/Dosada05/tournament-engine/services"
	"github.com/Dosada05/tournament-engine/storage"
)

const (
	cacheJanitorInterval = time.Minute
	archiveFlushTimeout  = 20 * time.Second
)

// @title       Tournament Engine API
// @version     1.0
// @BasePath    /api
func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("storage", cfg.StorageDriver),
		slog.String("cache", cfg.CacheDriver))

	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	// Хранилище
	var gateway repositories.Gateway
	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		dbConn, err := db.Connect(cfg.DatabaseURL, cfg.DBConnectTimeout)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer closeDB(dbConn, logger)

		migrateCtx, cancel := context.WithTimeout(appCtx, 30*time.Second)
		err = db.Migrate(migrateCtx, dbConn)
		cancel()
		if err != nil {
			logger.Error("failed to apply database schema", slog.Any("error", err))
			os.Exit(1)
		}
		gateway = repositories.NewPostgresGateway(dbConn, logger)
		logger.Info("database connection established")
	default:
		gateway = repositories.NewMemoryGateway()
		logger.Warn("using in-memory storage, data is lost on restart")
	}

	// Кэш снимков турниров
	cacheOpts := cache.Options{SlidingTTL: cfg.CacheSlidingTTL, AbsoluteTTL: cfg.CacheAbsoluteTTL}
	var snapshots cache.Cache
	switch cfg.CacheDriver {
	case config.CacheDriverRedis:
		redisCtx, cancel := context.WithTimeout(appCtx, cfg.DBConnectTimeout)
		client, err := cache.NewRedisClient(redisCtx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Error("failed to close redis client", slog.Any("error", err))
			}
		}()
		snapshots = cache.NewRedis(client, cacheOpts, logger)
		logger.Info("redis cache connected")
	default:
		mem := cache.NewMemory(cacheOpts, logger)
		go mem.RunJanitor(appCtx, cacheJanitorInterval)
		snapshots = mem
	}

	// Уведомления: websocket комнаты и, если настроен R2, архив завершённых турниров.
	wsHub := notifications.NewHub(logger)
	go wsHub.Run(appCtx)
	sinks := notifications.FanOut{wsHub}

	var archive *notifications.ArchiveSink
	if r2cfg := cfg.R2(); r2cfg.Enabled() {
		store, err := storage.NewR2Store(appCtx, r2cfg)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 store", slog.Any("error", err))
			os.Exit(1)
		}
		archive = notifications.NewArchiveSink(store, logger)
		go archive.Run(appCtx)
		sinks = append(sinks, archive)
		logger.Info("completed tournaments will be archived", slog.String("bucket", r2cfg.BucketName))
	}

	// Сервисы
	tournamentService := services.NewTournamentService(
		gateway,
		snapshots,
		brackets.NewStrategyFactory(cfg.PointsPerWin, logger),
		services.NewMatchService(cfg.PointsPerWin),
		services.NewAccessGuard(cfg.SecretBcryptCost),
		cfg.RetryMaxAttempts,
		logger,
	)

	tournamentHandler := handlers.NewTournamentHandler(tournamentService, sinks, logger)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, tournamentService, logger)

	router := chi.NewRouter()
	api.SetupRoutes(router, logger, cfg.CORSAllowedOrigins, tournamentHandler, webSocketHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			stopApp()
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		} else {
			logger.Info("server shutdown complete")
		}
	}

	// Останавливаем hub и janitor до закрытия соединений.
	stopApp()
	if archive != nil {
		select {
		case <-archive.Done():
		case <-time.After(archiveFlushTimeout):
			logger.Warn("archive queue was not flushed before exit")
		}
	}
	logger.Info("application exited")
}

func closeDB(dbConn *sql.DB, logger *slog.Logger) {
	if err := dbConn.Close(); err != nil {
		logger.Error("failed to close database connection", slog.Any("error", err))
		return
	}
	logger.Info("database connection closed")
}
