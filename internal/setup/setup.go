// Package setup bootstraps the application's shared dependencies.
package setup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tribunal-mc/tribunal/internal/database"
	"github.com/tribunal-mc/tribunal/internal/database/dbretry"
	"github.com/tribunal-mc/tribunal/internal/redis"
	"github.com/tribunal-mc/tribunal/internal/setup/config"
	"github.com/tribunal-mc/tribunal/internal/storage"
	"github.com/tribunal-mc/tribunal/internal/storage/cache"
	"github.com/tribunal-mc/tribunal/internal/storage/flatfile"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config // Application configuration
	Logger       *zap.Logger    // Main application logger
	DBLogger     *zap.Logger    // Database-specific logger
	Store        storage.Store  // Durable record store (flat-file or PostgreSQL)
	ActiveCache  *cache.Active  // In-memory active punishment index
	RedisManager *redis.Manager // Redis connection manager, nil when disabled
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, logDir string) (*App, error) {
	// Load app configuration
	cfg, configDir, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logger, dbLogger, err := NewLoggers(&cfg.Debug, logDir)
	if err != nil {
		return nil, err
	}

	logger.Info("Loaded configuration", zap.String("configDir", configDir))

	dbretry.SetPolicy(
		cfg.Retry.MaxRetries,
		time.Duration(cfg.Retry.Delay)*time.Millisecond,
		time.Duration(cfg.Retry.MaxDelay)*time.Millisecond,
	)

	// Open the record store for the configured backend
	store, err := openStore(ctx, cfg, dbLogger)
	if err != nil {
		return nil, err
	}

	// Warm the active punishment cache from the store
	activeCache := cache.NewActive()

	active, err := store.AllActivePunishments(ctx)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to warm active cache: %w", err)
	}

	activeCache.Warm(active)
	logger.Info("Warmed active punishment cache", zap.Int("count", activeCache.Len()))

	// Redis manager provides the report cooldown store when enabled
	var redisManager *redis.Manager
	if cfg.Redis.Enabled {
		redisManager = redis.NewManager(&cfg.Redis, logger)
	}

	return &App{
		Config:       cfg,
		Logger:       logger,
		DBLogger:     dbLogger,
		Store:        store,
		ActiveCache:  activeCache,
		RedisManager: redisManager,
	}, nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(context.Context) {
	if err := s.Store.Close(); err != nil {
		s.Logger.Error("Failed to close record store", zap.Error(err))
	}

	if s.RedisManager != nil {
		s.RedisManager.Close()
	}

	// Sync buffered logs last
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config, dbLogger *zap.Logger) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		db, err := database.Connect(ctx, &cfg.PostgreSQL, dbLogger, true)
		if err != nil {
			return nil, err
		}

		return database.NewStore(ctx, db, dbLogger)
	case config.BackendFile:
		return flatfile.NewStore(cfg.Storage.DataDir, dbLogger)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Storage.Backend)
	}
}
