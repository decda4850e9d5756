// Package setup bootstraps the application: configuration, session loggers,
// Redis connections, the document store, contest services, and the archive
// database.
package setup

import (
	"context"
	"log"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/swiglabs/swigboard/internal/archive"
	"github.com/swiglabs/swigboard/internal/contest"
	"github.com/swiglabs/swigboard/internal/docstore/redisstore"
	"github.com/swiglabs/swigboard/internal/redis"
	"github.com/swiglabs/swigboard/internal/setup/config"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config    // Application configuration
	Logger       *zap.Logger       // Main application logger
	DBLogger     *zap.Logger       // Database-specific logger
	DB           archive.Client    // Archive database connection pool
	RedisManager *redis.Manager    // Redis connection manager
	StatusClient rueidis.Client    // Redis client for worker status reporting
	Store        *redisstore.Store // Document store holding authoritative contest state
	Contest      *contest.Service  // Contest service bundle
	LogDir       string            // Base directory of this session's logs
	pprofServer  *pprofServer      // Debug HTTP server for pprof
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, logDir string) (*App, error) {
	// Load app configuration
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logger, dbLogger, err := GetLoggers(logDir, cfg.Common.Debug.LogLevel, cfg.Common.Debug.MaxLogsToKeep)
	if err != nil {
		return nil, err
	}

	// Redis manager provides connection pools for various subsystems
	redisManager := redis.NewManager(&cfg.Common.Redis, logger)

	// Document store holds the live contest collections
	docClient, err := redisManager.GetClient(redis.DocstoreDBIndex)
	if err != nil {
		return nil, err
	}

	store := redisstore.New(docClient, logger, contest.Collections()...)

	// Contest services read and write through the document store
	svc := contest.NewService(store, contest.Config{
		FeedPageSize:  cfg.Worker.Feed.PageSize,
		FeedRawWindow: cfg.Worker.Feed.RawWindow,
		FlagThreshold: cfg.Worker.Reconcile.FlagThreshold,
	}, logger)

	// Archive database stores hourly standings snapshots
	db, err := archive.NewConnection(ctx, &cfg.Common.PostgreSQL, dbLogger, true)
	if err != nil {
		return nil, err
	}

	// Get Redis client for worker status reporting
	statusClient, err := redisManager.GetClient(redis.WorkerStatusDBIndex)
	if err != nil {
		return nil, err
	}

	// Start pprof server if enabled
	var pprofSrv *pprofServer

	if cfg.Common.Debug.EnablePprof {
		srv, err := startPprofServer(cfg.Common.Debug.PprofPort, logger)
		if err != nil {
			logger.Error("Failed to start pprof server", zap.Error(err))
		} else {
			pprofSrv = srv

			logger.Warn("pprof debugging endpoint enabled - this should not be used in production!")
		}
	}

	// Bundle all initialized components
	return &App{
		Config:       cfg,
		Logger:       logger,
		DBLogger:     dbLogger.Named("database"),
		DB:           db,
		RedisManager: redisManager,
		StatusClient: statusClient,
		Store:        store,
		Contest:      svc,
		LogDir:       logDir,
		pprofServer:  pprofSrv,
	}, nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(ctx context.Context) {
	// Shutdown pprof server if running
	if s.pprofServer != nil {
		if err := s.pprofServer.srv.Shutdown(ctx); err != nil {
			s.Logger.Error("Failed to shutdown pprof server", zap.Error(err))
		}

		s.pprofServer.listener.Close()
	}

	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	// Close database connections
	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	// Close Redis connections last as other components might need it during cleanup
	s.RedisManager.Close()
}
