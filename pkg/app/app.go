// Package app wires configuration, storage, event publishing and services
// into a running engine. It is shared by the server and the operator scripts.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/boreallogic/delphi-app/pkg/config"
	"github.com/boreallogic/delphi-app/pkg/database"
	"github.com/boreallogic/delphi-app/pkg/events"
	"github.com/boreallogic/delphi-app/pkg/logging"
	"github.com/boreallogic/delphi-app/pkg/retry"
	"github.com/boreallogic/delphi-app/pkg/services"
)

// App holds the engine's long-lived dependencies.
type App struct {
	Config    *config.Config
	DB        *database.DB
	Redis     *redis.Client
	Publisher events.Publisher
	Scopes    *database.ScopeProvider

	Audit     services.AuditService
	Studies   services.StudyService
	Lifecycle services.StudyLifecycleService
	Ratings   services.RatingService

	logger *zap.Logger
}

// Options tune startup.
type Options struct {
	// RunMigrations applies pending schema migrations after connecting.
	RunMigrations bool
}

// New connects to PostgreSQL (retrying transient failures), optionally
// migrates, connects Redis when configured and builds every service.
func New(ctx context.Context, cfg *config.Config, opts Options, logger *zap.Logger) (*App, error) {
	dbCfg := &database.Config{
		URL:             cfg.Database.URL(),
		MaxConnections:  cfg.Database.MaxConnections,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		LockTimeout:     cfg.Database.LockTimeout,
	}
	logger.Info("Connecting to database",
		append([]zap.Field{zap.String("dsn", logging.SanitizeConnectionString(cfg.Database.ConnectionString()))},
			dbCfg.Fields()...)...)

	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		return database.NewConnection(ctx, dbCfg)
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	a := &App{Config: cfg, DB: db, Scopes: database.NewScopeProvider(db), logger: logger}

	if opts.RunMigrations {
		if err := database.RunPoolMigrations(db, logger); err != nil {
			a.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	a.Redis, err = database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	a.Publisher, err = events.NewFromConfig(cfg, a.Redis, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create event publisher: %w", err)
	}

	txm := database.NewTxManager()
	repos := services.NewRepositories()
	settings := services.SettingsFromConfig(cfg.Delphi)

	a.Audit = services.NewAuditService(repos.Audit, txm, logger)
	a.Studies = services.NewStudyService(txm, repos, a.Audit, settings, logger)
	a.Lifecycle = services.NewStudyLifecycleService(txm, repos, a.Audit, a.Publisher, settings, logger)
	a.Ratings = services.NewRatingService(txm, repos, a.Audit, settings, logger)

	return a, nil
}

// Close releases every connection. Safe to call on a partially built App.
func (a *App) Close() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.logger.Warn("Failed to close event publisher", zap.Error(err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// NewLogger builds the process logger for the given environment.
func NewLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "dev" || env == "test" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
