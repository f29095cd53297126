package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/boreallogic/delphi-app/pkg/app"
	"github.com/boreallogic/delphi-app/pkg/config"
	"github.com/boreallogic/delphi-app/pkg/database"
	"github.com/boreallogic/delphi-app/pkg/handlers"
	"github.com/boreallogic/delphi-app/pkg/middleware"
	"github.com/boreallogic/delphi-app/pkg/models"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := app.NewLogger(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Log startup configuration
	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)),
		zap.String("events_backend", cfg.Events.Backend),
		zap.Int("rating_min", cfg.Delphi.RatingMin),
		zap.Int("rating_max", cfg.Delphi.RatingMax),
		zap.String("role_source", cfg.Delphi.RoleSource))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := app.New(ctx, cfg, app.Options{RunMigrations: true}, logger)
	if err != nil {
		logger.Fatal("Failed to start engine", zap.Error(err))
	}
	defer engine.Close()

	mux := http.NewServeMux()

	scope := handlers.Middleware(database.WithDBScope(engine.DB, logger))
	facilitator := handlers.Middleware(middleware.RequireActor(logger, models.ActorFacilitator))
	panelist := handlers.Middleware(middleware.RequireActor(logger, models.ActorPanelist))

	// Register handlers
	handlers.NewHealthHandler(cfg, engine.DB, logger).RegisterRoutes(mux)
	handlers.NewStudyHandler(engine.Studies, logger).RegisterRoutes(mux, scope, facilitator)
	handlers.NewActionHandler(engine.Lifecycle, logger).RegisterRoutes(mux, scope, facilitator)
	handlers.NewRatingHandler(engine.Ratings, logger).RegisterRoutes(mux, scope, panelist)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Starting delphi engine",
		zap.String("addr", server.Addr),
		zap.String("version", cfg.Version))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}
