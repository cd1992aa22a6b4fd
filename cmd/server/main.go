package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"storepos/m/internal/activity"
	"storepos/m/internal/api"
	"storepos/m/internal/catalog"
	"storepos/m/internal/config"
	"storepos/m/internal/database"
	"storepos/m/internal/logging"
	"storepos/m/internal/migrations"
	"storepos/m/internal/reports"
	"storepos/m/internal/sales"
	"storepos/m/internal/store"
	"storepos/m/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.New(cfg.LogFormat, cfg.LogLevel)

	srv, s, err := newServer(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer s.Close()

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("POS server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
}

// newServer opens and migrates the database, prepares the default admin and
// catalog seed, and returns the configured HTTP server. The caller closes the
// store.
func newServer(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*http.Server, *store.Store, error) {
	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	s := store.New(db)

	log := activity.New(s, logger)
	userSvc := users.NewService(s, log, logger, users.Options{
		LockThreshold: cfg.LoginLockThreshold,
		LockWindow:    cfg.LoginLockWindow,
	})
	if _, err := userSvc.EnsureDefaultAdmin(ctx, cfg.AdminPassword); err != nil {
		_ = s.Close()
		return nil, nil, fmt.Errorf("create default admin: %w", err)
	}

	catalogSvc := catalog.NewService(s, log, logger)
	if cfg.ProductsCSV != "" {
		catalogSvc.LoadFile(ctx, cfg.ProductsCSV)
	}

	handler := api.New(api.Services{
		Users:    userSvc,
		Catalog:  catalogSvc,
		Sales:    sales.NewService(s, log, logger),
		Reports:  reports.NewService(s),
		Activity: log,
	}, api.Options{
		Secret:         cfg.Secret,
		TokenTTL:       cfg.TokenTTL,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}, logger)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      handler.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv, s, nil
}
