package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pluginhub/pluginhub/internal/api"
	"github.com/pluginhub/pluginhub/internal/auth"
	"github.com/pluginhub/pluginhub/internal/config"
	"github.com/pluginhub/pluginhub/internal/database"
	"github.com/pluginhub/pluginhub/internal/server"
)

// Serve runs the HTTP API until ctx is done
func Serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	logger.Info("Starting pluginhub server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"sources", len(cfg.Discovery.Sources),
	)

	// The catalog is optional; migrate it when configured
	if cfg.Catalog.DSN != "" {
		if err := MigrateCatalog(ctx, &cfg.Catalog, logger); err != nil {
			return err
		}
	}

	authService, err := auth.NewService(
		cfg.Auth.JWTSecret,
		cfg.Auth.AdminUsername,
		cfg.Auth.AdminPassword,
		cfg.Auth.JWTExpiry(),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize auth service: %w", err)
	}

	stack, err := Build(cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	router := api.NewRouter(authService, stack.Manager, stack.Validator, logger)
	return server.New(&cfg.Server, router, logger).Run(ctx)
}

// MigrateCatalog applies the embedded catalog migrations
func MigrateCatalog(ctx context.Context, cfg *config.CatalogConfig, logger *slog.Logger) error {
	pool, err := database.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("catalog connection failed: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool); err != nil {
		return fmt.Errorf("catalog migrations failed: %w", err)
	}
	logger.Info("Catalog migrated", "dsn", cfg.Redacted())
	return nil
}
