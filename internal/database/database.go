// Package database
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pluginhub/pluginhub/internal/config"
	"github.com/pressly/goose/v3"
)

// Open builds a connection pool for the catalog and checks it with a ping.
func Open(ctx context.Context, cfg *config.CatalogConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, errors.New("catalog dsn is not configured")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog dsn: %w", err)
	}

	pool := cfg.Pool
	pool.ApplyDefaults()
	poolCfg.MaxConns = int32(pool.MaxConns)
	poolCfg.MinConns = int32(pool.MinConns)
	poolCfg.MaxConnLifetime = pool.MaxConnLifetime()
	poolCfg.MaxConnIdleTime = pool.MaxConnIdleTime()
	poolCfg.HealthCheckPeriod = pool.HealthCheckPeriod()

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach catalog database: %w", err)
	}

	return db, nil
}

// RunMigrations applies all pending catalog migrations using embedded SQL
// files, through a database/sql handle borrowed from pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(CatalogMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, MigrationsDir); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}

	return nil
}
