// Package db provides database connection infrastructure.
// This is part of the platform layer and contains no business logic.
package db

import (
	"context"
	"fmt"
	"time"

	"leadflow/platform/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

const healthCheckPeriod = time.Minute

// NewPool connects to Postgres with the pool sizing from cfg and pings once.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// PoolConfig parses the database URL and applies the configured limits.
// Zero values keep the pgxpool defaults.
func PoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if n := cfg.GetDBMaxConns(); n > 0 {
		poolConfig.MaxConns = int32(n)
	}
	if n := cfg.GetDBMinConns(); n > 0 {
		poolConfig.MinConns = min(int32(n), poolConfig.MaxConns)
	}
	if d := cfg.GetDBMaxConnLifetime(); d > 0 {
		poolConfig.MaxConnLifetime = d
	}
	if d := cfg.GetDBMaxConnIdleTime(); d > 0 {
		poolConfig.MaxConnIdleTime = d
	}
	poolConfig.HealthCheckPeriod = healthCheckPeriod
	return poolConfig, nil
}
