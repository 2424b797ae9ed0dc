package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPGXPool creates the pgx pool the repositories run on
func NewPGXPool(config Config) (*pgxpool.Pool, error) {
	config = config.withDefaults()

	poolConfig, err := pgxpool.ParseConfig(config.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx config: %w", err)
	}

	if config.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	}
	if config.ConnMaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.ConnMaxIdleTime
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping pgx pool: %w", err)
	}

	return pool, nil
}
