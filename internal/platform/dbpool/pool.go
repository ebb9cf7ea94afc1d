package dbpool

import (
	"context"
	"fmt"
	"time"

	"github.com/auction-sync/project/internal/platform/env"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMinConns = 2
	defaultMaxConns = 20
)

// Config converts the environment settings into a pgxpool config, clamping
// nonsensical sizes back to the defaults.
func Config(cfg env.Postgres) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	minConns, maxConns := cfg.MinConns, cfg.MaxConns
	if minConns < 0 {
		minConns = defaultMinConns
	}
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	if minConns > maxConns {
		minConns = maxConns
	}

	poolCfg.MinConns = int32(minConns)
	poolCfg.MaxConns = int32(maxConns)
	poolCfg.MaxConnLifetime = positive(cfg.MaxConnLifetime, 30*time.Minute)
	poolCfg.MaxConnIdleTime = positive(cfg.MaxConnIdleTime, 5*time.Minute)
	poolCfg.HealthCheckPeriod = positive(cfg.HealthCheckPeriod, 30*time.Second)
	return poolCfg, nil
}

func New(ctx context.Context, cfg env.Postgres) (*pgxpool.Pool, error) {
	poolCfg, err := Config(cfg)
	if err != nil {
		return nil, err
	}
	return pgxpool.NewWithConfig(ctx, poolCfg)
}

func positive(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}
