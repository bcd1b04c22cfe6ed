package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	connectTimeout = 10 * time.Second
	maxPoolConns   = 10
)

// NewPgxPool opens a pool against databaseURL and pings it once. The pool is
// capped at maxPoolConns unless the URL sets pool_max_conns itself.
func NewPgxPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("postgres: empty database url")
	}

	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse url: %w", err)
	}
	poolCfg.ConnConfig.ConnectTimeout = connectTimeout
	if poolCfg.MaxConns < maxPoolConns {
		poolCfg.MaxConns = maxPoolConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping %s: %w", poolCfg.ConnConfig.Host, err)
	}

	slog.Info("PostgreSQL pool ready",
		slog.String("host", poolCfg.ConnConfig.Host),
		slog.String("database", poolCfg.ConnConfig.Database),
		slog.Int("max_conns", int(poolCfg.MaxConns)))
	return pool, nil
}
