// Package storage opens the ledger store selected by configuration.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	portsrepo "github.com/hivefi/ledger/internal/core/ports/repositories"
	"github.com/hivefi/ledger/internal/platform/config"
	"github.com/hivefi/ledger/internal/repositories/cache/rediscache"
	"github.com/hivefi/ledger/internal/repositories/database/memory"
	"github.com/hivefi/ledger/internal/repositories/database/pgsql"
	"github.com/hivefi/ledger/internal/repositories/database/sqlite"
	"github.com/hivefi/ledger/pkg/database"
	"github.com/redis/go-redis/v9"
)

// Backends are the opened persistence connections.
type Backends struct {
	Repos portsrepo.RepositoryProvider

	// Redis is nil unless REDIS_ADDR is configured.
	Redis *redis.Client
}

// Close releases every opened connection.
func (b *Backends) Close() error {
	var errs []error
	if b.Repos.Close != nil {
		errs = append(errs, b.Repos.Close())
	}
	if b.Redis != nil {
		errs = append(errs, b.Redis.Close())
	}
	return errors.Join(errs...)
}

// Open connects the store named by cfg.StoreDriver, applying migrations where
// the driver has them. With cfg.RedisAddr set the idempotency guard moves to Redis.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backends, error) {
	repos, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	b := &Backends{Repos: repos}

	if cfg.RedisAddr == "" {
		return b, nil
	}
	client, err := rediscache.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	b.Redis = client
	b.Repos.Ledger = rediscache.NewIdempotentLedger(repos.Ledger, client, rediscache.DefaultKeyPrefix)
	logger.Info("Idempotency guard backed by Redis", slog.String("addr", cfg.RedisAddr))
	return b, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (portsrepo.RepositoryProvider, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		logger.Warn("Using in-memory store; data is lost on exit")
		return memory.NewRepositoryProvider(), nil

	case config.StoreSQLite:
		repos, err := sqlite.NewRepositoryProvider(ctx, cfg.SQLitePath)
		if err != nil {
			return portsrepo.RepositoryProvider{}, err
		}
		logger.Info("SQLite store opened", slog.String("path", cfg.SQLitePath))
		return repos, nil

	case config.StorePostgres:
		logger.Info("Running database migrations...")
		if err := pgsql.RunMigrations(cfg.DatabaseURL, logger); err != nil {
			return portsrepo.RepositoryProvider{}, err
		}
		pool, err := database.NewPgxPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return portsrepo.RepositoryProvider{}, err
		}
		return pgsql.NewRepositoryProvider(pool), nil
	}
	return portsrepo.RepositoryProvider{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
