package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hivefi/ledger/internal/core/services"
	"github.com/hivefi/ledger/internal/handlers"
	"github.com/hivefi/ledger/internal/middleware"
	"github.com/hivefi/ledger/internal/platform/config"
	"github.com/hivefi/ledger/internal/platform/storage"
	"github.com/hivefi/ledger/internal/repositories/ratesapi"
	"github.com/ulule/limiter/v3"
	limitermemory "github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// @title HiveFi Ledger API
// @version 1.0
// @description Expense ledger with a hash-chained audit log and cached currency conversion.

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @security BearerAuth
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(context.Background(), logger); err != nil {
		logger.Error("Server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// openBackends is swapped in tests.
var openBackends = storage.Open

// run wires the server and blocks serving it. Opened stores are closed on
// every return path.
func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	backends, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer func() {
		if cerr := backends.Close(); cerr != nil {
			logger.Error("Error closing store", slog.String("error", cerr.Error()))
		}
	}()

	r, err := newRouter(cfg, logger, backends)
	if err != nil {
		return err
	}

	logger.Info("Server starting",
		slog.String("port", cfg.Port),
		slog.String("store", cfg.StoreDriver),
		slog.Duration("fx_ttl", cfg.FXTTL),
	)
	return r.Run(":" + cfg.Port)
}

func newRouter(cfg *config.Config, logger *slog.Logger, backends *storage.Backends) (*gin.Engine, error) {
	provider := ratesapi.NewHTTPProvider(cfg.FXAPIURL,
		ratesapi.WithAPIKey(cfg.FXAPIKey),
		ratesapi.WithTimeout(cfg.FXTimeout),
	)
	serviceContainer := services.NewServiceContainer(cfg, backends.Repos, provider)

	rateStore, err := newRateLimitStore(backends)
	if err != nil {
		return nil, fmt.Errorf("rate limit store: %w", err)
	}

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", handlers.IdempotencyKeyHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if err := r.SetTrustedProxies(nil); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	if err := handlers.RegisterRoutes(r, cfg, serviceContainer, rateStore); err != nil {
		return nil, err
	}
	return r, nil
}

// newRateLimitStore shares limiter counters through Redis when it is configured.
func newRateLimitStore(b *storage.Backends) (limiter.Store, error) {
	if b.Redis == nil {
		return limitermemory.NewStore(), nil
	}
	return limiterredis.NewStoreWithOptions(b.Redis, limiter.StoreOptions{
		Prefix:   "hivefi:ratelimit",
		MaxRetry: 3,
	})
}
