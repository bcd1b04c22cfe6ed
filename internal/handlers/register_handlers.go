package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hivefi/ledger/cmd/docs"
	portssvc "github.com/hivefi/ledger/internal/core/ports/services"
	"github.com/hivefi/ledger/internal/middleware"
	"github.com/hivefi/ledger/internal/platform/config"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/ulule/limiter/v3"
)

const apiV1Base = "/api/v1"

// RegisterRoutes mounts /health, the authenticated /api/v1 group and, outside
// production, the swagger UI. rateStore backs the per-IP limiter of /api/v1.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, services *portssvc.ServiceContainer, rateStore limiter.Store) error {
	rate, err := limiter.NewRateFromFormatted(cfg.RateLimit)
	if err != nil {
		return fmt.Errorf("invalid RATE_LIMIT %q: %w", cfg.RateLimit, err)
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	v1 := r.Group(apiV1Base,
		middleware.RateLimit(limiter.New(rateStore, rate)),
		middleware.AuthMiddleware(cfg.JWTSecret, cfg.JWTIssuer),
	)
	registerExpenseRoutes(v1, services.Ledger)
	registerLedgerRoutes(v1, services.Ledger)
	registerReportingRoutes(v1, services.Ledger)
	registerExchangeRateRoutes(v1, services.ExchangeRate)

	if !cfg.IsProduction {
		docs.SwaggerInfo.BasePath = apiV1Base
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	return nil
}
