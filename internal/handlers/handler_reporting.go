package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	portssvc "github.com/hivefi/ledger/internal/core/ports/services"
	"github.com/hivefi/ledger/internal/dto"
	"github.com/hivefi/ledger/internal/middleware"
)

type reportingHandler struct {
	reportingService portssvc.ReportingSvc
}

func newReportingHandler(rs portssvc.ReportingSvc) *reportingHandler {
	return &reportingHandler{reportingService: rs}
}

func registerReportingRoutes(rg *gin.RouterGroup, reportingService portssvc.ReportingSvc) {
	h := newReportingHandler(reportingService)

	reports := rg.Group("/reports")
	{
		reports.GET("/category-breakdown", h.categoryBreakdown)
		reports.GET("/category-breakdown/converted", h.convertedCategoryBreakdown)
	}
}

// categoryBreakdown godoc
// @Summary Per-category totals by currency
// @Description Sums raw amounts per category and currency without converting.
// @Tags reports
// @Produce  json
// @Success 200 {array} dto.CategoryCurrencyBreakdownResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to build breakdown"
// @Security BearerAuth
// @Router /reports/category-breakdown [get]
func (h *reportingHandler) categoryBreakdown(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	rows, err := h.reportingService.CategoryBreakdownByCurrencyUnconverted(c.Request.Context())
	if err != nil {
		respondWithError(c, logger, err, "Failed to build breakdown")
		return
	}
	c.JSON(http.StatusOK, dto.ToUnconvertedBreakdownResponse(rows))
}

// convertedCategoryBreakdown godoc
// @Summary Per-category totals in one currency
// @Description Converts every expense into the target currency and sums per category. Totals are rounded to two decimals.
// @Tags reports
// @Produce  json
// @Param   currency query string true "Target currency code" MinLength(3) MaxLength(3)
// @Success 200 {object} dto.ConvertedBreakdownResponse
// @Failure 400 {object} map[string]string "Invalid currency code"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 502 {object} map[string]string "Rate provider failure"
// @Failure 500 {object} map[string]string "Failed to build breakdown"
// @Security BearerAuth
// @Router /reports/category-breakdown/converted [get]
func (h *reportingHandler) convertedCategoryBreakdown(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	currency := strings.ToUpper(strings.TrimSpace(c.Query("currency")))
	if currency == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "currency query parameter is required"})
		return
	}

	rows, err := h.reportingService.CategoryBreakdownConverted(c.Request.Context(), currency)
	if err != nil {
		respondWithError(c, logger, err, "Failed to build converted breakdown")
		return
	}
	c.JSON(http.StatusOK, dto.ToConvertedBreakdownResponse(currency, rows))
}
