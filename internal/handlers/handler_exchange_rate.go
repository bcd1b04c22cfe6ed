package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	portssvc "github.com/hivefi/ledger/internal/core/ports/services"
	"github.com/hivefi/ledger/internal/dto"
	"github.com/hivefi/ledger/internal/middleware"
	"github.com/hivefi/ledger/internal/utils"
	"github.com/shopspring/decimal"
)

type rateHandler struct {
	rates portssvc.ExchangeRateSvcFacade
}

func registerExchangeRateRoutes(rg *gin.RouterGroup, rates portssvc.ExchangeRateSvcFacade) {
	h := &rateHandler{rates: rates}
	rg.GET("/exchange-rates/:from/:to", h.getExchangeRate)
	rg.POST("/exchange-rates/refresh", h.refreshRates)
	rg.GET("/convert", h.convert)
}

// getExchangeRate godoc
// @Summary Get an exchange rate
// @Description Resolves the rate for a currency pair, served from cache while fresh.
// @Tags exchange rates
// @Produce  json
// @Param   from path string true "From Currency Code (3 letters)" MinLength(3) MaxLength(3)
// @Param   to   path string true "To Currency Code (3 letters)" MinLength(3) MaxLength(3)
// @Success 200 {object} dto.ExchangeRateResponse
// @Failure 400 {object} map[string]string "Invalid currency code format"
// @Failure 502 {object} map[string]string "Rate provider failure"
// @Failure 500 {object} map[string]string "Failed to retrieve exchange rate"
// @Security BearerAuth
// @Router /exchange-rates/{from}/{to} [get]
func (h *rateHandler) getExchangeRate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var pair dto.RatePair
	if err := c.ShouldBindUri(&pair); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Currency codes must be three letters"})
		return
	}
	fromCode, toCode := strings.ToUpper(pair.From), strings.ToUpper(pair.To)

	logger = logger.With(slog.String("from", fromCode), slog.String("to", toCode))

	rate, err := h.rates.GetRate(c.Request.Context(), fromCode, toCode)
	if err != nil {
		respondWithError(c, logger, err, "Failed to retrieve exchange rate")
		return
	}

	c.JSON(http.StatusOK, dto.ExchangeRateResponse{
		FromCurrencyCode: fromCode,
		ToCurrencyCode:   toCode,
		Rate:             rate,
	})
}

// convert godoc
// @Summary Convert an amount
// @Description Converts amount between currencies, rounded to three decimals half-up.
// @Tags exchange rates
// @Produce  json
// @Param   amount query string true "Amount"
// @Param   from query string true "From Currency Code"
// @Param   to query string true "To Currency Code"
// @Success 200 {object} dto.ConvertResponse
// @Failure 400 {object} map[string]string "Invalid parameters"
// @Failure 502 {object} map[string]string "Rate provider failure"
// @Failure 500 {object} map[string]string "Failed to convert"
// @Security BearerAuth
// @Router /convert [get]
func (h *rateHandler) convert(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var params dto.ConvertParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}
	amount, err := decimal.NewFromString(params.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a decimal number"})
		return
	}

	from := strings.ToUpper(params.From)
	to := strings.ToUpper(params.To)
	converted, err := h.rates.Convert(c.Request.Context(), amount, from, to)
	if err != nil {
		respondWithError(c, logger, err, "Failed to convert")
		return
	}

	c.JSON(http.StatusOK, dto.ConvertResponse{
		Amount:           amount,
		FromCurrencyCode: from,
		ToCurrencyCode:   to,
		Converted:        converted,
		Display:          utils.FormatMoney(converted, to),
	})
}

// refreshRates godoc
// @Summary Drop cached exchange rates
// @Description Clears the rate cache; the next lookup of every pair calls the provider.
// @Tags exchange rates
// @Success 204 "Cache cleared"
// @Security BearerAuth
// @Router /exchange-rates/refresh [post]
func (h *rateHandler) refreshRates(c *gin.Context) {
	h.rates.InvalidateRates(c.Request.Context())
	c.Status(http.StatusNoContent)
}
