package dto

import (
	"github.com/shopspring/decimal"
)

// ExchangeRateResponse defines the structure for API responses containing a resolved rate.
type ExchangeRateResponse struct {
	FromCurrencyCode string          `json:"fromCurrencyCode"`
	ToCurrencyCode   string          `json:"toCurrencyCode"`
	Rate             decimal.Decimal `json:"rate"`
}

// RatePair is the currency pair of GET /exchange-rates/:from/:to.
type RatePair struct {
	From string `uri:"from" binding:"required,len=3,alpha"`
	To   string `uri:"to" binding:"required,len=3,alpha"`
}

// ConvertParams defines the query parameters of a conversion.
type ConvertParams struct {
	Amount string `form:"amount" binding:"required"`
	From   string `form:"from" binding:"required,len=3,alpha"`
	To     string `form:"to" binding:"required,len=3,alpha"`
}

// ConvertResponse carries a converted amount.
type ConvertResponse struct {
	Amount           decimal.Decimal `json:"amount"`
	FromCurrencyCode string          `json:"fromCurrencyCode"`
	ToCurrencyCode   string          `json:"toCurrencyCode"`
	Converted        decimal.Decimal `json:"converted"` // 3 decimals, half-up
	Display          string          `json:"display"`
}
