package domain

import (
	"github.com/shopspring/decimal"
)

// CurrencyTotal is a raw sum of amounts in a single currency.
type CurrencyTotal struct {
	CurrencyCode string          `json:"currencyCode"`
	Total        decimal.Decimal `json:"total"`
}

// CategoryCurrencyBreakdown holds the unconverted per-currency sums of one category.
type CategoryCurrencyBreakdown struct {
	Category string          `json:"category"`
	Totals   []CurrencyTotal `json:"totals"`
}

// CategoryTotal is the sum of one category's expenses converted into CurrencyCode.
type CategoryTotal struct {
	Category     string          `json:"category"`
	CurrencyCode string          `json:"currencyCode"`
	Total        decimal.Decimal `json:"total"`
}
