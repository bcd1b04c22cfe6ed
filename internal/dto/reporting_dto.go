package dto

import (
	"github.com/hivefi/ledger/internal/core/domain"
	"github.com/hivefi/ledger/internal/utils"
	"github.com/shopspring/decimal"
)

// CurrencyTotalResponse is one currency bucket of an unconverted breakdown.
type CurrencyTotalResponse struct {
	CurrencyCode string          `json:"currencyCode"`
	Total        decimal.Decimal `json:"total"`
	Display      string          `json:"display"`
}

// CategoryCurrencyBreakdownResponse is one category of an unconverted breakdown.
type CategoryCurrencyBreakdownResponse struct {
	Category string                  `json:"category"`
	Totals   []CurrencyTotalResponse `json:"totals"`
}

// CategoryTotalResponse is one category of a converted breakdown.
type CategoryTotalResponse struct {
	Category     string          `json:"category"`
	CurrencyCode string          `json:"currencyCode"`
	Total        decimal.Decimal `json:"total"` // rounded to 2 decimals
	Display      string          `json:"display"`
}

// ConvertedBreakdownResponse is the converted breakdown plus its grand total.
type ConvertedBreakdownResponse struct {
	CurrencyCode string                  `json:"currencyCode"`
	Categories   []CategoryTotalResponse `json:"categories"`
	GrandTotal   decimal.Decimal         `json:"grandTotal"` // rounded to 2 decimals
	Display      string                  `json:"display"`
}

// ToUnconvertedBreakdownResponse converts raw per-currency sums to DTOs.
func ToUnconvertedBreakdownResponse(rows []domain.CategoryCurrencyBreakdown) []CategoryCurrencyBreakdownResponse {
	out := make([]CategoryCurrencyBreakdownResponse, len(rows))
	for i, row := range rows {
		totals := make([]CurrencyTotalResponse, len(row.Totals))
		for j, t := range row.Totals {
			totals[j] = CurrencyTotalResponse{
				CurrencyCode: t.CurrencyCode,
				Total:        t.Total,
				Display:      utils.FormatMoney(t.Total, t.CurrencyCode),
			}
		}
		out[i] = CategoryCurrencyBreakdownResponse{Category: row.Category, Totals: totals}
	}
	return out
}

// ToConvertedBreakdownResponse rounds converted totals to two decimals for presentation.
// The grand total is summed before rounding.
func ToConvertedBreakdownResponse(currency string, rows []domain.CategoryTotal) ConvertedBreakdownResponse {
	resp := ConvertedBreakdownResponse{
		CurrencyCode: currency,
		Categories:   make([]CategoryTotalResponse, len(rows)),
	}
	grand := decimal.Zero
	for i, row := range rows {
		grand = grand.Add(row.Total)
		rounded := utils.RoundPresentation(row.Total)
		resp.Categories[i] = CategoryTotalResponse{
			Category:     row.Category,
			CurrencyCode: row.CurrencyCode,
			Total:        rounded,
			Display:      utils.FormatMoney(rounded, row.CurrencyCode),
		}
	}
	resp.GrandTotal = utils.RoundPresentation(grand)
	resp.Display = utils.FormatMoney(resp.GrandTotal, currency)
	return resp
}
