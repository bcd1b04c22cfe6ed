package utils

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// PresentationPlaces is the number of decimals money aggregates are shown with.
const PresentationPlaces = 2

// RoundPresentation rounds an aggregate to PresentationPlaces, half away from zero.
func RoundPresentation(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(PresentationPlaces)
}

// FormatWithPrecision formats an amount with the given precision
// Example: amount 12.3456 with precision 2 returns "12.35"
func FormatWithPrecision(amount decimal.Decimal, precision int) string {
	return amount.StringFixed(int32(precision))
}

// FormatMoney renders amount in the display format of the currency code,
// e.g. 1234.5 USD -> "$1,234.50". Codes unknown to go-money fall back to
// "<amount> <CODE>" with two decimals.
func FormatMoney(amount decimal.Decimal, code string) string {
	code = strings.ToUpper(code)
	cur := money.GetCurrency(code)
	if cur == nil {
		return FormatWithPrecision(amount, PresentationPlaces) + " " + code
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}
