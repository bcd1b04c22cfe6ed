package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is one recorded outlay. It is created once and never mutated in place.
type Expense struct {
	ExpenseID    string          `json:"expenseID"`    // Primary Key (UUID)
	Category     string          `json:"category"`     // Not Null
	CurrencyCode string          `json:"currencyCode"` // 3-letter upper-case code
	Amount       decimal.Decimal `json:"amount"`       // Positive value
	Description  string          `json:"description"`  // Nullable
	Date         string          `json:"date"`         // Display form, dd/MM/yyyy
	CreatedAt    time.Time       `json:"createdAt"`
}
