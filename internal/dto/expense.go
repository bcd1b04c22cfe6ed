package dto

import (
	"time"

	"github.com/hivefi/ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// RecordExpenseRequest defines the structure for recording a new expense.
type RecordExpenseRequest struct {
	Category     string          `json:"category" binding:"required"`
	CurrencyCode string          `json:"currencyCode" binding:"required,len=3,alpha"`
	Amount       decimal.Decimal `json:"amount"` // Must be > 0, checked by the service
	Description  string          `json:"description" binding:"max=500"`
	Date         string          `json:"date" binding:"required"` // dd/MM/yyyy or d-M-yyyy
}

// ListExpensesParams holds the optional filters of the expense listing.
type ListExpensesParams struct {
	Category string `form:"category"`
	From     string `form:"from"` // dd/MM/yyyy, requires To
	To       string `form:"to"`   // dd/MM/yyyy, requires From
}

// ExpenseResponse defines the structure for API responses containing expense details.
type ExpenseResponse struct {
	ExpenseID    string          `json:"expenseID"`
	Category     string          `json:"category"`
	CurrencyCode string          `json:"currencyCode"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Date         string          `json:"date"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// ListExpensesResponse wraps a listing of expenses.
type ListExpensesResponse struct {
	Expenses []ExpenseResponse `json:"expenses"`
	Count    int               `json:"count"`
}

// CountResponse carries the number of recorded expenses.
type CountResponse struct {
	Count int `json:"count"`
}

// ToExpenseResponse converts a domain.Expense to ExpenseResponse DTO
func ToExpenseResponse(e *domain.Expense) ExpenseResponse {
	return ExpenseResponse{
		ExpenseID:    e.ExpenseID,
		Category:     e.Category,
		CurrencyCode: e.CurrencyCode,
		Amount:       e.Amount,
		Description:  e.Description,
		Date:         e.Date,
		CreatedAt:    e.CreatedAt,
	}
}

// ToListExpensesResponse converts a slice of domain.Expense to a ListExpensesResponse.
func ToListExpensesResponse(expenses []domain.Expense) ListExpensesResponse {
	out := make([]ExpenseResponse, len(expenses))
	for i := range expenses {
		out[i] = ToExpenseResponse(&expenses[i])
	}
	return ListExpensesResponse{Expenses: out, Count: len(out)}
}
