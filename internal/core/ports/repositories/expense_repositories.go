package repositories

import (
	"context"
	"time"

	"github.com/hivefi/ledger/internal/core/domain"
)

// ExpenseReader defines read operations for expense data.
// Listings are ordered newest date first.
type ExpenseReader interface {
	// FindAll retrieves every expense.
	FindAll(ctx context.Context) ([]domain.Expense, error)

	// FindByID retrieves a single expense, or apperrors.ErrNotFound.
	FindByID(ctx context.Context, expenseID string) (*domain.Expense, error)

	// FindByCategory retrieves the expenses of one category.
	FindByCategory(ctx context.Context, category string) ([]domain.Expense, error)

	// FindByDateRange retrieves expenses dated within [from, to], both inclusive.
	FindByDateRange(ctx context.Context, from, to time.Time) ([]domain.Expense, error)
}

// ExpenseWriter defines write operations for expense data.
type ExpenseWriter interface {
	// Insert persists a new expense.
	Insert(ctx context.Context, expense domain.Expense) error

	// MarkProcessed records requestID and reports whether this was its first use.
	// Implementations must do this atomically (insert-if-absent).
	MarkProcessed(ctx context.Context, requestID string) (bool, error)
}

// ExpenseRepositoryFacade combines all expense-related repository interfaces.
type ExpenseRepositoryFacade interface {
	ExpenseReader
	ExpenseWriter
}
