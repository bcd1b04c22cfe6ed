package services

import (
	"context"
	"time"

	"github.com/hivefi/ledger/internal/core/domain"
	"github.com/hivefi/ledger/internal/dto"
)

// ExpenseWriterSvc defines write operations for expenses.
type ExpenseWriterSvc interface {
	// RecordExpense validates and persists an expense and appends its CREATE
	// entry to the audit chain. A non-empty requestID makes the call idempotent:
	// repeats fail with apperrors.ErrDuplicateRequest.
	RecordExpense(ctx context.Context, req dto.RecordExpenseRequest, requestID string) (*domain.Expense, error)
}

// ExpenseReaderSvc defines read operations for expenses.
type ExpenseReaderSvc interface {
	ListAll(ctx context.Context) ([]domain.Expense, error)
	ListByCategory(ctx context.Context, category string) ([]domain.Expense, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]domain.Expense, error)
	Count(ctx context.Context) (int, error)
}

// ReportingSvc defines aggregate views over recorded expenses.
type ReportingSvc interface {
	// CategoryBreakdownByCurrencyUnconverted sums raw amounts per category and
	// currency. Amounts in different currencies are never combined.
	CategoryBreakdownByCurrencyUnconverted(ctx context.Context) ([]domain.CategoryCurrencyBreakdown, error)

	// CategoryBreakdownConverted converts every expense into currency and sums per category.
	CategoryBreakdownConverted(ctx context.Context, currency string) ([]domain.CategoryTotal, error)
}

// AuditSvc exposes the audit chain.
type AuditSvc interface {
	Transactions(ctx context.Context) ([]domain.Transaction, error)
	VerifyChain(ctx context.Context) (domain.VerifyResult, error)
	Reconcile(ctx context.Context) ([]string, error)
}

// LedgerSvcFacade combines all ledger-related service interfaces.
type LedgerSvcFacade interface {
	ExpenseWriterSvc
	ExpenseReaderSvc
	ReportingSvc
	AuditSvc
}
