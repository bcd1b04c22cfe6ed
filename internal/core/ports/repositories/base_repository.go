package repositories

import (
	"context"
)

// LedgerRepository groups the stores the ledger writes to.
type LedgerRepository interface {
	Expenses() ExpenseRepositoryFacade
	Transactions() TransactionRepositoryFacade

	// RunInTx calls fn with a repository whose writes commit together when fn
	// returns nil and are discarded otherwise.
	RunInTx(ctx context.Context, fn func(ctx context.Context, repo LedgerRepository) error) error
}

// sequentialLedger composes two independent stores. RunInTx gives no
// atomicity: writes already made by fn stay when it fails.
type sequentialLedger struct {
	expenses     ExpenseRepositoryFacade
	transactions TransactionRepositoryFacade
}

// NewSequentialLedger combines stores that cannot share a transaction.
// Expense rows left without a chain entry by a failure are picked up by
// LedgerService.Reconcile.
func NewSequentialLedger(expenses ExpenseRepositoryFacade, transactions TransactionRepositoryFacade) LedgerRepository {
	return &sequentialLedger{expenses: expenses, transactions: transactions}
}

func (l *sequentialLedger) Expenses() ExpenseRepositoryFacade {
	return l.expenses
}

func (l *sequentialLedger) Transactions() TransactionRepositoryFacade {
	return l.transactions
}

func (l *sequentialLedger) RunInTx(ctx context.Context, fn func(ctx context.Context, repo LedgerRepository) error) error {
	return fn(ctx, l)
}
