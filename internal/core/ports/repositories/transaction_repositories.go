package repositories

import (
	"context"

	"github.com/hivefi/ledger/internal/core/domain"
)

// TransactionReader defines read operations for the audit chain.
type TransactionReader interface {
	// FindAll retrieves every chain entry ordered by timestamp, then sequence.
	FindAll(ctx context.Context) ([]domain.Transaction, error)

	// LastHash returns the TxHash of the newest entry, or "" for an empty chain.
	LastHash(ctx context.Context) (string, error)

	// Head returns the newest entry, or nil for an empty chain.
	Head(ctx context.Context) (*domain.Transaction, error)
}

// TransactionWriter defines write operations for the audit chain.
type TransactionWriter interface {
	// Append persists a fully hashed entry. Entries are never updated afterwards.
	Append(ctx context.Context, tx domain.Transaction) error
}

// TransactionRepositoryFacade combines all transaction-related repository interfaces.
type TransactionRepositoryFacade interface {
	TransactionReader
	TransactionWriter
}
