package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hivefi/ledger/internal/apperrors"
	"github.com/hivefi/ledger/internal/core/domain"
	portsrepo "github.com/hivefi/ledger/internal/core/ports/repositories"
)

// ChainWrite performs the writes that accompany one chain entry and returns
// the action and expense the entry should describe.
type ChainWrite func(ctx context.Context, repo portsrepo.LedgerRepository) (domain.TransactionAction, domain.Expense, error)

// HashChainLog appends hash-linked audit entries. Reading the head, hashing
// and appending happen under one mutex so concurrent writers cannot fork the chain.
type HashChainLog struct {
	BaseService
	repo  portsrepo.LedgerRepository
	now   func() time.Time
	newID func() string

	mu sync.Mutex
}

// HashChainOption configures a HashChainLog.
type HashChainOption func(*HashChainLog)

// WithChainClock replaces time.Now for entry timestamps.
func WithChainClock(now func() time.Time) HashChainOption {
	return func(l *HashChainLog) {
		if now != nil {
			l.now = now
		}
	}
}

// WithTransactionIDs replaces the transaction id generator.
func WithTransactionIDs(newID func() string) HashChainOption {
	return func(l *HashChainLog) {
		if newID != nil {
			l.newID = newID
		}
	}
}

// NewHashChainLog creates a HashChainLog writing through repo.
func NewHashChainLog(repo portsrepo.LedgerRepository, opts ...HashChainOption) *HashChainLog {
	l := &HashChainLog{
		repo:  repo,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append adds an entry describing action on expense.
func (l *HashChainLog) Append(ctx context.Context, action domain.TransactionAction, expense domain.Expense) (*domain.Transaction, error) {
	return l.Record(ctx, func(context.Context, portsrepo.LedgerRepository) (domain.TransactionAction, domain.Expense, error) {
		return action, expense, nil
	})
}

// Record runs write and appends the entry it describes inside one repository
// transaction. If write or the append fails nothing is committed.
func (l *HashChainLog) Record(ctx context.Context, write ChainWrite) (*domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var appended domain.Transaction
	err := l.repo.RunInTx(ctx, func(ctx context.Context, repo portsrepo.LedgerRepository) error {
		action, expense, err := write(ctx, repo)
		if err != nil {
			return err
		}
		if !action.IsValid() {
			return fmt.Errorf("%w: unknown transaction action %q", apperrors.ErrValidation, action)
		}

		txRepo := repo.Transactions()
		head, err := txRepo.Head(ctx)
		if err != nil {
			return fmt.Errorf("failed to read chain head: %w", err)
		}

		entry := domain.Transaction{
			TransactionID: l.newID(),
			Sequence:      1,
			Action:        action,
			ExpenseID:     expense.ExpenseID,
			Snapshot:      domain.SnapshotOf(expense),
			Timestamp:     l.timestampAfter(head),
		}
		if head != nil {
			entry.Sequence = head.Sequence + 1
			entry.PrevHash = head.TxHash
		}
		entry.TxHash = entry.ComputeHash()

		if err := txRepo.Append(ctx, entry); err != nil {
			return fmt.Errorf("failed to append chain entry: %w", err)
		}
		appended = entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.LogDebug(ctx, "Chain entry appended",
		slog.Int64("sequence", appended.Sequence),
		slog.String("action", string(appended.Action)),
		slog.String("expense_id", appended.ExpenseID))
	return &appended, nil
}

// timestampAfter returns the current time in UTC at microsecond precision,
// never earlier than the head's timestamp.
func (l *HashChainLog) timestampAfter(head *domain.Transaction) time.Time {
	ts := l.now().UTC().Truncate(time.Microsecond)
	if head != nil && ts.Before(head.Timestamp) {
		return head.Timestamp.UTC()
	}
	return ts
}

// LastHash returns the head's hash, or "" for an empty chain.
func (l *HashChainLog) LastHash(ctx context.Context) (string, error) {
	return l.repo.Transactions().LastHash(ctx)
}

// FindAll returns every entry in append order.
func (l *HashChainLog) FindAll(ctx context.Context) ([]domain.Transaction, error) {
	return l.repo.Transactions().FindAll(ctx)
}

// Verify walks the chain recomputing each hash and checking each link.
// A broken chain yields Valid=false and a *apperrors.ChainIntegrityError
// naming the first bad index.
func (l *HashChainLog) Verify(ctx context.Context) (domain.VerifyResult, error) {
	entries, err := l.repo.Transactions().FindAll(ctx)
	if err != nil {
		return domain.VerifyResult{}, fmt.Errorf("failed to load chain: %w", err)
	}
	return VerifyEntries(entries)
}

// VerifyEntries checks an ordered slice of chain entries.
func VerifyEntries(entries []domain.Transaction) (domain.VerifyResult, error) {
	result := domain.VerifyResult{Valid: true, Length: len(entries), FirstBadIndex: -1}

	prev := ""
	for i, entry := range entries {
		reason := ""
		switch {
		case entry.PrevHash != prev:
			reason = "previous hash does not match the preceding entry"
		case entry.ComputeHash() != entry.TxHash:
			reason = "stored hash does not match entry contents"
		}
		if reason != "" {
			result.Valid = false
			result.FirstBadIndex = i
			result.Reason = reason
			return result, &apperrors.ChainIntegrityError{Index: i, Reason: reason}
		}
		prev = entry.TxHash
	}
	result.HeadHash = prev
	return result, nil
}
