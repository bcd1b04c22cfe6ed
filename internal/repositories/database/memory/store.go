// Package memory keeps the ledger in process memory. It backs tests and the
// STORE_DRIVER=memory mode; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hivefi/ledger/internal/apperrors"
	"github.com/hivefi/ledger/internal/core/domain"
	portsrepo "github.com/hivefi/ledger/internal/core/ports/repositories"
)

type state struct {
	expenses     []domain.Expense
	isoDates     map[string]string // expense id -> yyyy-MM-dd
	processed    map[string]struct{}
	transactions []domain.Transaction
}

func newState() state {
	return state{
		isoDates:  make(map[string]string),
		processed: make(map[string]struct{}),
	}
}

func (s state) clone() state {
	c := state{
		expenses:     append([]domain.Expense(nil), s.expenses...),
		isoDates:     make(map[string]string, len(s.isoDates)),
		processed:    make(map[string]struct{}, len(s.processed)),
		transactions: append([]domain.Transaction(nil), s.transactions...),
	}
	for k, v := range s.isoDates {
		c.isoDates[k] = v
	}
	for k := range s.processed {
		c.processed[k] = struct{}{}
	}
	return c
}

// Store implements portsrepo.LedgerRepository in memory.
type Store struct {
	writeMu sync.Mutex // serializes writers, including whole transactions
	mu      sync.RWMutex
	st      state
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{st: newState()}
}

// NewRepositoryProvider wraps a fresh Store.
func NewRepositoryProvider() portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{Ledger: NewStore()}
}

func (s *Store) Expenses() portsrepo.ExpenseRepositoryFacade {
	return expenseRepository{s}
}

func (s *Store) Transactions() portsrepo.TransactionRepositoryFacade {
	return transactionRepository{s}
}

// RunInTx runs fn against a private copy of the store and swaps it in only
// when fn succeeds. Readers never see a half-applied transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, repo portsrepo.LedgerRepository) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	tx := &Store{st: s.st.clone()}
	s.mu.RUnlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = tx.st
	s.mu.Unlock()
	return nil
}

func (s *Store) write(fn func(st *state) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.st)
}

type expenseRepository struct {
	s *Store
}

func (r expenseRepository) FindAll(ctx context.Context) ([]domain.Expense, error) {
	return r.filter(func(domain.Expense, string) bool { return true }), nil
}

func (r expenseRepository) FindByID(ctx context.Context, expenseID string) (*domain.Expense, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, e := range r.s.st.expenses {
		if e.ExpenseID == expenseID {
			found := e
			return &found, nil
		}
	}
	return nil, apperrors.NewNotFoundError("expense " + expenseID)
}

func (r expenseRepository) FindByCategory(ctx context.Context, category string) ([]domain.Expense, error) {
	return r.filter(func(e domain.Expense, _ string) bool { return e.Category == category }), nil
}

func (r expenseRepository) FindByDateRange(ctx context.Context, from, to time.Time) ([]domain.Expense, error) {
	lo, hi := from.Format(time.DateOnly), to.Format(time.DateOnly)
	return r.filter(func(_ domain.Expense, iso string) bool { return iso >= lo && iso <= hi }), nil
}

// filter returns matching expenses newest date first, then newest created first.
func (r expenseRepository) filter(keep func(e domain.Expense, iso string) bool) []domain.Expense {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.Expense, 0, len(r.s.st.expenses))
	for _, e := range r.s.st.expenses {
		if keep(e, r.s.st.isoDates[e.ExpenseID]) {
			out = append(out, e)
		}
	}
	iso := r.s.st.isoDates
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := iso[out[i].ExpenseID], iso[out[j].ExpenseID]
		if di != dj {
			return di > dj
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r expenseRepository) Insert(ctx context.Context, expense domain.Expense) error {
	iso, err := domain.CanonicalDate(expense.Date)
	if err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	return r.s.write(func(st *state) error {
		if _, exists := st.isoDates[expense.ExpenseID]; exists {
			return apperrors.NewValidationError("expense " + expense.ExpenseID + " already exists")
		}
		st.expenses = append(st.expenses, expense)
		st.isoDates[expense.ExpenseID] = iso
		return nil
	})
}

func (r expenseRepository) MarkProcessed(ctx context.Context, requestID string) (bool, error) {
	first := false
	err := r.s.write(func(st *state) error {
		if _, seen := st.processed[requestID]; !seen {
			st.processed[requestID] = struct{}{}
			first = true
		}
		return nil
	})
	return first, err
}

type transactionRepository struct {
	s *Store
}

func (r transactionRepository) FindAll(ctx context.Context) ([]domain.Transaction, error) {
	r.s.mu.RLock()
	out := append([]domain.Transaction(nil), r.s.st.transactions...)
	r.s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out, nil
}

func (r transactionRepository) LastHash(ctx context.Context) (string, error) {
	head, err := r.Head(ctx)
	if err != nil || head == nil {
		return "", err
	}
	return head.TxHash, nil
}

func (r transactionRepository) Head(ctx context.Context) (*domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var head *domain.Transaction
	for i := range r.s.st.transactions {
		if head == nil || r.s.st.transactions[i].Sequence > head.Sequence {
			head = &r.s.st.transactions[i]
		}
	}
	if head == nil {
		return nil, nil
	}
	found := *head
	return &found, nil
}

func (r transactionRepository) Append(ctx context.Context, tx domain.Transaction) error {
	return r.s.write(func(st *state) error {
		for _, existing := range st.transactions {
			if existing.Sequence == tx.Sequence {
				return apperrors.NewValidationError("chain sequence already taken")
			}
		}
		st.transactions = append(st.transactions, tx)
		return nil
	})
}
