package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/hivefi/ledger/internal/core/domain"
	portsrepo "github.com/hivefi/ledger/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// --- Mock RateReaderSvc / ConverterSvc ---

type MockRateReader struct {
	mock.Mock
}

func (m *MockRateReader) GetRate(ctx context.Context, fromCode, toCode string) (decimal.Decimal, error) {
	args := m.Called(ctx, fromCode, toCode)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockConverter struct {
	mock.Mock
}

func (m *MockConverter) Convert(ctx context.Context, amount decimal.Decimal, fromCode, toCode string) (decimal.Decimal, error) {
	args := m.Called(ctx, amount, fromCode, toCode)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// --- Mock TransactionRepositoryFacade ---

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) FindAll(ctx context.Context) ([]domain.Transaction, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) LastHash(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockTransactionRepository) Head(ctx context.Context) (*domain.Transaction, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Append(ctx context.Context, tx domain.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

// tamperedLedger serves chain reads through mutate, simulating edits made
// directly in storage.
type tamperedLedger struct {
	portsrepo.LedgerRepository
	mutate func(entries []domain.Transaction)
}

func (l tamperedLedger) Transactions() portsrepo.TransactionRepositoryFacade {
	return tamperedTransactions{TransactionRepositoryFacade: l.LedgerRepository.Transactions(), mutate: l.mutate}
}

type tamperedTransactions struct {
	portsrepo.TransactionRepositoryFacade
	mutate func(entries []domain.Transaction)
}

func (t tamperedTransactions) FindAll(ctx context.Context) ([]domain.Transaction, error) {
	entries, err := t.TransactionRepositoryFacade.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	t.mutate(entries)
	return entries, nil
}
