package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hivefi/ledger/internal/apperrors"
	"github.com/hivefi/ledger/internal/core/domain"
	portsrepo "github.com/hivefi/ledger/internal/core/ports/repositories"
	"github.com/hivefi/ledger/internal/core/services"
	"github.com/hivefi/ledger/internal/repositories/database/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func chainExpense(i int) domain.Expense {
	return domain.Expense{
		ExpenseID:    fmt.Sprintf("exp-%03d", i),
		Category:     "Food",
		CurrencyCode: "USD",
		Amount:       decimal.NewFromInt(int64(i + 1)),
		Description:  fmt.Sprintf("item %d", i),
		Date:         "01/09/2025",
	}
}

func buildChain(t *testing.T, store *memory.Store, n int) *services.HashChainLog {
	t.Helper()
	clock := newFakeClock(time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC))
	chain := services.NewHashChainLog(store, services.WithChainClock(clock.Now))
	for i := 0; i < n; i++ {
		_, err := chain.Append(context.Background(), domain.ActionCreate, chainExpense(i))
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
	return chain
}

func TestHashChainLog_AppendLinksEntries(t *testing.T) {
	store := memory.NewStore()
	chain := buildChain(t, store, 5)
	ctx := context.Background()

	entries, err := chain.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	assert.Equal(t, "", entries[0].PrevHash, "genesis entry has empty prev hash")
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Sequence)
		assert.Equal(t, fmt.Sprintf("exp-%03d", i), e.ExpenseID)
		assert.Equal(t, e.ComputeHash(), e.TxHash)
		if i > 0 {
			assert.Equal(t, entries[i-1].TxHash, e.PrevHash)
		}
	}

	last, err := chain.LastHash(ctx)
	require.NoError(t, err)
	assert.Equal(t, entries[4].TxHash, last)

	result, err := chain.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 5, result.Length)
	assert.Equal(t, -1, result.FirstBadIndex)
	assert.Equal(t, last, result.HeadHash)
}

func TestHashChainLog_EmptyChainVerifies(t *testing.T) {
	chain := services.NewHashChainLog(memory.NewStore())

	last, err := chain.LastHash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", last)

	result, err := chain.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 0, result.Length)
}

func TestHashChainLog_TamperDetection(t *testing.T) {
	const length = 4
	mutations := map[string]func(tx *domain.Transaction){
		"amount":      func(tx *domain.Transaction) { tx.Snapshot.Amount = tx.Snapshot.Amount.Add(decimal.NewFromInt(1)) },
		"category":    func(tx *domain.Transaction) { tx.Snapshot.Category = "Rent" },
		"currency":    func(tx *domain.Transaction) { tx.Snapshot.CurrencyCode = "EUR" },
		"description": func(tx *domain.Transaction) { tx.Snapshot.Description = "changed" },
		"date":        func(tx *domain.Transaction) { tx.Snapshot.Date = "02/09/2025" },
		"action":      func(tx *domain.Transaction) { tx.Action = domain.ActionDelete },
		"expense id":  func(tx *domain.Transaction) { tx.ExpenseID = "other" },
		"timestamp":   func(tx *domain.Transaction) { tx.Timestamp = tx.Timestamp.Add(time.Millisecond) },
		"tx hash":     func(tx *domain.Transaction) { tx.TxHash = strings.Repeat("0", 64) },
		"prev hash":   func(tx *domain.Transaction) { tx.PrevHash = "deadbeef" },
	}

	store := memory.NewStore()
	buildChain(t, store, length)

	for name, mutate := range mutations {
		for k := 0; k < length; k++ {
			t.Run(fmt.Sprintf("%s at %d", name, k), func(t *testing.T) {
				view := tamperedLedger{
					LedgerRepository: store,
					mutate:           func(entries []domain.Transaction) { mutate(&entries[k]) },
				}
				result, err := services.NewHashChainLog(view).Verify(context.Background())

				require.Error(t, err)
				assert.True(t, errors.Is(err, apperrors.ErrChainIntegrity))
				assert.False(t, result.Valid)
				assert.Equal(t, k, result.FirstBadIndex)

				var integrityErr *apperrors.ChainIntegrityError
				require.ErrorAs(t, err, &integrityErr)
				assert.Equal(t, k, integrityErr.Index)
			})
		}
	}
}

func TestHashChainLog_DeletedEntryBreaksNextLink(t *testing.T) {
	store := memory.NewStore()
	buildChain(t, store, 3)

	entries, err := store.Transactions().FindAll(context.Background())
	require.NoError(t, err)

	withoutMiddle := []domain.Transaction{entries[0], entries[2]}
	result, err := services.VerifyEntries(withoutMiddle)
	require.Error(t, err)
	assert.Equal(t, 1, result.FirstBadIndex)
}

func TestHashChainLog_ConcurrentAppendsNeverFork(t *testing.T) {
	store := memory.NewStore()
	chain := services.NewHashChainLog(store)
	ctx := context.Background()

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := chain.Append(ctx, domain.ActionCreate, chainExpense(i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := chain.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, writers)

	seen := make(map[string]bool)
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Sequence)
		assert.False(t, seen[e.PrevHash], "prev hash %q reused", e.PrevHash)
		seen[e.PrevHash] = true
	}

	result, err := chain.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestHashChainLog_TimestampsNeverDecrease(t *testing.T) {
	store := memory.NewStore()
	start := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	chain := services.NewHashChainLog(store, services.WithChainClock(clock.Now))
	ctx := context.Background()

	_, err := chain.Append(ctx, domain.ActionCreate, chainExpense(0))
	require.NoError(t, err)

	clock.Set(start.Add(-time.Hour))
	second, err := chain.Append(ctx, domain.ActionCreate, chainExpense(1))
	require.NoError(t, err)
	assert.True(t, second.Timestamp.Equal(start))

	entries, err := chain.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "exp-000", entries[0].ExpenseID)
	assert.Equal(t, "exp-001", entries[1].ExpenseID)

	_, err = chain.Verify(ctx)
	assert.NoError(t, err)
}

func TestHashChainLog_TimestampTruncatedToMicroseconds(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 9, 1, 12, 0, 0, 123456789, time.FixedZone("CEST", 2*60*60)))
	chain := services.NewHashChainLog(memory.NewStore(), services.WithChainClock(clock.Now))

	tx, err := chain.Append(context.Background(), domain.ActionCreate, chainExpense(0))
	require.NoError(t, err)
	assert.Equal(t, 123456000, tx.Timestamp.Nanosecond())
	assert.Equal(t, time.UTC, tx.Timestamp.Location())
}

func TestHashChainLog_RecordFailureCommitsNothing(t *testing.T) {
	store := memory.NewStore()
	chain := services.NewHashChainLog(store)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := chain.Record(ctx, func(ctx context.Context, repo portsrepo.LedgerRepository) (domain.TransactionAction, domain.Expense, error) {
		if err := repo.Expenses().Insert(ctx, chainExpense(0)); err != nil {
			return "", domain.Expense{}, err
		}
		return "", domain.Expense{}, boom
	})
	assert.ErrorIs(t, err, boom)

	all, err := store.Expenses().FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	entries, err := chain.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHashChainLog_RejectsUnknownAction(t *testing.T) {
	chain := services.NewHashChainLog(memory.NewStore())
	_, err := chain.Append(context.Background(), domain.TransactionAction("MERGE"), chainExpense(0))
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestHashChainLog_StorageErrors(t *testing.T) {
	ctx := context.Background()
	dbErr := errors.New("disk full")

	txRepo := new(MockTransactionRepository)
	txRepo.On("Head", mock.Anything).Return(nil, nil)
	txRepo.On("Append", mock.Anything, mock.AnythingOfType("domain.Transaction")).Return(dbErr)
	txRepo.On("FindAll", mock.Anything).Return(nil, dbErr)

	store := memory.NewStore()
	ledger := portsrepo.NewSequentialLedger(store.Expenses(), txRepo)
	chain := services.NewHashChainLog(ledger)

	_, err := chain.Append(ctx, domain.ActionCreate, chainExpense(0))
	assert.ErrorIs(t, err, dbErr)

	_, err = chain.Verify(ctx)
	assert.ErrorIs(t, err, dbErr)
	assert.False(t, errors.Is(err, apperrors.ErrChainIntegrity))

	txRepo.AssertExpectations(t)
}
