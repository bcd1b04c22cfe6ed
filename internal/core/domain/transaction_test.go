package domain_test

import (
	"testing"
	"time"

	"github.com/hivefi/ledger/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTransaction() domain.Transaction {
	return domain.Transaction{
		TransactionID: "txn_123",
		Sequence:      1,
		Action:        domain.ActionCreate,
		ExpenseID:     "exp_123",
		Snapshot: domain.ExpenseSnapshot{
			Category:     "Food",
			CurrencyCode: "USD",
			Amount:       decimal.NewFromFloat(10.0),
			Description:  "Pizza",
			Date:         "01/09/2025",
		},
		Timestamp: time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestTransaction_ComputeHash_Deterministic(t *testing.T) {
	tx := sampleTransaction()
	first := tx.ComputeHash()

	assert.Len(t, first, 64)
	assert.Equal(t, first, tx.ComputeHash())

	// Same instant in another zone encodes identically.
	tx.Timestamp = tx.Timestamp.In(time.FixedZone("UTC+2", 2*60*60))
	assert.Equal(t, first, tx.ComputeHash())
}

func TestTransaction_ComputeHash_CoversEveryField(t *testing.T) {
	base := sampleTransaction()
	baseHash := base.ComputeHash()

	mutations := map[string]func(tx *domain.Transaction){
		"id":          func(tx *domain.Transaction) { tx.TransactionID = "txn_999" },
		"sequence":    func(tx *domain.Transaction) { tx.Sequence = 2 },
		"action":      func(tx *domain.Transaction) { tx.Action = domain.ActionDelete },
		"expense id":  func(tx *domain.Transaction) { tx.ExpenseID = "exp_999" },
		"category":    func(tx *domain.Transaction) { tx.Snapshot.Category = "Rent" },
		"currency":    func(tx *domain.Transaction) { tx.Snapshot.CurrencyCode = "EUR" },
		"amount":      func(tx *domain.Transaction) { tx.Snapshot.Amount = decimal.NewFromFloat(10.01) },
		"date":        func(tx *domain.Transaction) { tx.Snapshot.Date = "02/09/2025" },
		"description": func(tx *domain.Transaction) { tx.Snapshot.Description = "Pasta" },
		"timestamp":   func(tx *domain.Transaction) { tx.Timestamp = tx.Timestamp.Add(time.Microsecond) },
		"prev hash":   func(tx *domain.Transaction) { tx.PrevHash = "abc" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			tx := base
			mutate(&tx)
			assert.NotEqual(t, baseHash, tx.ComputeHash())
		})
	}
}

func TestTransaction_CanonicalPayload_Unambiguous(t *testing.T) {
	// Shifting a delimiter-looking suffix between adjacent fields must change the payload.
	a := sampleTransaction()
	a.Snapshot.Date = "01/09/2025;desc=4:Test"
	a.Snapshot.Description = ""

	b := sampleTransaction()
	b.Snapshot.Date = "01/09/2025"
	b.Snapshot.Description = "Test"

	assert.NotEqual(t, string(a.CanonicalPayload()), string(b.CanonicalPayload()))
	assert.NotEqual(t, a.ComputeHash(), b.ComputeHash())
}

func TestTransaction_AmountEncodingIsCanonical(t *testing.T) {
	a := sampleTransaction()
	a.Snapshot.Amount = decimal.RequireFromString("10.0")
	b := sampleTransaction()
	b.Snapshot.Amount = decimal.RequireFromString("10")

	assert.Equal(t, a.ComputeHash(), b.ComputeHash())
}

func TestTransactionAction_IsValid(t *testing.T) {
	assert.True(t, domain.ActionCreate.IsValid())
	assert.True(t, domain.ActionUpdate.IsValid())
	assert.True(t, domain.ActionDelete.IsValid())
	assert.False(t, domain.TransactionAction("MERGE").IsValid())
}

func TestNormalizeDisplayDate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "padded slash", in: "01/09/2025", want: "01/09/2025"},
		{name: "short slash", in: "1/9/2025", want: "01/09/2025"},
		{name: "dash", in: "1-9-2025", want: "01/09/2025"},
		{name: "surrounding spaces", in: " 30/9/2025 ", want: "30/09/2025"},
		{name: "iso rejected", in: "2025-09-01", wantErr: true},
		{name: "impossible day", in: "31/02/2025", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.NormalizeDisplayDate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalDate(t *testing.T) {
	iso, err := domain.CanonicalDate("01/09/2025")
	require.NoError(t, err)
	assert.Equal(t, "2025-09-01", iso)
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, domain.CategoryFood, domain.NormalizeCategory("Restaurant"))
	assert.Equal(t, domain.CategoryTransport, domain.NormalizeCategory("  uber "))
	assert.Equal(t, domain.CategoryUtilities, domain.NormalizeCategory("WiFi"))
	assert.Equal(t, domain.CategoryOther, domain.NormalizeCategory("yacht"))
	assert.Equal(t, domain.CategoryOther, domain.NormalizeCategory(""))
}
