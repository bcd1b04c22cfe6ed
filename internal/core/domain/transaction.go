package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionAction is the kind of change an audit entry records.
type TransactionAction string

const (
	ActionCreate TransactionAction = "CREATE"
	ActionUpdate TransactionAction = "UPDATE"
	ActionDelete TransactionAction = "DELETE"
)

// IsValid reports whether a is one of the known actions.
func (a TransactionAction) IsValid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// ExpenseSnapshot is a copy of an expense's fields at the time of an action.
type ExpenseSnapshot struct {
	Category     string          `json:"category"`
	CurrencyCode string          `json:"currencyCode"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Date         string          `json:"date"`
}

// SnapshotOf copies the hashed fields of e.
func SnapshotOf(e Expense) ExpenseSnapshot {
	return ExpenseSnapshot{
		Category:     e.Category,
		CurrencyCode: e.CurrencyCode,
		Amount:       e.Amount,
		Description:  e.Description,
		Date:         e.Date,
	}
}

// Transaction is one entry of the append-only audit chain.
// PrevHash is empty for the genesis entry.
type Transaction struct {
	TransactionID string            `json:"transactionID"`
	Sequence      int64             `json:"sequence"` // 1-based position in append order
	Action        TransactionAction `json:"action"`
	ExpenseID     string            `json:"expenseID"`
	Snapshot      ExpenseSnapshot   `json:"snapshot"`
	Timestamp     time.Time         `json:"timestamp"`
	PrevHash      string            `json:"prevHash"`
	TxHash        string            `json:"txHash"`
}

// TimestampLayout is the layout used for timestamps inside the hashed payload.
const TimestampLayout = time.RFC3339Nano

// CanonicalPayload returns the byte encoding the transaction hash is computed over.
//
// Fields are written in a fixed order as name=<len>:<value>; so no field
// content can be mistaken for a delimiter. TxHash itself is not part of it.
func (t Transaction) CanonicalPayload() []byte {
	var b strings.Builder
	field := func(name, value string) {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strconv.Itoa(len(value)))
		b.WriteByte(':')
		b.WriteString(value)
		b.WriteByte(';')
	}
	field("id", t.TransactionID)
	field("seq", strconv.FormatInt(t.Sequence, 10))
	field("ts", t.Timestamp.UTC().Format(TimestampLayout))
	field("action", string(t.Action))
	field("expenseId", t.ExpenseID)
	field("category", t.Snapshot.Category)
	field("currency", t.Snapshot.CurrencyCode)
	field("amount", t.Snapshot.Amount.String())
	field("date", t.Snapshot.Date)
	field("desc", t.Snapshot.Description)
	field("prev", t.PrevHash)
	return []byte(b.String())
}

// ComputeHash returns the hex SHA-256 digest of the canonical payload.
func (t Transaction) ComputeHash() string {
	sum := sha256.Sum256(t.CanonicalPayload())
	return hex.EncodeToString(sum[:])
}

// VerifyResult summarizes a walk over the hash chain.
type VerifyResult struct {
	Valid         bool   `json:"valid"`
	Length        int    `json:"length"`
	FirstBadIndex int    `json:"firstBadIndex"` // -1 when Valid
	Reason        string `json:"reason,omitempty"`
	HeadHash      string `json:"headHash"`
}
