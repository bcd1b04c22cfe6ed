// Package sqlite stores the ledger in a SQLite file using the pure-Go driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hivefi/ledger/internal/apperrors"
	"github.com/hivefi/ledger/internal/core/domain"
	portsrepo "github.com/hivefi/ledger/internal/core/ports/repositories"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// timeLayout has a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements portsrepo.LedgerRepository on SQLite.
type Store struct {
	db *sql.DB
	q  queryer
}

// Open opens (or creates) the database at path and applies migrations.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite has a single writer, and every ":memory:" connection is its own database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s := &Store{db: db, q: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewRepositoryProvider opens the database at path and wraps it.
func NewRepositoryProvider(ctx context.Context, path string) (portsrepo.RepositoryProvider, error) {
	s, err := Open(ctx, path)
	if err != nil {
		return portsrepo.RepositoryProvider{}, err
	}
	return portsrepo.RepositoryProvider{Ledger: s, Close: s.Close}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`PRAGMA foreign_keys = ON`,
		`CREATE TABLE IF NOT EXISTS expenses (
			expense_id    TEXT PRIMARY KEY,
			category      TEXT NOT NULL,
			currency_code TEXT NOT NULL,
			amount        TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			display_date  TEXT NOT NULL,
			date_iso      TEXT NOT NULL,
			created_at    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_category ON expenses (category)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_date_iso ON expenses (date_iso)`,
		`CREATE TABLE IF NOT EXISTS processed_requests (
			request_id   TEXT PRIMARY KEY,
			processed_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			seq            INTEGER PRIMARY KEY,
			transaction_id TEXT NOT NULL UNIQUE,
			action         TEXT NOT NULL,
			expense_id     TEXT NOT NULL,
			category       TEXT NOT NULL,
			currency_code  TEXT NOT NULL,
			amount         TEXT NOT NULL,
			description    TEXT NOT NULL DEFAULT '',
			display_date   TEXT NOT NULL,
			ts             TEXT NOT NULL,
			prev_hash      TEXT NOT NULL DEFAULT '',
			tx_hash        TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_ts ON transactions (ts, seq)`,
	}

	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("failed to apply sqlite migration: %w", err)
		}
	}
	return nil
}

func (s *Store) Expenses() portsrepo.ExpenseRepositoryFacade {
	return expenseRepository{q: s.q}
}

func (s *Store) Transactions() portsrepo.TransactionRepositoryFacade {
	return transactionRepository{q: s.q}
}

// RunInTx runs fn inside a SQLite transaction. Calls on a Store that is
// already inside a transaction join it.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, repo portsrepo.LedgerRepository) error) error {
	if _, inTx := s.q.(*sql.Tx); inTx {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewAppError(500, "failed to begin transaction", err)
	}
	if err := fn(ctx, &Store{db: s.db, q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, apperrors.NewAppError(500, "failed to rollback transaction", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewAppError(500, "failed to commit transaction", err)
	}
	return nil
}

type expenseRepository struct {
	q queryer
}

const selectExpense = `SELECT expense_id, category, currency_code, amount, description, display_date, created_at FROM expenses`

const orderExpenses = ` ORDER BY date_iso DESC, created_at DESC`

func (r expenseRepository) FindAll(ctx context.Context) ([]domain.Expense, error) {
	return r.query(ctx, selectExpense+orderExpenses)
}

func (r expenseRepository) FindByID(ctx context.Context, expenseID string) (*domain.Expense, error) {
	rows, err := r.query(ctx, selectExpense+` WHERE expense_id = ?`, expenseID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.NewNotFoundError("expense " + expenseID)
	}
	return &rows[0], nil
}

func (r expenseRepository) FindByCategory(ctx context.Context, category string) ([]domain.Expense, error) {
	return r.query(ctx, selectExpense+` WHERE category = ?`+orderExpenses, category)
}

func (r expenseRepository) FindByDateRange(ctx context.Context, from, to time.Time) ([]domain.Expense, error) {
	return r.query(ctx, selectExpense+` WHERE date_iso BETWEEN ? AND ?`+orderExpenses,
		from.Format(time.DateOnly), to.Format(time.DateOnly))
}

func (r expenseRepository) query(ctx context.Context, query string, args ...any) ([]domain.Expense, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var out []domain.Expense
	for rows.Next() {
		var (
			e       domain.Expense
			created string
		)
		if err := rows.Scan(&e.ExpenseID, &e.Category, &e.CurrencyCode, &e.Amount, &e.Description, &e.Date, &created); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		if e.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("failed to parse created_at of expense %s: %w", e.ExpenseID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r expenseRepository) Insert(ctx context.Context, e domain.Expense) error {
	iso, err := domain.CanonicalDate(e.Date)
	if err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	_, err = r.q.ExecContext(ctx,
		`INSERT INTO expenses (expense_id, category, currency_code, amount, description, display_date, date_iso, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ExpenseID, e.Category, e.CurrencyCode, e.Amount.String(), e.Description, e.Date, iso,
		e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense %s: %w", e.ExpenseID, err)
	}
	return nil
}

func (r expenseRepository) MarkProcessed(ctx context.Context, requestID string) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_requests (request_id, processed_at) VALUES (?, ?)`,
		requestID, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark request %s: %w", requestID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark request %s: %w", requestID, err)
	}
	return n == 1, nil
}

type transactionRepository struct {
	q queryer
}

const selectTransaction = `SELECT seq, transaction_id, action, expense_id, category, currency_code, amount,
	description, display_date, ts, prev_hash, tx_hash FROM transactions`

func (r transactionRepository) FindAll(ctx context.Context) ([]domain.Transaction, error) {
	return r.query(ctx, selectTransaction+` ORDER BY ts ASC, seq ASC`)
}

func (r transactionRepository) Head(ctx context.Context) (*domain.Transaction, error) {
	rows, err := r.query(ctx, selectTransaction+` ORDER BY seq DESC LIMIT 1`)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (r transactionRepository) LastHash(ctx context.Context) (string, error) {
	var hash string
	err := r.q.QueryRowContext(ctx, `SELECT tx_hash FROM transactions ORDER BY seq DESC LIMIT 1`).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read last hash: %w", err)
	}
	return hash, nil
}

func (r transactionRepository) query(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var (
			t      domain.Transaction
			action string
			ts     string
		)
		if err := rows.Scan(&t.Sequence, &t.TransactionID, &action, &t.ExpenseID,
			&t.Snapshot.Category, &t.Snapshot.CurrencyCode, &t.Snapshot.Amount,
			&t.Snapshot.Description, &t.Snapshot.Date, &ts, &t.PrevHash, &t.TxHash); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Action = domain.TransactionAction(action)
		if t.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("failed to parse timestamp of transaction %d: %w", t.Sequence, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r transactionRepository) Append(ctx context.Context, t domain.Transaction) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO transactions (seq, transaction_id, action, expense_id, category, currency_code, amount,
			description, display_date, ts, prev_hash, tx_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Sequence, t.TransactionID, string(t.Action), t.ExpenseID,
		t.Snapshot.Category, t.Snapshot.CurrencyCode, t.Snapshot.Amount.String(),
		t.Snapshot.Description, t.Snapshot.Date, t.Timestamp.UTC().Format(timeLayout), t.PrevHash, t.TxHash,
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction %d: %w", t.Sequence, err)
	}
	return nil
}
