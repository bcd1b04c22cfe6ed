package pgsql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hivefi/ledger/internal/apperrors"
	"github.com/hivefi/ledger/internal/core/domain"
	portsrepo "github.com/hivefi/ledger/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// chainLockKey identifies the advisory lock that serializes chain appends
// across processes sharing one database.
const chainLockKey int64 = 0x68697665666931

// PgxLedgerRepository implements portsrepo.LedgerRepository using pgxpool.
type PgxLedgerRepository struct {
	BaseRepository
	db dbtx
}

// NewPgxLedgerRepository creates a new PgxLedgerRepository.
func NewPgxLedgerRepository(pool *pgxpool.Pool) *PgxLedgerRepository {
	return &PgxLedgerRepository{
		BaseRepository: BaseRepository{Pool: pool},
		db:             pool,
	}
}

func (r *PgxLedgerRepository) Expenses() portsrepo.ExpenseRepositoryFacade {
	return &pgxExpenseRepository{db: r.db}
}

func (r *PgxLedgerRepository) Transactions() portsrepo.TransactionRepositoryFacade {
	return &pgxTransactionRepository{db: r.db}
}

// RunInTx runs fn in one database transaction holding the chain advisory lock.
// Calls made on a repository already bound to a transaction join it.
func (r *PgxLedgerRepository) RunInTx(ctx context.Context, fn func(ctx context.Context, repo portsrepo.LedgerRepository) error) error {
	if _, inTx := r.db.(pgx.Tx); inTx {
		return fn(ctx, r)
	}

	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, chainLockKey); err != nil {
			return apperrors.NewAppError(500, "failed to acquire chain lock", err)
		}
		return fn(ctx, &PgxLedgerRepository{BaseRepository: r.BaseRepository, db: tx})
	})
}

type pgxExpenseRepository struct {
	db dbtx
}

const selectExpenseSQL = `SELECT expense_id, category, currency_code, amount::text, description, display_date, created_at FROM expenses`

const orderExpensesSQL = ` ORDER BY date_iso DESC, created_at DESC`

func (r *pgxExpenseRepository) FindAll(ctx context.Context) ([]domain.Expense, error) {
	return r.query(ctx, selectExpenseSQL+orderExpensesSQL)
}

func (r *pgxExpenseRepository) FindByID(ctx context.Context, expenseID string) (*domain.Expense, error) {
	rows, err := r.query(ctx, selectExpenseSQL+` WHERE expense_id = $1`, expenseID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.NewNotFoundError("expense " + expenseID)
	}
	return &rows[0], nil
}

func (r *pgxExpenseRepository) FindByCategory(ctx context.Context, category string) ([]domain.Expense, error) {
	return r.query(ctx, selectExpenseSQL+` WHERE category = $1`+orderExpensesSQL, category)
}

func (r *pgxExpenseRepository) FindByDateRange(ctx context.Context, from, to time.Time) ([]domain.Expense, error) {
	return r.query(ctx, selectExpenseSQL+` WHERE date_iso BETWEEN $1::date AND $2::date`+orderExpensesSQL,
		from.Format(time.DateOnly), to.Format(time.DateOnly))
}

func (r *pgxExpenseRepository) query(ctx context.Context, sql string, args ...any) ([]domain.Expense, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query expenses", err)
	}
	defer rows.Close()

	var out []domain.Expense
	for rows.Next() {
		var (
			e      domain.Expense
			amount string
		)
		if err := rows.Scan(&e.ExpenseID, &e.Category, &e.CurrencyCode, &amount, &e.Description, &e.Date, &e.CreatedAt); err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan expense", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("invalid amount %q for expense %s: %w", amount, e.ExpenseID, err)
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "failed to iterate expenses", err)
	}
	return out, nil
}

func (r *pgxExpenseRepository) Insert(ctx context.Context, e domain.Expense) error {
	iso, err := domain.CanonicalDate(e.Date)
	if err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO expenses (expense_id, category, currency_code, amount, description, display_date, date_iso, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7::date, $8)`,
		e.ExpenseID, e.Category, e.CurrencyCode, e.Amount.String(), e.Description, e.Date, iso, e.CreatedAt,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to insert expense", err)
	}
	return nil
}

func (r *pgxExpenseRepository) MarkProcessed(ctx context.Context, requestID string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO processed_requests (request_id) VALUES ($1) ON CONFLICT (request_id) DO NOTHING`,
		requestID,
	)
	if err != nil {
		return false, apperrors.NewAppError(500, "failed to mark request as processed", err)
	}
	return tag.RowsAffected() == 1, nil
}

type pgxTransactionRepository struct {
	db dbtx
}

const selectTransactionSQL = `SELECT seq, transaction_id, action, expense_id, category, currency_code, amount::text,
	description, display_date, ts, prev_hash, tx_hash FROM transactions`

func (r *pgxTransactionRepository) FindAll(ctx context.Context) ([]domain.Transaction, error) {
	return r.query(ctx, selectTransactionSQL+` ORDER BY ts ASC, seq ASC`)
}

func (r *pgxTransactionRepository) Head(ctx context.Context) (*domain.Transaction, error) {
	rows, err := r.query(ctx, selectTransactionSQL+` ORDER BY seq DESC LIMIT 1`)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (r *pgxTransactionRepository) LastHash(ctx context.Context) (string, error) {
	var hash string
	err := r.db.QueryRow(ctx, `SELECT tx_hash FROM transactions ORDER BY seq DESC LIMIT 1`).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.NewAppError(500, "failed to read last hash", err)
	}
	return hash, nil
}

func (r *pgxTransactionRepository) query(ctx context.Context, sql string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query transactions", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var (
			t      domain.Transaction
			action string
			amount string
		)
		if err := rows.Scan(&t.Sequence, &t.TransactionID, &action, &t.ExpenseID,
			&t.Snapshot.Category, &t.Snapshot.CurrencyCode, &amount,
			&t.Snapshot.Description, &t.Snapshot.Date, &t.Timestamp, &t.PrevHash, &t.TxHash); err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan transaction", err)
		}
		if t.Snapshot.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("invalid amount %q for transaction %d: %w", amount, t.Sequence, err)
		}
		t.Action = domain.TransactionAction(action)
		t.Timestamp = t.Timestamp.UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "failed to iterate transactions", err)
	}
	return out, nil
}

func (r *pgxTransactionRepository) Append(ctx context.Context, t domain.Transaction) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO transactions (seq, transaction_id, action, expense_id, category, currency_code, amount,
			description, display_date, ts, prev_hash, tx_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11, $12)`,
		t.Sequence, t.TransactionID, string(t.Action), t.ExpenseID,
		t.Snapshot.Category, t.Snapshot.CurrencyCode, t.Snapshot.Amount.String(),
		t.Snapshot.Description, t.Snapshot.Date, t.Timestamp, t.PrevHash, t.TxHash,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to append transaction", err)
	}
	return nil
}
