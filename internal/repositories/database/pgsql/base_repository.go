package pgsql

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hivefi/ledger/internal/apperrors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// BaseRepository holds the pool repositories open transactions on.
type BaseRepository struct {
	Pool *pgxpool.Pool
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back otherwise; driver failures come back as *apperrors.AppError.
func (r *BaseRepository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return apperrors.NewAppError(http.StatusInternalServerError, "failed to begin transaction", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			slog.Default().Error("Rollback failed", slog.String("error", rbErr.Error()))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewAppError(http.StatusInternalServerError, "failed to commit transaction", err)
	}
	return nil
}
