package pgsql

import (
	portsrepo "github.com/hivefi/ledger/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewRepositoryProvider wires the postgres-backed ledger repository.
func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		Ledger: NewPgxLedgerRepository(dbPool),
		Close: func() error {
			dbPool.Close()
			return nil
		},
	}
}
