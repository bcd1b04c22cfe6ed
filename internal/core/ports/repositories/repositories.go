package repositories

// RepositoryProvider holds all repository interfaces needed by services.
// This makes passing dependencies to the service container constructor cleaner.
type RepositoryProvider struct {
	Ledger LedgerRepository

	// Close releases the underlying connections. May be nil.
	Close func() error
}
