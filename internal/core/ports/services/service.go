package services

// ServiceContainer is what the HTTP handlers and the ledgerctl commands
// depend on. Both fields are always set by services.NewServiceContainer.
type ServiceContainer struct {
	Ledger       LedgerSvcFacade
	ExchangeRate ExchangeRateSvcFacade
}
