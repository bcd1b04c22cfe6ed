package services

import (
	portsproviders "github.com/hivefi/ledger/internal/core/ports/providers"
	portsrepo "github.com/hivefi/ledger/internal/core/ports/repositories"
	portssvc "github.com/hivefi/ledger/internal/core/ports/services"
	"github.com/hivefi/ledger/internal/platform/config"
)

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, provider portsproviders.RateProvider) *portssvc.ServiceContainer {
	rates := NewRateCache(provider, WithTTL(cfg.FXTTL))

	var converterOpts []ConverterOption
	if cfg.FXBasisCurrency != "" {
		converterOpts = append(converterOpts, WithBasisCurrency(cfg.FXBasisCurrency))
	}
	converter := NewConverter(rates, converterOpts...)

	chain := NewHashChainLog(repos.Ledger)

	return &portssvc.ServiceContainer{
		Ledger: NewLedgerService(
			repos.Ledger,
			chain,
			converter,
			WithCategoryNormalization(cfg.NormalizeCategories),
		),
		ExchangeRate: converter,
	}
}

// Helper to check interface implementations at compile time
var (
	_ portssvc.LedgerSvcFacade       = (*LedgerService)(nil)
	_ portssvc.ExchangeRateSvcFacade = (*Converter)(nil)
	_ portssvc.RateReaderSvc         = (*RateCache)(nil)
)
