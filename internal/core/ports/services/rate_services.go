package services

import (
	"context"

	"github.com/shopspring/decimal"
)

// RateReaderSvc resolves conversion rates.
type RateReaderSvc interface {
	// GetRate returns the from->to rate; 1 when the codes are equal.
	GetRate(ctx context.Context, fromCode, toCode string) (decimal.Decimal, error)
}

// ConverterSvc converts amounts between currencies.
type ConverterSvc interface {
	// Convert returns amount in toCode rounded to three decimals, half-up.
	Convert(ctx context.Context, amount decimal.Decimal, fromCode, toCode string) (decimal.Decimal, error)
}

// RateCacheSvc manages rates held between lookups.
type RateCacheSvc interface {
	// InvalidateRates drops cached rates so the next lookups refetch them.
	InvalidateRates(ctx context.Context)
}

// ExchangeRateSvcFacade combines all exchange rate-related service interfaces
type ExchangeRateSvcFacade interface {
	RateReaderSvc
	ConverterSvc
	RateCacheSvc
}
