package providers

import "context"

// RateProvider fetches a raw quote for a currency pair from an external source.
//
//go:generate mockgen -destination=mocks/mock_rate_provider.go -package=mocks -source=rate_provider.go RateProvider
type RateProvider interface {
	// Fetch returns the provider's response body for the from->to pair.
	Fetch(ctx context.Context, fromCode, toCode string) ([]byte, error)
}
