package services

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	portssvc "github.com/hivefi/ledger/internal/core/ports/services"
	"github.com/shopspring/decimal"
)

// ConversionPlaces is the scale of converted amounts.
const ConversionPlaces = 3

// Converter turns amounts from one currency into another using a rate source.
type Converter struct {
	BaseService
	rates    portssvc.RateReaderSvc
	basis    string
	validate *validator.Validate
}

type rateInvalidator interface {
	Invalidate()
}

// ConverterOption configures a Converter.
type ConverterOption func(*Converter)

// WithBasisCurrency routes every conversion through code: amount is divided by
// the basis->from rate and multiplied by the basis->to rate. Useful for
// providers that only quote from a single base.
func WithBasisCurrency(code string) ConverterOption {
	return func(c *Converter) {
		c.basis = strings.ToUpper(strings.TrimSpace(code))
	}
}

// NewConverter creates a Converter reading rates from rates.
func NewConverter(rates portssvc.RateReaderSvc, opts ...ConverterOption) *Converter {
	c := &Converter{rates: rates, validate: newValidator()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetRate returns the direct from->to rate.
func (c *Converter) GetRate(ctx context.Context, fromCode, toCode string) (decimal.Decimal, error) {
	return c.rates.GetRate(ctx, fromCode, toCode)
}

// Convert converts amount from fromCode into toCode, rounded to three decimals half-up.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, fromCode, toCode string) (decimal.Decimal, error) {
	from, to, err := normalizePair(c.validate, fromCode, toCode)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if from == to {
		return amount.Round(ConversionPlaces), nil
	}

	if c.basis == "" {
		rate, err := c.rates.GetRate(ctx, from, to)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return amount.Mul(rate).Round(ConversionPlaces), nil
	}

	fromRate, err := c.rates.GetRate(ctx, c.basis, from)
	if err != nil {
		return decimal.Decimal{}, err
	}
	toRate, err := c.rates.GetRate(ctx, c.basis, to)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return amount.Div(fromRate).Mul(toRate).Round(ConversionPlaces), nil
}

// InvalidateRates clears the rate source when it caches. Uncached sources are
// left alone.
func (c *Converter) InvalidateRates(ctx context.Context) {
	inv, ok := c.rates.(rateInvalidator)
	if !ok {
		c.LogDebug(ctx, "Rate source has no cache to invalidate")
		return
	}
	inv.Invalidate()
	c.LogInfo(ctx, "Cached exchange rates invalidated")
}
