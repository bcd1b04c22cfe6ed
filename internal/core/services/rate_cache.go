package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hivefi/ledger/internal/apperrors"
	"github.com/hivefi/ledger/internal/core/ports/providers"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// DefaultRateTTL is how long a fetched rate stays fresh.
const DefaultRateTTL = 30 * time.Minute

type rateKey struct {
	from string
	to   string
}

type rateEntry struct {
	rate      decimal.Decimal
	expiresAt time.Time
}

// RateCache resolves conversion rates through a provider and keeps each
// successful lookup for a fixed TTL. Failed lookups are never cached.
type RateCache struct {
	BaseService
	provider   providers.RateProvider
	extractors []RateExtractor
	ttl        time.Duration
	now        func() time.Time
	validate   *validator.Validate

	mu      sync.RWMutex
	entries map[rateKey]rateEntry
	group   singleflight.Group
}

// RateCacheOption configures a RateCache.
type RateCacheOption func(*RateCache)

// WithTTL sets the freshness window. Values below one minute are raised to one minute.
func WithTTL(ttl time.Duration) RateCacheOption {
	return func(c *RateCache) {
		if ttl < time.Minute {
			ttl = time.Minute
		}
		c.ttl = ttl
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) RateCacheOption {
	return func(c *RateCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithExtractors replaces the response-shape extractors.
func WithExtractors(extractors ...RateExtractor) RateCacheOption {
	return func(c *RateCache) {
		if len(extractors) > 0 {
			c.extractors = extractors
		}
	}
}

// NewRateCache creates a RateCache backed by provider.
func NewRateCache(provider providers.RateProvider, opts ...RateCacheOption) *RateCache {
	c := &RateCache{
		provider:   provider,
		extractors: DefaultRateExtractors(),
		ttl:        DefaultRateTTL,
		now:        time.Now,
		validate:   newValidator(),
		entries:    make(map[rateKey]rateEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetRate returns the from->to rate. Equal codes yield 1 without a provider call.
func (c *RateCache) GetRate(ctx context.Context, fromCode, toCode string) (decimal.Decimal, error) {
	from, to, err := normalizePair(c.validate, fromCode, toCode)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	key := rateKey{from: from, to: to}
	if rate, ok := c.lookup(key); ok {
		c.LogDebug(ctx, "Rate cache hit", slog.String("from", from), slog.String("to", to))
		return rate, nil
	}

	v, err, _ := c.group.Do(from+"->"+to, func() (any, error) {
		// A concurrent caller may have filled the entry while we waited.
		if rate, ok := c.lookup(key); ok {
			return rate, nil
		}
		return c.fetch(ctx, key)
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	return v.(decimal.Decimal), nil
}

// Invalidate drops every cached rate.
func (c *RateCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[rateKey]rateEntry)
}

func (c *RateCache) lookup(key rateKey) (decimal.Decimal, bool) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return decimal.Decimal{}, false
	}
	if now.Before(entry.expiresAt) {
		return entry.rate, true
	}

	c.mu.Lock()
	if current, ok := c.entries[key]; ok && !now.Before(current.expiresAt) {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return decimal.Decimal{}, false
}

func (c *RateCache) fetch(ctx context.Context, key rateKey) (decimal.Decimal, error) {
	logger := c.GetLogger(ctx).With(slog.String("from", key.from), slog.String("to", key.to))

	body, err := c.provider.Fetch(ctx, key.from, key.to)
	if err != nil {
		var fetchErr *apperrors.RateFetchError
		if !errors.As(err, &fetchErr) {
			fetchErr = &apperrors.RateFetchError{From: key.from, To: key.to, Err: err}
		}
		logger.Warn("Rate provider request failed", slog.String("error", err.Error()))
		return decimal.Decimal{}, fetchErr
	}

	for _, extract := range c.extractors {
		if rate, ok := extract(body, key.to); ok {
			c.mu.Lock()
			c.entries[key] = rateEntry{rate: rate, expiresAt: c.now().Add(c.ttl)}
			c.mu.Unlock()
			logger.Info("Rate cached", slog.String("rate", rate.String()))
			return rate, nil
		}
	}

	parseErr := apperrors.NewRateParseError(key.from, key.to, body)
	logger.Warn("Rate provider response not understood", slog.String("preview", parseErr.Preview))
	return decimal.Decimal{}, parseErr
}
