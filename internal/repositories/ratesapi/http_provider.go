// Package ratesapi fetches raw exchange rate quotes over HTTP.
package ratesapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hivefi/ledger/internal/apperrors"
)

const (
	// DefaultTimeout bounds a single provider call.
	DefaultTimeout = 20 * time.Second
	userAgent      = "hivefi-ledger/1.0"
	maxBodyBytes   = 1 << 20
)

// HTTPProvider implements providers.RateProvider against a JSON HTTP endpoint.
//
// When the endpoint contains two %s verbs they are filled with the from and
// to codes. Otherwise from, to and amount=1 are added as query parameters.
type HTTPProvider struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// Option configures an HTTPProvider.
type Option func(*HTTPProvider)

// WithAPIKey sends key in the apikey header.
func WithAPIKey(key string) Option {
	return func(p *HTTPProvider) { p.apiKey = key }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *HTTPProvider) {
		if client != nil {
			p.client = client
		}
	}
}

// WithTimeout sets the client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(p *HTTPProvider) {
		if timeout > 0 {
			p.client.Timeout = timeout
		}
	}
}

// NewHTTPProvider creates a provider for endpoint.
func NewHTTPProvider(endpoint string, opts ...Option) *HTTPProvider {
	p := &HTTPProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fetch returns the raw body of the provider's quote for from->to.
func (p *HTTPProvider) Fetch(ctx context.Context, fromCode, toCode string) ([]byte, error) {
	target, err := p.buildURL(fromCode, toCode)
	if err != nil {
		return nil, &apperrors.RateFetchError{From: fromCode, To: toCode, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &apperrors.RateFetchError{From: fromCode, To: toCode, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &apperrors.RateFetchError{From: fromCode, To: toCode, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &apperrors.RateFetchError{From: fromCode, To: toCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	slog.DebugContext(ctx, "Rate provider responded",
		slog.String("host", req.URL.Host),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &apperrors.RateFetchError{
			From: fromCode,
			To:   toCode,
			Err:  fmt.Errorf("unexpected status %d: %s", resp.StatusCode, apperrors.BodyPreview(body)),
		}
	}
	return body, nil
}

func (p *HTTPProvider) buildURL(fromCode, toCode string) (string, error) {
	if strings.Count(p.endpoint, "%s") == 2 {
		return fmt.Sprintf(p.endpoint, url.QueryEscape(fromCode), url.QueryEscape(toCode)), nil
	}

	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid rate endpoint %q: %w", p.endpoint, err)
	}
	q := u.Query()
	q.Set("from", fromCode)
	q.Set("to", toCode)
	q.Set("amount", "1")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
