package ratesapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hivefi/ledger/internal/apperrors"
	"github.com/hivefi/ledger/internal/repositories/ratesapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProvider_TemplateEndpoint(t *testing.T) {
	var gotPath, gotQuery, gotKey, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("apikey")
		gotAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"rates":{"EUR":0.9}}`))
	}))
	defer srv.Close()

	p := ratesapi.NewHTTPProvider(srv.URL+"/latest?from=%s&to=%s", ratesapi.WithAPIKey("secret"))
	body, err := p.Fetch(context.Background(), "USD", "EUR")
	require.NoError(t, err)

	assert.JSONEq(t, `{"rates":{"EUR":0.9}}`, string(body))
	assert.Equal(t, "/latest", gotPath)
	assert.Equal(t, "from=USD&to=EUR", gotQuery)
	assert.Equal(t, "secret", gotKey)
	assert.NotEmpty(t, gotAgent)
}

func TestHTTPProvider_PlainEndpointGetsQueryParams(t *testing.T) {
	var query map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		assert.Empty(t, r.Header.Get("apikey"))
		_, _ = w.Write([]byte(`{"result":1.1}`))
	}))
	defer srv.Close()

	p := ratesapi.NewHTTPProvider(srv.URL + "/convert")
	_, err := p.Fetch(context.Background(), "GBP", "USD")
	require.NoError(t, err)

	assert.Equal(t, []string{"GBP"}, query["from"])
	assert.Equal(t, []string{"USD"}, query["to"])
	assert.Equal(t, []string{"1"}, query["amount"])
}

func TestHTTPProvider_Non2xxIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	}))
	defer srv.Close()

	_, err := ratesapi.NewHTTPProvider(srv.URL).Fetch(context.Background(), "USD", "EUR")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrRateFetch))
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPProvider_TimeoutIsFetchError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := ratesapi.NewHTTPProvider(srv.URL, ratesapi.WithTimeout(50*time.Millisecond))
	_, err := p.Fetch(context.Background(), "USD", "EUR")

	var fetchErr *apperrors.RateFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "USD", fetchErr.From)
	assert.Equal(t, "EUR", fetchErr.To)
}
