package alphavantage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio/internal/domain"
)

// TestNewClient tests client creation.
func TestNewClient(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	assert.NotNil(t, client)
	assert.Equal(t, "test-key", client.apiKey)
	assert.Equal(t, 25, client.GetRemainingRequests())
}

// TestRateLimiting tests the rate limiting functionality.
func TestRateLimiting(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	// Simulate using all requests
	for i := 0; i < 25; i++ {
		remaining := client.GetRemainingRequests()
		assert.Equal(t, 25-i, remaining)
		err := client.checkRateLimit()
		require.NoError(t, err)
	}

	// 26th request should fail
	err := client.checkRateLimit()
	assert.Error(t, err)
	assert.IsType(t, ErrRateLimitExceeded{}, err)
}

// TestResetDailyCounter tests counter reset.
func TestResetDailyCounter(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	// Use some requests
	for i := 0; i < 10; i++ {
		_ = client.checkRateLimit()
	}
	assert.Equal(t, 15, client.GetRemainingRequests())

	// Reset
	client.ResetDailyCounter()
	assert.Equal(t, 25, client.GetRemainingRequests())
}

// TestCaching tests the cache functionality.
func TestCaching(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	// Set a cache entry
	testData := "test data"
	client.setCache("test-key", testData, time.Hour)

	// Retrieve it
	cached, ok := client.getFromCache("test-key")
	assert.True(t, ok)
	assert.Equal(t, testData, cached)

	// Non-existent key
	_, ok = client.getFromCache("non-existent")
	assert.False(t, ok)
}

// TestCacheExpiration tests cache expiration.
func TestCacheExpiration(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	// Set with very short TTL
	client.setCache("test-key", "test data", time.Millisecond)

	// Wait for expiration
	time.Sleep(5 * time.Millisecond)

	// Should be expired
	_, ok := client.getFromCache("test-key")
	assert.False(t, ok)
}

// TestClearCache tests cache clearing.
func TestClearCache(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	client.setCache("key1", "data1", time.Hour)
	client.setCache("key2", "data2", time.Hour)

	client.ClearCache()

	_, ok1 := client.getFromCache("key1")
	_, ok2 := client.getFromCache("key2")
	assert.False(t, ok1)
	assert.False(t, ok2)
}

// TestGetQuote tests quote fetching and field mapping.
func TestGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Global Quote": {
				"01. symbol": "AAPL",
				"02. open": "149.50",
				"03. high": "151.20",
				"04. low": "148.90",
				"05. price": "150.25",
				"06. volume": "58234120",
				"08. previous close": "149.00",
				"09. change": "1.25",
				"10. change percent": "0.8389%"
			}
		}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", zerolog.Nop())
	client.SetBaseURL(srv.URL)

	quote, err := client.GetQuote(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, "150.25", quote.Price.String())
	assert.Equal(t, "149", quote.PreviousClose.String())
	assert.Equal(t, "0.8389", quote.ChangePercent.String())
	assert.Equal(t, int64(58234120), quote.Volume)
}

// TestGetQuoteCached tests that a second lookup does not hit the API.
func TestGetQuoteCached(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{
			"Global Quote": {
				"01. symbol": "MSFT",
				"02. open": "1", "03. high": "1", "04. low": "1",
				"05. price": "400.10", "06. volume": "100",
				"08. previous close": "1", "09. change": "0",
				"10. change percent": "0%"
			}
		}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", zerolog.Nop())
	client.SetBaseURL(srv.URL)

	_, err := client.GetQuote(context.Background(), "MSFT")
	require.NoError(t, err)
	_, err = client.GetQuote(context.Background(), "MSFT")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 24, client.GetRemainingRequests())
}

// TestGetQuoteMalformed tests that a malformed response surfaces as
// quote-unavailable without modifying anything.
func TestGetQuoteMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Global Quote": {"01. symbol": "BAD", "05. price": "not-a-number"}}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", zerolog.Nop())
	client.SetBaseURL(srv.URL)

	_, err := client.GetQuote(context.Background(), "BAD")
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
}

// TestGetQuoteEmptyResponse tests the empty Global Quote case.
func TestGetQuoteEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", zerolog.Nop())
	client.SetBaseURL(srv.URL)

	_, err := client.GetQuote(context.Background(), "NOPE")
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
}

// TestGetOverview tests metadata fetching.
func TestGetOverview(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "OVERVIEW", r.URL.Query().Get("function"))
		_, _ = w.Write([]byte(`{
			"Name": "Apple Inc",
			"Exchange": "NASDAQ",
			"Sector": "Technology",
			"Industry": "Consumer Electronics",
			"Currency": "USD"
		}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", zerolog.Nop())
	client.SetBaseURL(srv.URL)

	overview, err := client.GetOverview(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc", overview["Name"])
	assert.Equal(t, "Technology", overview["Sector"])
}
