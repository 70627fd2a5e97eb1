// Package alphavantage provides a client for the Alpha Vantage market data API.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/folio/internal/domain"
)

const (
	defaultBaseURL = "https://www.alphavantage.co/query"

	// Free tier allows 25 requests per day
	dailyRequestLimit = 25

	quoteCacheTTL    = time.Minute
	overviewCacheTTL = 24 * time.Hour
)

// ErrRateLimitExceeded is returned when the daily request budget is exhausted
type ErrRateLimitExceeded struct {
	Limit int
}

func (e ErrRateLimitExceeded) Error() string {
	return fmt.Sprintf("alpha vantage daily rate limit of %d requests exceeded", e.Limit)
}

type cacheEntry struct {
	data      interface{}
	expiresAt time.Time
}

// Client is an Alpha Vantage API client with request budgeting and a small
// response cache. It implements domain.QuoteProvider.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger

	mu           sync.Mutex
	requestsUsed int
	cache        map[string]cacheEntry
}

// NewClient creates a new Alpha Vantage client
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With().Str("client", "alphavantage").Logger(),
		cache:      make(map[string]cacheEntry),
	}
}

// SetBaseURL overrides the API endpoint (used in tests)
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// GetRemainingRequests returns how many requests are left in today's budget
func (c *Client) GetRemainingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return dailyRequestLimit - c.requestsUsed
}

// ResetDailyCounter resets the daily request counter
func (c *Client) ResetDailyCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestsUsed = 0
	c.log.Debug().Msg("Daily request counter reset")
}

// checkRateLimit consumes one request from the daily budget
func (c *Client) checkRateLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.requestsUsed >= dailyRequestLimit {
		return ErrRateLimitExceeded{Limit: dailyRequestLimit}
	}
	c.requestsUsed++
	return nil
}

func (c *Client) getFromCache(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

func (c *Client) setCache(key string, data interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{data: data, expiresAt: time.Now().Add(ttl)}
}

// ClearCache drops all cached responses
func (c *Client) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cacheEntry)
}

// GetQuote fetches the current GLOBAL_QUOTE for a ticker
func (c *Client) GetQuote(ctx context.Context, ticker string) (*domain.Quote, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("%w: empty ticker", domain.ErrInvalidInput)
	}

	cacheKey := "quote:" + ticker
	if cached, ok := c.getFromCache(cacheKey); ok {
		quote := cached.(domain.Quote)
		return &quote, nil
	}

	if err := c.checkRateLimit(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrQuoteUnavailable, err.Error())
	}

	var payload struct {
		GlobalQuote map[string]string `json:"Global Quote"`
	}
	if err := c.get(ctx, url.Values{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {ticker},
	}, &payload); err != nil {
		return nil, err
	}

	if len(payload.GlobalQuote) == 0 {
		c.log.Error().Str("ticker", ticker).Msg("Empty Global Quote in response")
		return nil, fmt.Errorf("%w: no quote data for %s", domain.ErrQuoteUnavailable, ticker)
	}

	quote, err := parseQuote(payload.GlobalQuote)
	if err != nil {
		c.log.Error().Err(err).Str("ticker", ticker).Msg("Malformed quote response")
		return nil, fmt.Errorf("%w: %s", domain.ErrQuoteUnavailable, err.Error())
	}

	c.setCache(cacheKey, *quote, quoteCacheTTL)
	return quote, nil
}

// GetOverview fetches company metadata (OVERVIEW) for a ticker
func (c *Client) GetOverview(ctx context.Context, ticker string) (map[string]string, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("%w: empty ticker", domain.ErrInvalidInput)
	}

	cacheKey := "overview:" + ticker
	if cached, ok := c.getFromCache(cacheKey); ok {
		return cached.(map[string]string), nil
	}

	if err := c.checkRateLimit(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrQuoteUnavailable, err.Error())
	}

	overview := make(map[string]string)
	if err := c.get(ctx, url.Values{
		"function": {"OVERVIEW"},
		"symbol":   {ticker},
	}, &overview); err != nil {
		return nil, err
	}

	if len(overview) == 0 {
		return nil, fmt.Errorf("%w: no overview data for %s", domain.ErrQuoteUnavailable, ticker)
	}

	c.setCache(cacheKey, overview, overviewCacheTTL)
	return overview, nil
}

// get performs one API request and decodes the JSON body into out
func (c *Client) get(ctx context.Context, params url.Values, out interface{}) error {
	params.Set("apikey", c.apiKey)
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrQuoteUnavailable, err.Error())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrQuoteUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", domain.ErrQuoteUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrQuoteUnavailable, err.Error())
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: malformed response: %s", domain.ErrQuoteUnavailable, err.Error())
	}

	return nil
}

// parseQuote maps Alpha Vantage's numbered GLOBAL_QUOTE fields
func parseQuote(data map[string]string) (*domain.Quote, error) {
	quote := &domain.Quote{
		Symbol:    data["01. symbol"],
		Timestamp: time.Now(),
	}

	fields := []struct {
		key  string
		dest *decimal.Decimal
	}{
		{"05. price", &quote.Price},
		{"02. open", &quote.Open},
		{"03. high", &quote.High},
		{"04. low", &quote.Low},
		{"08. previous close", &quote.PreviousClose},
		{"09. change", &quote.Change},
	}
	for _, f := range fields {
		val, err := decimal.NewFromString(data[f.key])
		if err != nil {
			return nil, fmt.Errorf("field %q: %v", f.key, err)
		}
		*f.dest = val
	}

	changePercent := strings.TrimSuffix(data["10. change percent"], "%")
	cp, err := decimal.NewFromString(changePercent)
	if err != nil {
		return nil, fmt.Errorf("field %q: %v", "10. change percent", err)
	}
	quote.ChangePercent = cp

	volume, err := strconv.ParseInt(data["06. volume"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("field %q: %v", "06. volume", err)
	}
	quote.Volume = volume

	return quote, nil
}
