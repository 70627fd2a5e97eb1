package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio/internal/domain"
	foliotest "github.com/aristath/folio/internal/testing"
)

type mockQuoteProvider struct {
	mock.Mock
}

func (m *mockQuoteProvider) GetQuote(ctx context.Context, ticker string) (*domain.Quote, error) {
	args := m.Called(ctx, ticker)
	if q := args.Get(0); q != nil {
		return q.(*domain.Quote), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockQuoteProvider) GetOverview(ctx context.Context, ticker string) (map[string]string, error) {
	args := m.Called(ctx, ticker)
	if o := args.Get(0); o != nil {
		return o.(map[string]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestCatalog(t *testing.T, quotes domain.QuoteProvider) (*Service, *Cache, func()) {
	t.Helper()
	db, cleanup := foliotest.NewTestDB(t)
	repo := NewRepository(db.Conn(), zerolog.Nop())
	cache := NewCache()
	svc := NewService(repo, cache, quotes, 2, 0, zerolog.Nop())
	return svc, cache, cleanup
}

func TestCreateAndLookup(t *testing.T) {
	svc, _, cleanup := newTestCatalog(t, nil)
	defer cleanup()

	stock, err := svc.Create("aapl", "Apple Inc.", "NASDAQ", "Technology", "Consumer Electronics", "USD")
	require.NoError(t, err)
	assert.NotZero(t, stock.ID)
	assert.Equal(t, "AAPL", stock.Ticker)
	assert.Nil(t, stock.CurrentPrice)

	// Ticker lookup is case-insensitive
	found, err := svc.ByTicker("AaPl")
	require.NoError(t, err)
	assert.Equal(t, stock.ID, found.ID)

	byID, err := svc.ByID(stock.ID)
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", byID.Name)
}

func TestCreateDuplicateTicker(t *testing.T) {
	svc, _, cleanup := newTestCatalog(t, nil)
	defer cleanup()

	_, err := svc.Create("MSFT", "Microsoft", "NASDAQ", "Technology", "", "USD")
	require.NoError(t, err)

	_, err = svc.Create("msft", "Microsoft again", "NASDAQ", "Technology", "", "USD")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestCreateRequiresTicker(t *testing.T) {
	svc, _, cleanup := newTestCatalog(t, nil)
	defer cleanup()

	_, err := svc.Create("   ", "Nameless", "", "", "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLookupUnknownStock(t *testing.T) {
	svc, _, cleanup := newTestCatalog(t, nil)
	defer cleanup()

	_, err := svc.ByTicker("NOPE")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.ByID(42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetPrice(t *testing.T) {
	svc, _, cleanup := newTestCatalog(t, nil)
	defer cleanup()

	_, err := svc.Create("TSLA", "Tesla", "NASDAQ", "Automotive", "", "USD")
	require.NoError(t, err)

	updated, err := svc.SetPrice("TSLA", decimal.RequireFromString("242.50"))
	require.NoError(t, err)
	require.NotNil(t, updated.CurrentPrice)
	assert.True(t, updated.CurrentPrice.Equal(decimal.RequireFromString("242.50")))

	// Price survives a round-trip through storage exactly
	found, err := svc.ByTicker("TSLA")
	require.NoError(t, err)
	require.NotNil(t, found.CurrentPrice)
	assert.Equal(t, "242.5", found.CurrentPrice.String())

	// Addressing by id lands on the same row
	byID, err := svc.SetPriceByID(found.ID, decimal.RequireFromString("250"))
	require.NoError(t, err)
	assert.Equal(t, "TSLA", byID.Ticker)
	assert.Equal(t, "250", byID.CurrentPrice.String())
}

func TestSetPriceRejectsNonPositive(t *testing.T) {
	svc, _, cleanup := newTestCatalog(t, nil)
	defer cleanup()

	_, err := svc.Create("TSLA", "Tesla", "NASDAQ", "Automotive", "", "USD")
	require.NoError(t, err)

	_, err = svc.SetPrice("TSLA", decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.SetPrice("TSLA", decimal.RequireFromString("-1"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCacheInvalidationOnMutation(t *testing.T) {
	svc, cache, cleanup := newTestCatalog(t, nil)
	defer cleanup()

	_, err := svc.Create("NVDA", "NVIDIA", "NASDAQ", "Technology", "", "USD")
	require.NoError(t, err)

	// Read populates the cache
	_, err = svc.ByTicker("NVDA")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	// Mutation drops the entry so the next read sees the new price
	_, err = svc.SetPrice("NVDA", decimal.RequireFromString("118.11"))
	require.NoError(t, err)
	_, ok := cache.Get("NVDA")
	assert.False(t, ok)

	found, err := svc.ByTicker("nvda")
	require.NoError(t, err)
	require.NotNil(t, found.CurrentPrice)
	assert.True(t, found.CurrentPrice.Equal(decimal.RequireFromString("118.11")))
}

func TestDeleteInvalidatesCache(t *testing.T) {
	svc, cache, cleanup := newTestCatalog(t, nil)
	defer cleanup()

	stock, err := svc.Create("INTC", "Intel", "NASDAQ", "Technology", "", "USD")
	require.NoError(t, err)

	_, err = svc.ByTicker("INTC")
	require.NoError(t, err)
	require.Equal(t, 1, cache.Len())

	require.NoError(t, svc.Delete(stock.ID))
	assert.Equal(t, 0, cache.Len())

	_, err = svc.ByTicker("INTC")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClearCacheIdempotent(t *testing.T) {
	svc, cache, cleanup := newTestCatalog(t, nil)
	defer cleanup()

	_, err := svc.Create("AMD", "AMD", "NASDAQ", "Technology", "", "USD")
	require.NoError(t, err)
	_, err = svc.ByTicker("AMD")
	require.NoError(t, err)
	require.Equal(t, 1, cache.Len())

	svc.ClearCache()
	assert.Equal(t, 0, cache.Len())
	svc.ClearCache()
	assert.Equal(t, 0, cache.Len())

	// Reads still work after clearing
	found, err := svc.ByTicker("AMD")
	require.NoError(t, err)
	assert.Equal(t, "AMD", found.Ticker)
}

func TestSearch(t *testing.T) {
	svc, _, cleanup := newTestCatalog(t, nil)
	defer cleanup()

	_, err := svc.Create("AAPL", "Apple Inc.", "NASDAQ", "Technology", "", "USD")
	require.NoError(t, err)
	_, err = svc.Create("APP", "AppLovin", "NASDAQ", "Technology", "", "USD")
	require.NoError(t, err)
	_, err = svc.Create("KO", "Coca-Cola", "NYSE", "Consumer Staples", "", "USD")
	require.NoError(t, err)

	results, err := svc.Search("app")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "AAPL", results[0].Ticker)
	assert.Equal(t, "APP", results[1].Ticker)

	byName, err := svc.Search("cola")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "KO", byName[0].Ticker)

	all, err := svc.Search("  ")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestTopByPriceExcludesUnpriced(t *testing.T) {
	svc, _, cleanup := newTestCatalog(t, nil)
	defer cleanup()

	for _, s := range []struct {
		ticker, price string
	}{
		{"AAA", "10"},
		{"BBB", "300.25"},
		{"CCC", "99.9"},
		{"DDD", ""},
	} {
		_, err := svc.Create(s.ticker, s.ticker, "NYSE", "", "", "USD")
		require.NoError(t, err)
		if s.price != "" {
			_, err = svc.SetPrice(s.ticker, decimal.RequireFromString(s.price))
			require.NoError(t, err)
		}
	}

	top, err := svc.TopByPrice(2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "BBB", top[0].Ticker)
	assert.Equal(t, "CCC", top[1].Ticker)
}

func TestAveragePriceBySector(t *testing.T) {
	svc, _, cleanup := newTestCatalog(t, nil)
	defer cleanup()

	seed := []struct {
		ticker, sector, price string
	}{
		{"AAPL", "Technology", "100"},
		{"MSFT", "Technology", "200"},
		{"KO", "Consumer Staples", "60"},
		{"NEW", "Technology", ""}, // unpriced, excluded
	}
	for _, s := range seed {
		_, err := svc.Create(s.ticker, s.ticker, "NYSE", s.sector, "", "USD")
		require.NoError(t, err)
		if s.price != "" {
			_, err = svc.SetPrice(s.ticker, decimal.RequireFromString(s.price))
			require.NoError(t, err)
		}
	}

	averages, err := svc.AveragePriceBySector()
	require.NoError(t, err)
	require.Len(t, averages, 2)
	assert.Equal(t, "Consumer Staples", averages[0].Sector)
	assert.True(t, averages[0].Value.Equal(decimal.RequireFromString("60")))
	assert.Equal(t, "Technology", averages[1].Sector)
	assert.True(t, averages[1].Value.Equal(decimal.RequireFromString("150")))
}

func TestStocksNeedingRefresh(t *testing.T) {
	svc, _, cleanup := newTestCatalog(t, nil)
	defer cleanup()

	stale, err := svc.Create("OLD", "Old Co", "NYSE", "", "", "USD")
	require.NoError(t, err)
	stale.LastUpdated = time.Now().Add(-48 * time.Hour)
	require.NoError(t, svc.repo.Save(stale))

	_, err = svc.Create("FRESH", "Fresh Co", "NYSE", "", "", "USD")
	require.NoError(t, err)

	needing, err := svc.StocksNeedingRefresh(24 * time.Hour)
	require.NoError(t, err)
	require.Len(t, needing, 1)
	assert.Equal(t, "OLD", needing[0].Ticker)
}

func TestRefreshPrice(t *testing.T) {
	quotes := new(mockQuoteProvider)
	svc, _, cleanup := newTestCatalog(t, quotes)
	defer cleanup()

	_, err := svc.Create("AAPL", "Apple", "NASDAQ", "Technology", "", "USD")
	require.NoError(t, err)

	quotes.On("GetQuote", mock.Anything, "AAPL").Return(&domain.Quote{
		Symbol: "AAPL",
		Price:  decimal.RequireFromString("189.84"),
	}, nil)

	stock, err := svc.RefreshPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, stock.CurrentPrice)
	assert.True(t, stock.CurrentPrice.Equal(decimal.RequireFromString("189.84")))
	quotes.AssertExpectations(t)
}

func TestRefreshPriceUnknownStock(t *testing.T) {
	quotes := new(mockQuoteProvider)
	svc, _, cleanup := newTestCatalog(t, quotes)
	defer cleanup()

	_, err := svc.RefreshPrice(context.Background(), "NOPE")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	quotes.AssertNotCalled(t, "GetQuote", mock.Anything, mock.Anything)
}

func TestRefreshAllPricesContinuesPastFailures(t *testing.T) {
	quotes := new(mockQuoteProvider)
	svc, _, cleanup := newTestCatalog(t, quotes)
	defer cleanup()

	for _, ticker := range []string{"AAA", "BBB", "CCC"} {
		_, err := svc.Create(ticker, ticker, "NYSE", "", "", "USD")
		require.NoError(t, err)
	}

	quotes.On("GetQuote", mock.Anything, "AAA").Return(&domain.Quote{Symbol: "AAA", Price: decimal.RequireFromString("1")}, nil)
	quotes.On("GetQuote", mock.Anything, "BBB").Return(nil, domain.ErrQuoteUnavailable)
	quotes.On("GetQuote", mock.Anything, "CCC").Return(&domain.Quote{Symbol: "CCC", Price: decimal.RequireFromString("3")}, nil)

	report, err := svc.RefreshAllPrices(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, []string{"AAA", "CCC"}, report.Updated)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "BBB", report.Skipped[0].Ticker)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	// The failed stock keeps no price
	bbb, err := svc.ByTicker("BBB")
	require.NoError(t, err)
	assert.Nil(t, bbb.CurrentPrice)
}

func TestRefreshAllPricesCancelled(t *testing.T) {
	quotes := new(mockQuoteProvider)
	svc, _, cleanup := newTestCatalog(t, quotes)
	defer cleanup()

	_, err := svc.Create("AAA", "AAA", "NYSE", "", "", "USD")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := svc.RefreshAllPrices(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Updated)
	assert.Empty(t, report.Skipped)
	quotes.AssertNotCalled(t, "GetQuote", mock.Anything, mock.Anything)
}

func TestCreateFromQuote(t *testing.T) {
	quotes := new(mockQuoteProvider)
	svc, _, cleanup := newTestCatalog(t, quotes)
	defer cleanup()

	quotes.On("GetQuote", mock.Anything, "SHOP").Return(&domain.Quote{
		Symbol: "SHOP",
		Price:  decimal.RequireFromString("71.02"),
	}, nil)
	quotes.On("GetOverview", mock.Anything, "SHOP").Return(map[string]string{
		"Name":     "Shopify Inc",
		"Exchange": "NYSE",
		"Sector":   "Technology",
		"Industry": "Software",
		"Currency": "USD",
	}, nil)

	stock, err := svc.CreateFromQuote(context.Background(), "shop")
	require.NoError(t, err)
	assert.Equal(t, "SHOP", stock.Ticker)
	assert.Equal(t, "Shopify Inc", stock.Name)
	assert.Equal(t, "Technology", stock.Sector)
	require.NotNil(t, stock.CurrentPrice)
	assert.True(t, stock.CurrentPrice.Equal(decimal.RequireFromString("71.02")))

	// Second call returns the existing stock without another quote
	again, err := svc.CreateFromQuote(context.Background(), "SHOP")
	require.NoError(t, err)
	assert.Equal(t, stock.ID, again.ID)
	quotes.AssertNumberOfCalls(t, "GetQuote", 1)
}

func TestCreateFromQuoteSurvivesMissingOverview(t *testing.T) {
	quotes := new(mockQuoteProvider)
	svc, _, cleanup := newTestCatalog(t, quotes)
	defer cleanup()

	quotes.On("GetQuote", mock.Anything, "XYZ").Return(&domain.Quote{
		Symbol: "XYZ",
		Price:  decimal.RequireFromString("5.55"),
	}, nil)
	quotes.On("GetOverview", mock.Anything, "XYZ").Return(nil, errors.New("overview down"))

	stock, err := svc.CreateFromQuote(context.Background(), "XYZ")
	require.NoError(t, err)
	assert.Equal(t, "XYZ", stock.Ticker)
	assert.Empty(t, stock.Name)
	require.NotNil(t, stock.CurrentPrice)
}

func TestBatchSetPrices(t *testing.T) {
	svc, _, cleanup := newTestCatalog(t, nil)
	defer cleanup()

	_, err := svc.Create("AAA", "AAA", "NYSE", "", "", "USD")
	require.NoError(t, err)
	_, err = svc.Create("BBB", "BBB", "NYSE", "", "", "USD")
	require.NoError(t, err)

	applied, err := svc.BatchSetPrices([]PriceUpdate{
		{Ticker: "AAA", Price: decimal.RequireFromString("10")},
		{Ticker: "MISSING", Price: decimal.RequireFromString("20")},
		{Ticker: "BBB", Price: decimal.Zero},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA"}, applied)
}
