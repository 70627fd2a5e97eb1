package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/folio/internal/domain"
)

// Service provides catalog business logic on top of the repository,
// keeping the price cache consistent with storage. Every mutation
// invalidates the affected cache entry after the write lands; reads
// repopulate lazily.
type Service struct {
	repo   *Repository
	cache  *Cache
	quotes domain.QuoteProvider
	log    zerolog.Logger

	refreshBatchSize int
	refreshCooldown  time.Duration
}

// NewService creates a new catalog service. batchSize is the number of
// quote calls made before pausing for cooldown during a bulk refresh.
func NewService(repo *Repository, cache *Cache, quotes domain.QuoteProvider, batchSize int, cooldown time.Duration, log zerolog.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 5
	}
	return &Service{
		repo:             repo,
		cache:            cache,
		quotes:           quotes,
		log:              log.With().Str("service", "catalog").Logger(),
		refreshBatchSize: batchSize,
		refreshCooldown:  cooldown,
	}
}

// ByID returns a stock by id
func (s *Service) ByID(id int64) (*domain.Stock, error) {
	stock, err := s.repo.ByID(id)
	if err != nil {
		return nil, err
	}
	if stock == nil {
		return nil, fmt.Errorf("stock %d: %w", id, domain.ErrNotFound)
	}
	return stock, nil
}

// ByTicker returns a stock by ticker, consulting the cache first
func (s *Service) ByTicker(ticker string) (*domain.Stock, error) {
	if cached, ok := s.cache.Get(ticker); ok {
		return &cached, nil
	}

	stock, err := s.repo.ByTicker(ticker)
	if err != nil {
		return nil, err
	}
	if stock == nil {
		return nil, fmt.Errorf("stock %q: %w", ticker, domain.ErrNotFound)
	}
	s.cache.Put(*stock)
	return stock, nil
}

// All returns every stock in the catalog
func (s *Service) All() ([]domain.Stock, error) {
	return s.repo.All()
}

// Search returns stocks matching the query by ticker or name
func (s *Service) Search(query string) ([]domain.Stock, error) {
	if strings.TrimSpace(query) == "" {
		return s.repo.All()
	}
	return s.repo.Search(query)
}

// TopByPrice returns the highest-priced stocks
func (s *Service) TopByPrice(limit int) ([]domain.Stock, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.repo.TopByPrice(limit)
}

// Create adds a new stock to the catalog
func (s *Service) Create(ticker, name, exchange, sector, industry, currency string) (*domain.Stock, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required: %w", domain.ErrInvalidInput)
	}

	exists, err := s.repo.ExistsTicker(ticker)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("stock %q: %w", ticker, domain.ErrAlreadyExists)
	}

	if currency == "" {
		currency = "USD"
	}
	stock := &domain.Stock{
		Ticker:   ticker,
		Name:     strings.TrimSpace(name),
		Exchange: strings.TrimSpace(exchange),
		Sector:   strings.TrimSpace(sector),
		Industry: strings.TrimSpace(industry),
		Currency: currency,
	}
	if err := s.repo.Save(stock); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ticker)

	s.log.Info().Str("ticker", ticker).Msg("Stock added to catalog")
	return stock, nil
}

// Update changes the descriptive fields of a stock. The ticker itself
// is immutable.
func (s *Service) Update(id int64, name, exchange, sector, industry, currency string) (*domain.Stock, error) {
	stock, err := s.ByID(id)
	if err != nil {
		return nil, err
	}

	stock.Name = strings.TrimSpace(name)
	stock.Exchange = strings.TrimSpace(exchange)
	stock.Sector = strings.TrimSpace(sector)
	stock.Industry = strings.TrimSpace(industry)
	if currency != "" {
		stock.Currency = currency
	}
	stock.LastUpdated = time.Now()

	if err := s.repo.Save(stock); err != nil {
		return nil, err
	}
	s.cache.Invalidate(stock.Ticker)
	return stock, nil
}

// SetPrice records a new current price for a stock
func (s *Service) SetPrice(ticker string, price decimal.Decimal) (*domain.Stock, error) {
	if !price.IsPositive() {
		return nil, fmt.Errorf("price must be positive: %w", domain.ErrInvalidInput)
	}

	stock, err := s.repo.ByTicker(ticker)
	if err != nil {
		return nil, err
	}
	if stock == nil {
		return nil, fmt.Errorf("stock %q: %w", ticker, domain.ErrNotFound)
	}

	stock.CurrentPrice = &price
	stock.LastUpdated = time.Now()
	if err := s.repo.Save(stock); err != nil {
		return nil, err
	}
	s.cache.Invalidate(stock.Ticker)
	return stock, nil
}

// SetPriceByID records a new current price for a stock addressed by id
func (s *Service) SetPriceByID(id int64, price decimal.Decimal) (*domain.Stock, error) {
	stock, err := s.ByID(id)
	if err != nil {
		return nil, err
	}
	return s.SetPrice(stock.Ticker, price)
}

// PriceUpdate is one ticker/price pair for a batch price load
type PriceUpdate struct {
	Ticker string
	Price  decimal.Decimal
}

// BatchSetPrices applies many price updates, skipping unknown tickers
// and non-positive prices. It returns the tickers actually updated.
func (s *Service) BatchSetPrices(updates []PriceUpdate) ([]string, error) {
	var applied []string
	for _, u := range updates {
		if _, err := s.SetPrice(u.Ticker, u.Price); err != nil {
			s.log.Warn().Err(err).Str("ticker", u.Ticker).Msg("Skipping price update")
			continue
		}
		applied = append(applied, strings.ToUpper(strings.TrimSpace(u.Ticker)))
	}
	return applied, nil
}

// Delete removes a stock from the catalog
func (s *Service) Delete(id int64) error {
	stock, err := s.ByID(id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	s.cache.Invalidate(stock.Ticker)
	s.log.Info().Str("ticker", stock.Ticker).Msg("Stock removed from catalog")
	return nil
}

// ClearCache drops every cached stock
func (s *Service) ClearCache() {
	s.cache.Clear()
}

// AveragePriceBySector returns the average current price per sector
func (s *Service) AveragePriceBySector() ([]domain.SectorValue, error) {
	return s.repo.SectorAveragePrices()
}

// StocksNeedingRefresh returns stocks not updated within maxAge
func (s *Service) StocksNeedingRefresh(maxAge time.Duration) ([]domain.Stock, error) {
	return s.repo.StaleSince(time.Now().Add(-maxAge))
}

// CreateFromQuote looks the ticker up with the quote provider and adds
// it to the catalog with its live price and company profile. When the
// ticker already exists the existing stock is returned unchanged.
func (s *Service) CreateFromQuote(ctx context.Context, ticker string) (*domain.Stock, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required: %w", domain.ErrInvalidInput)
	}

	existing, err := s.repo.ByTicker(ticker)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	quote, err := s.quotes.GetQuote(ctx, ticker)
	if err != nil {
		return nil, err
	}

	stock := &domain.Stock{
		Ticker:       ticker,
		Currency:     "USD",
		CurrentPrice: &quote.Price,
	}

	// Profile fields are best-effort; a quote alone is enough to list
	// the stock.
	if overview, err := s.quotes.GetOverview(ctx, ticker); err == nil {
		stock.Name = overview["Name"]
		stock.Exchange = overview["Exchange"]
		stock.Sector = overview["Sector"]
		stock.Industry = overview["Industry"]
		if c := overview["Currency"]; c != "" {
			stock.Currency = c
		}
	} else {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Company overview unavailable")
	}

	if err := s.repo.Save(stock); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ticker)

	s.log.Info().Str("ticker", ticker).Msg("Stock created from live quote")
	return stock, nil
}

// RefreshPrice fetches a live quote for one stock and stores its price
func (s *Service) RefreshPrice(ctx context.Context, ticker string) (*domain.Stock, error) {
	stock, err := s.repo.ByTicker(ticker)
	if err != nil {
		return nil, err
	}
	if stock == nil {
		return nil, fmt.Errorf("stock %q: %w", ticker, domain.ErrNotFound)
	}

	quote, err := s.quotes.GetQuote(ctx, stock.Ticker)
	if err != nil {
		return nil, err
	}

	stock.CurrentPrice = &quote.Price
	stock.LastUpdated = time.Now()
	if err := s.repo.Save(stock); err != nil {
		return nil, err
	}
	s.cache.Invalidate(stock.Ticker)

	s.log.Debug().Str("ticker", stock.Ticker).Str("price", quote.Price.String()).Msg("Price refreshed")
	return stock, nil
}

// RefreshAllPrices refreshes every stock in the catalog, pausing for
// the cooldown after each batch of quote calls so the provider's rate
// limit is respected. A failed quote skips that stock and the run
// continues; cancelling the context stops the run after the current
// call.
func (s *Service) RefreshAllPrices(ctx context.Context) (*domain.RefreshReport, error) {
	stocks, err := s.repo.All()
	if err != nil {
		return nil, err
	}

	report := &domain.RefreshReport{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
	}

	for i, stock := range stocks {
		if err := ctx.Err(); err != nil {
			s.log.Warn().Str("report_id", report.ID).Int("completed", i).Msg("Refresh run cancelled")
			break
		}

		if _, err := s.RefreshPrice(ctx, stock.Ticker); err != nil {
			report.Skipped = append(report.Skipped, domain.RefreshFailure{
				Ticker: stock.Ticker,
				Reason: err.Error(),
			})
		} else {
			report.Updated = append(report.Updated, stock.Ticker)
		}

		if (i+1)%s.refreshBatchSize == 0 && i+1 < len(stocks) && s.refreshCooldown > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.refreshCooldown):
			}
		}
	}

	report.FinishedAt = time.Now()
	s.log.Info().
		Str("report_id", report.ID).
		Int("updated", len(report.Updated)).
		Int("skipped", len(report.Skipped)).
		Msg("Price refresh run finished")
	return report, nil
}
