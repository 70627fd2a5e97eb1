// Package catalog maintains the tradable stock universe and its quote
// price cache.
package catalog

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/folio/internal/domain"
)

// Repository handles stock database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new stock repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "catalog").Logger(),
	}
}

const stockColumns = `id, ticker, name, exchange, sector, industry, currency, current_price, last_updated`

// ByID returns a stock by id, or nil when not found
func (r *Repository) ByID(id int64) (*domain.Stock, error) {
	row := r.db.QueryRow(`SELECT `+stockColumns+` FROM stocks WHERE id = ?`, id)
	return scanStock(row)
}

// ByTicker returns a stock by ticker (case-insensitive), or nil when not found
func (r *Repository) ByTicker(ticker string) (*domain.Stock, error) {
	row := r.db.QueryRow(`SELECT `+stockColumns+` FROM stocks WHERE ticker = ?`, strings.TrimSpace(ticker))
	return scanStock(row)
}

// ExistsTicker reports whether a stock with the ticker exists (case-insensitive)
func (r *Repository) ExistsTicker(ticker string) (bool, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM stocks WHERE ticker = ?`, strings.TrimSpace(ticker)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check ticker existence: %w", err)
	}
	return count > 0, nil
}

// All returns every stock ordered by ticker
func (r *Repository) All() ([]domain.Stock, error) {
	rows, err := r.db.Query(`SELECT ` + stockColumns + ` FROM stocks ORDER BY ticker ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stocks: %w", err)
	}
	defer rows.Close()
	return collectStocks(rows)
}

// Save inserts the stock when its id is zero, otherwise updates it
func (r *Repository) Save(stock *domain.Stock) error {
	if stock.LastUpdated.IsZero() {
		stock.LastUpdated = time.Now()
	}

	var price interface{}
	if stock.CurrentPrice != nil {
		price = stock.CurrentPrice.String()
	}

	if stock.ID == 0 {
		res, err := r.db.Exec(
			`INSERT INTO stocks (ticker, name, exchange, sector, industry, currency, current_price, last_updated)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			stock.Ticker, stock.Name, stock.Exchange, nullString(stock.Sector), nullString(stock.Industry),
			stock.Currency, price, stock.LastUpdated.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert stock: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get stock id: %w", err)
		}
		stock.ID = id
		return nil
	}

	_, err := r.db.Exec(
		`UPDATE stocks SET ticker = ?, name = ?, exchange = ?, sector = ?, industry = ?,
		 currency = ?, current_price = ?, last_updated = ? WHERE id = ?`,
		stock.Ticker, stock.Name, stock.Exchange, nullString(stock.Sector), nullString(stock.Industry),
		stock.Currency, price, stock.LastUpdated.Unix(), stock.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	return nil
}

// Delete removes a stock by id
func (r *Repository) Delete(id int64) error {
	_, err := r.db.Exec(`DELETE FROM stocks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete stock: %w", err)
	}
	return nil
}

// TopByPrice returns the priced stocks with the highest current price.
// Stocks without a price yet are excluded.
func (r *Repository) TopByPrice(limit int) ([]domain.Stock, error) {
	rows, err := r.db.Query(
		`SELECT `+stockColumns+` FROM stocks
		 WHERE current_price IS NOT NULL
		 ORDER BY CAST(current_price AS REAL) DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top stocks: %w", err)
	}
	defer rows.Close()
	return collectStocks(rows)
}

// Search returns stocks whose ticker or name contains the query (case-insensitive)
func (r *Repository) Search(query string) ([]domain.Stock, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	rows, err := r.db.Query(
		`SELECT `+stockColumns+` FROM stocks
		 WHERE LOWER(ticker) LIKE ? OR LOWER(name) LIKE ?
		 ORDER BY ticker ASC`, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search stocks: %w", err)
	}
	defer rows.Close()
	return collectStocks(rows)
}

// StaleSince returns stocks whose price was last updated before the cutoff
func (r *Repository) StaleSince(cutoff time.Time) ([]domain.Stock, error) {
	rows, err := r.db.Query(
		`SELECT `+stockColumns+` FROM stocks WHERE last_updated < ? ORDER BY last_updated ASC`,
		cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query stale stocks: %w", err)
	}
	defer rows.Close()
	return collectStocks(rows)
}

// SectorAveragePrices returns the average current price per sector for
// priced stocks with a known sector
func (r *Repository) SectorAveragePrices() ([]domain.SectorValue, error) {
	rows, err := r.db.Query(
		`SELECT sector, AVG(CAST(current_price AS REAL)) FROM stocks
		 WHERE sector IS NOT NULL AND current_price IS NOT NULL
		 GROUP BY sector ORDER BY sector ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sector averages: %w", err)
	}
	defer rows.Close()

	var averages []domain.SectorValue
	for rows.Next() {
		var sector string
		var avg float64
		if err := rows.Scan(&sector, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan sector average: %w", err)
		}
		averages = append(averages, domain.SectorValue{
			Sector: sector,
			Value:  decimal.NewFromFloat(avg).Round(4),
		})
	}
	return averages, rows.Err()
}

func scanStock(row *sql.Row) (*domain.Stock, error) {
	stock, err := scanStockFrom(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan stock: %w", err)
	}
	return stock, nil
}

func collectStocks(rows *sql.Rows) ([]domain.Stock, error) {
	var stocks []domain.Stock
	for rows.Next() {
		stock, err := scanStockFrom(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, *stock)
	}
	return stocks, rows.Err()
}

func scanStockFrom(scan func(dest ...interface{}) error) (*domain.Stock, error) {
	var stock domain.Stock
	var sector, industry, price sql.NullString
	var lastUpdated int64

	err := scan(&stock.ID, &stock.Ticker, &stock.Name, &stock.Exchange,
		&sector, &industry, &stock.Currency, &price, &lastUpdated)
	if err != nil {
		return nil, err
	}

	stock.Sector = sector.String
	stock.Industry = industry.String
	stock.LastUpdated = time.Unix(lastUpdated, 0)
	if price.Valid {
		p, err := decimal.NewFromString(price.String)
		if err != nil {
			return nil, fmt.Errorf("invalid stored price %q: %w", price.String, err)
		}
		stock.CurrentPrice = &p
	}
	return &stock, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
