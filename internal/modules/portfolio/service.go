// Package portfolio derives read-only views over the ledger: valuation,
// performance, allocation and transaction history. It never writes.
package portfolio

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/folio/internal/domain"
)

// Service aggregates positions, transactions and catalog data per user
type Service struct {
	accounts     domain.AccountDirectory
	stocks       domain.StockRepository
	positions    domain.PositionRepository
	transactions domain.TransactionRepository
	log          zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(accounts domain.AccountDirectory, stocks domain.StockRepository,
	positions domain.PositionRepository, transactions domain.TransactionRepository,
	log zerolog.Logger) *Service {
	return &Service{
		accounts:     accounts,
		stocks:       stocks,
		positions:    positions,
		transactions: transactions,
		log:          log.With().Str("service", "portfolio").Logger(),
	}
}

// Holding pairs a position with its stock and derived market figures.
// MarketValue and UnrealizedGain are nil while the stock has no price.
type Holding struct {
	Position       domain.Position  `json:"position"`
	Stock          domain.Stock     `json:"stock"`
	MarketValue    *decimal.Decimal `json:"market_value"`
	UnrealizedGain *decimal.Decimal `json:"unrealized_gain"`
}

func (s *Service) requireAccount(userID int64) error {
	account, err := s.accounts.ByID(userID)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("account %d: %w", userID, domain.ErrNotFound)
	}
	return nil
}

// TotalValue returns the market value of the user's priced positions
func (s *Service) TotalValue(userID int64) (decimal.Decimal, error) {
	if err := s.requireAccount(userID); err != nil {
		return decimal.Zero, err
	}
	return s.positions.TotalValue(userID)
}

// Holdings returns the user's open positions with their stocks and
// market figures, mirroring the ledger exactly
func (s *Service) Holdings(userID int64) ([]Holding, error) {
	if err := s.requireAccount(userID); err != nil {
		return nil, err
	}

	positions, err := s.positions.ByUser(userID)
	if err != nil {
		return nil, err
	}

	holdings := make([]Holding, 0, len(positions))
	for _, pos := range positions {
		if pos.Quantity.IsZero() {
			continue
		}
		stock, err := s.stocks.ByID(pos.StockID)
		if err != nil {
			return nil, err
		}
		if stock == nil {
			return nil, fmt.Errorf("stock %d referenced by position %d: %w", pos.StockID, pos.ID, domain.ErrNotFound)
		}

		h := Holding{Position: pos, Stock: *stock}
		if value := pos.CurrentValue(stock.CurrentPrice); value != nil {
			h.MarketValue = value
			gain := value.Sub(pos.TotalCost())
			h.UnrealizedGain = &gain
		}
		holdings = append(holdings, h)
	}
	return holdings, nil
}

// Performance computes the user's portfolio performance. Unrealized
// figures cover open priced positions; realized gain is total sale
// proceeds net of all fees, not netted against the basis of the shares
// sold. Percentage return is zero when there is no cost basis.
func (s *Service) Performance(userID int64) (*domain.PerformanceMetrics, error) {
	if err := s.requireAccount(userID); err != nil {
		return nil, err
	}

	totalValue, err := s.positions.TotalValue(userID)
	if err != nil {
		return nil, err
	}

	// Cost basis over the same priced positions as totalValue, so an
	// unpriced holding never shows up as a loss
	totalCost, err := s.positions.TotalCost(userID)
	if err != nil {
		return nil, err
	}

	totalInvestment, err := s.transactions.TotalBuyAmount(userID)
	if err != nil {
		return nil, err
	}
	totalSales, err := s.transactions.TotalSellAmount(userID)
	if err != nil {
		return nil, err
	}
	buyFees, err := s.transactions.TotalBuyFees(userID)
	if err != nil {
		return nil, err
	}
	sellFees, err := s.transactions.TotalSellFees(userID)
	if err != nil {
		return nil, err
	}

	totalGain := totalValue.Sub(totalCost)
	percentageReturn := decimal.Zero
	if !totalCost.IsZero() {
		percentageReturn = totalGain.Mul(decimal.New(100, 0)).DivRound(totalCost, 2)
	}

	return &domain.PerformanceMetrics{
		TotalValue:       totalValue,
		TotalCost:        totalCost,
		TotalGain:        totalGain,
		PercentageReturn: percentageReturn,
		TotalInvestment:  totalInvestment,
		TotalSales:       totalSales,
		TotalBuyFees:     buyFees,
		TotalSellFees:    sellFees,
		TotalFees:        buyFees.Add(sellFees),
		RealizedGain:     totalSales.Sub(buyFees).Sub(sellFees),
	}, nil
}

// SectorValues returns the market value held per sector, largest first
func (s *Service) SectorValues(userID int64) ([]domain.SectorValue, error) {
	if err := s.requireAccount(userID); err != nil {
		return nil, err
	}
	return s.positions.SectorSums(userID)
}

// SectorAllocation returns the percentage of portfolio value per
// sector, each sector rounded half-up at two decimal places on its own
// share. The sum may drift from 100 by the rounding.
func (s *Service) SectorAllocation(userID int64) ([]domain.SectorValue, error) {
	sums, err := s.SectorValues(userID)
	if err != nil {
		return nil, err
	}

	allocation := make([]domain.SectorValue, 0, len(sums))
	total := decimal.Zero
	for _, sv := range sums {
		total = total.Add(sv.Value)
	}
	if total.IsZero() {
		return allocation, nil
	}

	hundred := decimal.New(100, 0)
	for _, sv := range sums {
		allocation = append(allocation, domain.SectorValue{
			Sector: sv.Sector,
			Value:  sv.Value.Mul(hundred).DivRound(total, 2),
		})
	}
	return allocation, nil
}

// LargestPositions returns the user's biggest open positions by market value
func (s *Service) LargestPositions(userID int64, limit int) ([]domain.Position, error) {
	if err := s.requireAccount(userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}
	return s.positions.LargestByValue(userID, limit)
}

// PositionsWithGainAbove returns open positions whose unrealized gain
// exceeds the threshold percentage of their cost basis
func (s *Service) PositionsWithGainAbove(userID int64, threshold decimal.Decimal) ([]domain.Position, error) {
	if err := s.requireAccount(userID); err != nil {
		return nil, err
	}
	return s.positions.WithGainAbove(userID, threshold)
}

// Transactions returns the user's full transaction history, newest first
func (s *Service) Transactions(userID int64) ([]domain.Transaction, error) {
	if err := s.requireAccount(userID); err != nil {
		return nil, err
	}
	return s.transactions.ByUser(userID)
}

// TransactionsPage returns one zero-based page of transaction history
func (s *Service) TransactionsPage(userID int64, page, size int) ([]domain.Transaction, error) {
	if err := s.requireAccount(userID); err != nil {
		return nil, err
	}
	return s.transactions.ByUserPaginated(userID, page, size)
}

// TransactionsForTicker returns the user's transactions in one stock
func (s *Service) TransactionsForTicker(userID int64, ticker string) ([]domain.Transaction, error) {
	if err := s.requireAccount(userID); err != nil {
		return nil, err
	}
	stock, err := s.stocks.ByTicker(ticker)
	if err != nil {
		return nil, err
	}
	if stock == nil {
		return nil, fmt.Errorf("stock %q: %w", ticker, domain.ErrNotFound)
	}
	return s.transactions.ByUserAndStock(userID, stock.ID)
}

// TransactionsInRange returns transactions dated within [start, end]
func (s *Service) TransactionsInRange(userID int64, start, end time.Time) ([]domain.Transaction, error) {
	if err := s.requireAccount(userID); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end before start: %w", domain.ErrInvalidInput)
	}
	return s.transactions.ByUserInRange(userID, start, end)
}

// MonthlySummary returns buy/sell totals per calendar month
func (s *Service) MonthlySummary(userID int64) ([]domain.MonthlySummary, error) {
	if err := s.requireAccount(userID); err != nil {
		return nil, err
	}
	return s.transactions.MonthlySummary(userID)
}
