// Package domain provides core domain models and types.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role represents an account role
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Account represents a user account that owns positions and transactions
type Account struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
}

// Stock represents a tradable instrument in the catalog
type Stock struct {
	ID           int64            `json:"id"`
	Ticker       string           `json:"ticker"`
	Name         string           `json:"name"`
	Exchange     string           `json:"exchange"`
	Sector       string           `json:"sector"`
	Industry     string           `json:"industry"`
	Currency     string           `json:"currency"`
	CurrentPrice *decimal.Decimal `json:"current_price"` // nil until first refresh
	LastUpdated  time.Time        `json:"last_updated"`
}

// TransactionType represents the side of a transaction
type TransactionType string

const (
	TransactionBuy  TransactionType = "BUY"
	TransactionSell TransactionType = "SELL"
)

// Position represents a user's aggregate holding in one stock.
// Quantity carries 6 fractional digits, AverageCost 4. A position whose
// quantity reaches zero is retained as a historical record.
type Position struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	StockID         int64           `json:"stock_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	AverageCost     decimal.Decimal `json:"average_cost"`
	FirstPurchased  time.Time       `json:"first_purchased"`
	LastTransaction time.Time       `json:"last_transaction"`
	Notes           string          `json:"notes"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TotalCost returns the cost basis of the position (quantity * average cost)
func (p *Position) TotalCost() decimal.Decimal {
	return p.Quantity.Mul(p.AverageCost)
}

// CurrentValue returns the market value of the position for the given price,
// or nil when no price is known
func (p *Position) CurrentValue(price *decimal.Decimal) *decimal.Decimal {
	if price == nil {
		return nil
	}
	v := p.Quantity.Mul(*price)
	return &v
}

// Transaction represents an immutable record of one BUY or SELL event
type Transaction struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	StockID         int64           `json:"stock_id"`
	PositionID      int64           `json:"position_id"`
	Type            TransactionType `json:"type"`
	Quantity        decimal.Decimal `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	Fee             decimal.Decimal `json:"fee"`
	TransactionDate time.Time       `json:"transaction_date"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Value returns quantity * price, excluding fees
func (t *Transaction) Value() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}

// TotalCost returns the transaction value including fees: value + fee for a
// BUY, value - fee for a SELL
func (t *Transaction) TotalCost() decimal.Decimal {
	if t.Type == TransactionBuy {
		return t.Value().Add(t.Fee)
	}
	return t.Value().Sub(t.Fee)
}

// Quote represents a single quote from the external provider
type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        int64           `json:"volume"`
	Timestamp     time.Time       `json:"timestamp"`
}

// PerformanceMetrics represents portfolio performance as of now.
// RealizedGain is total sales minus fees; it is not netted against the cost
// basis of the shares sold.
type PerformanceMetrics struct {
	TotalValue       decimal.Decimal `json:"total_value"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	TotalGain        decimal.Decimal `json:"total_gain"`
	PercentageReturn decimal.Decimal `json:"percentage_return"`
	TotalInvestment  decimal.Decimal `json:"total_investment"`
	TotalSales       decimal.Decimal `json:"total_sales"`
	TotalBuyFees     decimal.Decimal `json:"total_buy_fees"`
	TotalSellFees    decimal.Decimal `json:"total_sell_fees"`
	TotalFees        decimal.Decimal `json:"total_fees"`
	RealizedGain     decimal.Decimal `json:"realized_gain"`
}

// SectorValue represents the summed market value held in one sector
type SectorValue struct {
	Sector string          `json:"sector"`
	Value  decimal.Decimal `json:"value"`
}

// MonthlySummary represents buy/sell totals for one calendar month
type MonthlySummary struct {
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	BuyAmount  decimal.Decimal `json:"buy_amount"`
	SellAmount decimal.Decimal `json:"sell_amount"`
}

// RefreshFailure records one ticker that could not be refreshed in a batch
type RefreshFailure struct {
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}

// RefreshReport summarizes one batch price refresh run
type RefreshReport struct {
	ID         string           `json:"id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Updated    []string         `json:"updated"`
	Skipped    []RefreshFailure `json:"skipped"`
}
