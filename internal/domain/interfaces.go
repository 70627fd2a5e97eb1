package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteProvider defines the contract for the external market data collaborator.
// Implementations must return ErrQuoteUnavailable (possibly wrapped) when the
// provider fails or responds with malformed data.
type QuoteProvider interface {
	// GetQuote fetches the current quote for a ticker
	GetQuote(ctx context.Context, ticker string) (*Quote, error)

	// GetOverview fetches free-form company metadata (name, exchange,
	// sector, industry, currency) for a ticker
	GetOverview(ctx context.Context, ticker string) (map[string]string, error)
}

// AccountDirectory provides account lookup for scoping ledger and
// aggregation operations
type AccountDirectory interface {
	ByID(id int64) (*Account, error)
	ByEmail(email string) (*Account, error)
}

// StockRepository defines catalog storage operations
type StockRepository interface {
	ByID(id int64) (*Stock, error)
	ByTicker(ticker string) (*Stock, error) // case-insensitive
	ExistsTicker(ticker string) (bool, error)
	All() ([]Stock, error)
	Save(stock *Stock) error
	Delete(id int64) error
	TopByPrice(limit int) ([]Stock, error)
	Search(query string) ([]Stock, error) // matches ticker or name
	StaleSince(cutoff time.Time) ([]Stock, error)
}

// PositionRepository defines position storage and the aggregation queries
// that must run at the storage level rather than in memory
type PositionRepository interface {
	ByID(id int64) (*Position, error)
	ByUserAndStock(userID, stockID int64) (*Position, error)
	ByUser(userID int64) ([]Position, error)
	Save(pos *Position) error
	TotalValue(userID int64) (decimal.Decimal, error)
	TotalCost(userID int64) (decimal.Decimal, error)
	SectorSums(userID int64) ([]SectorValue, error)
	LargestByValue(userID int64, limit int) ([]Position, error)
	WithGainAbove(userID int64, threshold decimal.Decimal) ([]Position, error)
}

// TransactionRepository defines append-only transaction storage and the
// ledger-wide scalar queries
type TransactionRepository interface {
	Save(tx *Transaction) error
	ByUser(userID int64) ([]Transaction, error)
	ByUserPaginated(userID int64, page, size int) ([]Transaction, error)
	ByUserAndStock(userID, stockID int64) ([]Transaction, error)
	ByUserInRange(userID int64, start, end time.Time) ([]Transaction, error)
	MonthlySummary(userID int64) ([]MonthlySummary, error)
	TotalBuyAmount(userID int64) (decimal.Decimal, error)
	TotalSellAmount(userID int64) (decimal.Decimal, error)
	TotalBuyFees(userID int64) (decimal.Decimal, error)
	TotalSellFees(userID int64) (decimal.Decimal, error)
}
