package ledger

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
)

const (
	quantityScale = 6
	moneyScale    = 4

	// busyRetries bounds local retries when a concurrent writer holds
	// the database lock past the busy timeout
	busyRetries = 3
)

// Service records trades. Each trade appends a transaction and updates
// the weighted-average-cost position atomically; concurrent trades on
// the same (user, stock) holding are serialized.
type Service struct {
	db           *database.DB
	accounts     domain.AccountDirectory
	stocks       domain.StockRepository
	positions    *PositionRepository
	transactions *TransactionRepository
	locks        *holdingLocks
	log          zerolog.Logger
}

// NewService creates a new ledger service
func NewService(db *database.DB, accounts domain.AccountDirectory, stocks domain.StockRepository,
	positions *PositionRepository, transactions *TransactionRepository, log zerolog.Logger) *Service {
	return &Service{
		db:           db,
		accounts:     accounts,
		stocks:       stocks,
		positions:    positions,
		transactions: transactions,
		locks:        newHoldingLocks(),
		log:          log.With().Str("service", "ledger").Logger(),
	}
}

// TradeRequest describes one BUY or SELL to record
type TradeRequest struct {
	UserID   int64
	Ticker   string
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Fee      decimal.Decimal
	Date     time.Time
}

// Buy records a purchase. The position's average cost becomes the
// quantity-weighted mean of the old basis and the new lot, rounded
// half-up to four decimal places. Fees never enter the basis.
func (s *Service) Buy(req TradeRequest) (*domain.Transaction, error) {
	return s.trade(domain.TransactionBuy, req)
}

// Sell records a sale. Quantity is reduced and the average cost is left
// unchanged; selling more than is held fails without recording
// anything. A position sold down to zero is kept as a closed record.
func (s *Service) Sell(req TradeRequest) (*domain.Transaction, error) {
	return s.trade(domain.TransactionSell, req)
}

func (s *Service) trade(txType domain.TransactionType, req TradeRequest) (*domain.Transaction, error) {
	if err := validateTrade(&req); err != nil {
		return nil, err
	}

	account, err := s.accounts.ByID(req.UserID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("account %d: %w", req.UserID, domain.ErrNotFound)
	}

	stock, err := s.stocks.ByTicker(req.Ticker)
	if err != nil {
		return nil, err
	}
	if stock == nil {
		return nil, fmt.Errorf("stock %q: %w", req.Ticker, domain.ErrNotFound)
	}

	unlock := s.locks.acquire(account.ID, stock.ID)
	defer unlock()

	var recorded *domain.Transaction
	for attempt := 0; ; attempt++ {
		recorded, err = s.tradeTx(txType, account.ID, stock.ID, req)
		if err == nil || !isBusy(err) {
			break
		}
		if attempt >= busyRetries {
			s.log.Warn().Err(err).
				Int64("user_id", account.ID).
				Str("ticker", stock.Ticker).
				Msg("Trade gave up after busy retries")
			return nil, fmt.Errorf("trade on %q: %w", stock.Ticker, domain.ErrConcurrencyConflict)
		}
		time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("user_id", account.ID).
		Str("ticker", stock.Ticker).
		Str("type", string(txType)).
		Str("quantity", req.Quantity.String()).
		Str("price", req.Price.String()).
		Msg("Trade recorded")
	return recorded, nil
}

// tradeTx runs the position read-modify-write and the transaction
// append inside one database transaction
func (s *Service) tradeTx(txType domain.TransactionType, userID, stockID int64, req TradeRequest) (*domain.Transaction, error) {
	var recorded *domain.Transaction

	err := database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		pos, err := s.positions.byUserAndStockIn(tx, userID, stockID)
		if err != nil {
			return err
		}

		switch txType {
		case domain.TransactionBuy:
			pos, err = applyBuy(pos, userID, stockID, req)
		case domain.TransactionSell:
			pos, err = applySell(pos, req)
		default:
			err = fmt.Errorf("transaction type %q: %w", txType, domain.ErrInvalidInput)
		}
		if err != nil {
			return err
		}

		if err := s.positions.saveIn(tx, pos); err != nil {
			return err
		}

		recorded = &domain.Transaction{
			UserID:          userID,
			StockID:         stockID,
			PositionID:      pos.ID,
			Type:            txType,
			Quantity:        req.Quantity,
			Price:           req.Price,
			Fee:             req.Fee,
			TransactionDate: req.Date,
		}
		return s.transactions.saveIn(tx, recorded)
	})
	if err != nil {
		return nil, err
	}
	return recorded, nil
}

func applyBuy(pos *domain.Position, userID, stockID int64, req TradeRequest) (*domain.Position, error) {
	if pos == nil {
		pos = &domain.Position{
			UserID:         userID,
			StockID:        stockID,
			Quantity:       decimal.Zero,
			AverageCost:    decimal.Zero,
			FirstPurchased: req.Date,
		}
	}
	if pos.Quantity.IsZero() && pos.FirstPurchased.IsZero() {
		pos.FirstPurchased = req.Date
	}

	newQuantity := pos.Quantity.Add(req.Quantity)
	totalCost := pos.TotalCost().Add(req.Quantity.Mul(req.Price))
	pos.AverageCost = totalCost.DivRound(newQuantity, moneyScale)
	pos.Quantity = newQuantity
	pos.LastTransaction = req.Date
	return pos, nil
}

func applySell(pos *domain.Position, req TradeRequest) (*domain.Position, error) {
	if pos == nil {
		return nil, fmt.Errorf("no position to sell: %w", domain.ErrNotFound)
	}
	if pos.Quantity.LessThan(req.Quantity) {
		return nil, fmt.Errorf("sell %s exceeds held %s: %w",
			req.Quantity.String(), pos.Quantity.String(), domain.ErrInsufficientHoldings)
	}

	// Average cost is intentionally untouched on a sale
	pos.Quantity = pos.Quantity.Sub(req.Quantity)
	pos.LastTransaction = req.Date
	return pos, nil
}

func validateTrade(req *TradeRequest) error {
	if strings.TrimSpace(req.Ticker) == "" {
		return fmt.Errorf("ticker is required: %w", domain.ErrInvalidInput)
	}
	if !req.Quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive: %w", domain.ErrInvalidInput)
	}
	if !req.Price.IsPositive() {
		return fmt.Errorf("price must be positive: %w", domain.ErrInvalidInput)
	}
	if req.Fee.IsNegative() {
		return fmt.Errorf("fee must not be negative: %w", domain.ErrInvalidInput)
	}

	req.Quantity = req.Quantity.Round(quantityScale)
	req.Price = req.Price.Round(moneyScale)
	req.Fee = req.Fee.Round(moneyScale)
	if req.Date.IsZero() {
		req.Date = time.Now()
	}
	return nil
}

// isBusy reports whether the error is SQLite's lock contention error
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
