package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/folio/internal/domain"
)

// TransactionRepository handles the append-only transaction log.
// Records are only ever inserted; there is no update or delete path.
type TransactionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sql.DB, log zerolog.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:  db,
		log: log.With().Str("repo", "transactions").Logger(),
	}
}

const transactionColumns = `id, user_id, stock_id, position_id, type, quantity, price, fee, transaction_date, created_at`

// Save appends a transaction to the log and sets its id
func (r *TransactionRepository) Save(tx *domain.Transaction) error {
	return r.saveIn(r.db, tx)
}

func (r *TransactionRepository) saveIn(q querier, tx *domain.Transaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}

	res, err := q.Exec(
		`INSERT INTO transactions (user_id, stock_id, position_id, type, quantity, price, fee, transaction_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.UserID, tx.StockID, tx.PositionID, string(tx.Type),
		tx.Quantity.String(), tx.Price.String(), tx.Fee.String(),
		tx.TransactionDate.Unix(), tx.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get transaction id: %w", err)
	}
	tx.ID = id
	return nil
}

// ByUser returns all of the user's transactions, newest first
func (r *TransactionRepository) ByUser(userID int64) ([]domain.Transaction, error) {
	rows, err := r.db.Query(
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ?
		 ORDER BY transaction_date DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ByUserPaginated returns one page of the user's transactions, newest
// first. Pages are zero-based.
func (r *TransactionRepository) ByUserPaginated(userID int64, page, size int) ([]domain.Transaction, error) {
	if size <= 0 {
		size = 20
	}
	if page < 0 {
		page = 0
	}
	rows, err := r.db.Query(
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ?
		 ORDER BY transaction_date DESC, id DESC LIMIT ? OFFSET ?`,
		userID, size, page*size)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions page: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ByUserAndStock returns the user's transactions in one stock, newest first
func (r *TransactionRepository) ByUserAndStock(userID, stockID int64) ([]domain.Transaction, error) {
	rows, err := r.db.Query(
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? AND stock_id = ?
		 ORDER BY transaction_date DESC, id DESC`, userID, stockID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ByUserInRange returns the user's transactions dated within [start, end], newest first
func (r *TransactionRepository) ByUserInRange(userID int64, start, end time.Time) ([]domain.Transaction, error) {
	rows, err := r.db.Query(
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE user_id = ? AND transaction_date >= ? AND transaction_date <= ?
		 ORDER BY transaction_date DESC, id DESC`,
		userID, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions in range: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// MonthlySummary returns buy and sell totals grouped by calendar month,
// oldest month first
func (r *TransactionRepository) MonthlySummary(userID int64) ([]domain.MonthlySummary, error) {
	rows, err := r.db.Query(
		`SELECT CAST(strftime('%Y', transaction_date, 'unixepoch') AS INTEGER) AS year,
		        CAST(strftime('%m', transaction_date, 'unixepoch') AS INTEGER) AS month,
		        SUM(CASE WHEN type = 'BUY'  THEN CAST(quantity AS REAL) * CAST(price AS REAL) ELSE 0 END),
		        SUM(CASE WHEN type = 'SELL' THEN CAST(quantity AS REAL) * CAST(price AS REAL) ELSE 0 END)
		 FROM transactions WHERE user_id = ?
		 GROUP BY year, month ORDER BY year ASC, month ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly summary: %w", err)
	}
	defer rows.Close()

	var summaries []domain.MonthlySummary
	for rows.Next() {
		var s domain.MonthlySummary
		var buy, sell float64
		if err := rows.Scan(&s.Year, &s.Month, &buy, &sell); err != nil {
			return nil, fmt.Errorf("failed to scan monthly summary: %w", err)
		}
		s.BuyAmount = decimal.NewFromFloat(buy).Round(4)
		s.SellAmount = decimal.NewFromFloat(sell).Round(4)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// TotalBuyAmount returns the sum of quantity * price over all BUYs
func (r *TransactionRepository) TotalBuyAmount(userID int64) (decimal.Decimal, error) {
	return r.sumValue(userID, domain.TransactionBuy)
}

// TotalSellAmount returns the sum of quantity * price over all SELLs
func (r *TransactionRepository) TotalSellAmount(userID int64) (decimal.Decimal, error) {
	return r.sumValue(userID, domain.TransactionSell)
}

// TotalBuyFees returns the summed fees of all BUYs
func (r *TransactionRepository) TotalBuyFees(userID int64) (decimal.Decimal, error) {
	return r.sumFees(userID, domain.TransactionBuy)
}

// TotalSellFees returns the summed fees of all SELLs
func (r *TransactionRepository) TotalSellFees(userID int64) (decimal.Decimal, error) {
	return r.sumFees(userID, domain.TransactionSell)
}

func (r *TransactionRepository) sumValue(userID int64, txType domain.TransactionType) (decimal.Decimal, error) {
	var total sql.NullFloat64
	err := r.db.QueryRow(
		`SELECT SUM(CAST(quantity AS REAL) * CAST(price AS REAL)) FROM transactions
		 WHERE user_id = ? AND type = ?`, userID, string(txType)).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum transaction values: %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return decimal.NewFromFloat(total.Float64).Round(4), nil
}

func (r *TransactionRepository) sumFees(userID int64, txType domain.TransactionType) (decimal.Decimal, error) {
	var total sql.NullFloat64
	err := r.db.QueryRow(
		`SELECT SUM(CAST(fee AS REAL)) FROM transactions WHERE user_id = ? AND type = ?`,
		userID, string(txType)).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum transaction fees: %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return decimal.NewFromFloat(total.Float64).Round(4), nil
}

func collectTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	var transactions []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var txType, quantity, price, fee string
		var transactionDate, createdAt int64

		err := rows.Scan(&tx.ID, &tx.UserID, &tx.StockID, &tx.PositionID, &txType,
			&quantity, &price, &fee, &transactionDate, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		tx.Type = domain.TransactionType(txType)
		if tx.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("invalid stored quantity %q: %w", quantity, err)
		}
		if tx.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("invalid stored price %q: %w", price, err)
		}
		if tx.Fee, err = decimal.NewFromString(fee); err != nil {
			return nil, fmt.Errorf("invalid stored fee %q: %w", fee, err)
		}
		tx.TransactionDate = time.Unix(transactionDate, 0)
		tx.CreatedAt = time.Unix(createdAt, 0)
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}
