// Package ledger records trades and maintains weighted-average-cost
// positions. Transactions are append-only; positions are the running
// aggregate per (user, stock).
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/folio/internal/domain"
)

// querier is satisfied by both *sql.DB and *sql.Tx so repository reads
// and writes can run inside a trade transaction
type querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// PositionRepository handles position database operations
type PositionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		db:  db,
		log: log.With().Str("repo", "positions").Logger(),
	}
}

const positionColumns = `id, user_id, stock_id, quantity, average_cost, first_purchased, last_transaction, notes, created_at, updated_at`

// ByID returns a position by id, or nil when not found
func (r *PositionRepository) ByID(id int64) (*domain.Position, error) {
	row := r.db.QueryRow(`SELECT `+positionColumns+` FROM positions WHERE id = ?`, id)
	return scanPosition(row)
}

// ByUserAndStock returns the user's position in a stock, or nil when the
// user never held it
func (r *PositionRepository) ByUserAndStock(userID, stockID int64) (*domain.Position, error) {
	return r.byUserAndStockIn(r.db, userID, stockID)
}

func (r *PositionRepository) byUserAndStockIn(q querier, userID, stockID int64) (*domain.Position, error) {
	row := q.QueryRow(`SELECT `+positionColumns+` FROM positions WHERE user_id = ? AND stock_id = ?`, userID, stockID)
	return scanPosition(row)
}

// ByUser returns all of the user's positions, including closed ones
func (r *PositionRepository) ByUser(userID int64) ([]domain.Position, error) {
	rows, err := r.db.Query(`SELECT `+positionColumns+` FROM positions WHERE user_id = ? ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()
	return collectPositions(rows)
}

// Save inserts the position when its id is zero, otherwise updates it
func (r *PositionRepository) Save(pos *domain.Position) error {
	return r.saveIn(r.db, pos)
}

func (r *PositionRepository) saveIn(q querier, pos *domain.Position) error {
	now := time.Now()
	if pos.CreatedAt.IsZero() {
		pos.CreatedAt = now
	}
	pos.UpdatedAt = now

	if pos.ID == 0 {
		res, err := q.Exec(
			`INSERT INTO positions (user_id, stock_id, quantity, average_cost, first_purchased,
			 last_transaction, notes, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			pos.UserID, pos.StockID, pos.Quantity.String(), pos.AverageCost.String(),
			pos.FirstPurchased.Unix(), pos.LastTransaction.Unix(), pos.Notes,
			pos.CreatedAt.Unix(), pos.UpdatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert position: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get position id: %w", err)
		}
		pos.ID = id
		return nil
	}

	_, err := q.Exec(
		`UPDATE positions SET quantity = ?, average_cost = ?, last_transaction = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		pos.Quantity.String(), pos.AverageCost.String(), pos.LastTransaction.Unix(),
		pos.Notes, pos.UpdatedAt.Unix(), pos.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	return nil
}

// TotalValue returns the summed market value of the user's priced
// positions. Positions in stocks without a price contribute nothing.
func (r *PositionRepository) TotalValue(userID int64) (decimal.Decimal, error) {
	var total sql.NullFloat64
	err := r.db.QueryRow(
		`SELECT SUM(CAST(p.quantity AS REAL) * CAST(s.current_price AS REAL))
		 FROM positions p JOIN stocks s ON s.id = p.stock_id
		 WHERE p.user_id = ? AND s.current_price IS NOT NULL`, userID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum portfolio value: %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return decimal.NewFromFloat(total.Float64).Round(4), nil
}

// TotalCost returns the summed cost basis of the user's priced
// positions. It covers the same rows as TotalValue so gain figures
// compare like with like; unpriced holdings are excluded from both.
func (r *PositionRepository) TotalCost(userID int64) (decimal.Decimal, error) {
	var total sql.NullFloat64
	err := r.db.QueryRow(
		`SELECT SUM(CAST(p.quantity AS REAL) * CAST(p.average_cost AS REAL))
		 FROM positions p JOIN stocks s ON s.id = p.stock_id
		 WHERE p.user_id = ? AND s.current_price IS NOT NULL`, userID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum cost basis: %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return decimal.NewFromFloat(total.Float64).Round(4), nil
}

// SectorSums returns the market value held per sector, largest first.
// Stocks without a sector are grouped under "Unknown"; open positions
// without a price are skipped.
func (r *PositionRepository) SectorSums(userID int64) ([]domain.SectorValue, error) {
	rows, err := r.db.Query(
		`SELECT COALESCE(s.sector, 'Unknown') AS sector,
		        SUM(CAST(p.quantity AS REAL) * CAST(s.current_price AS REAL)) AS value
		 FROM positions p JOIN stocks s ON s.id = p.stock_id
		 WHERE p.user_id = ? AND s.current_price IS NOT NULL AND CAST(p.quantity AS REAL) > 0
		 GROUP BY sector ORDER BY value DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum sectors: %w", err)
	}
	defer rows.Close()

	var sums []domain.SectorValue
	for rows.Next() {
		var sector string
		var value float64
		if err := rows.Scan(&sector, &value); err != nil {
			return nil, fmt.Errorf("failed to scan sector sum: %w", err)
		}
		sums = append(sums, domain.SectorValue{
			Sector: sector,
			Value:  decimal.NewFromFloat(value).Round(4),
		})
	}
	return sums, rows.Err()
}

// LargestByValue returns the user's open positions ordered by market
// value, largest first
func (r *PositionRepository) LargestByValue(userID int64, limit int) ([]domain.Position, error) {
	rows, err := r.db.Query(
		`SELECT `+prefixedPositionColumns("p")+`
		 FROM positions p JOIN stocks s ON s.id = p.stock_id
		 WHERE p.user_id = ? AND s.current_price IS NOT NULL AND CAST(p.quantity AS REAL) > 0
		 ORDER BY CAST(p.quantity AS REAL) * CAST(s.current_price AS REAL) DESC
		 LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query largest positions: %w", err)
	}
	defer rows.Close()
	return collectPositions(rows)
}

// WithGainAbove returns the user's open positions whose unrealized gain
// exceeds the threshold percentage of their cost basis
func (r *PositionRepository) WithGainAbove(userID int64, threshold decimal.Decimal) ([]domain.Position, error) {
	th, _ := threshold.Float64()
	rows, err := r.db.Query(
		`SELECT `+prefixedPositionColumns("p")+`
		 FROM positions p JOIN stocks s ON s.id = p.stock_id
		 WHERE p.user_id = ? AND s.current_price IS NOT NULL AND CAST(p.quantity AS REAL) > 0
		   AND CAST(p.average_cost AS REAL) > 0
		   AND (CAST(s.current_price AS REAL) - CAST(p.average_cost AS REAL)) * 100.0 / CAST(p.average_cost AS REAL) > ?
		 ORDER BY (CAST(s.current_price AS REAL) - CAST(p.average_cost AS REAL)) / CAST(p.average_cost AS REAL) DESC`,
		userID, th)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions by gain: %w", err)
	}
	defer rows.Close()
	return collectPositions(rows)
}

func prefixedPositionColumns(alias string) string {
	return alias + `.id, ` + alias + `.user_id, ` + alias + `.stock_id, ` + alias + `.quantity, ` +
		alias + `.average_cost, ` + alias + `.first_purchased, ` + alias + `.last_transaction, ` +
		alias + `.notes, ` + alias + `.created_at, ` + alias + `.updated_at`
}

func scanPosition(row *sql.Row) (*domain.Position, error) {
	pos, err := scanPositionFrom(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan position: %w", err)
	}
	return pos, nil
}

func collectPositions(rows *sql.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		pos, err := scanPositionFrom(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, *pos)
	}
	return positions, rows.Err()
}

func scanPositionFrom(scan func(dest ...interface{}) error) (*domain.Position, error) {
	var pos domain.Position
	var quantity, averageCost string
	var firstPurchased, lastTransaction, createdAt, updatedAt int64

	err := scan(&pos.ID, &pos.UserID, &pos.StockID, &quantity, &averageCost,
		&firstPurchased, &lastTransaction, &pos.Notes, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if pos.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return nil, fmt.Errorf("invalid stored quantity %q: %w", quantity, err)
	}
	if pos.AverageCost, err = decimal.NewFromString(averageCost); err != nil {
		return nil, fmt.Errorf("invalid stored average cost %q: %w", averageCost, err)
	}
	pos.FirstPurchased = time.Unix(firstPurchased, 0)
	pos.LastTransaction = time.Unix(lastTransaction, 0)
	pos.CreatedAt = time.Unix(createdAt, 0)
	pos.UpdatedAt = time.Unix(updatedAt, 0)
	return &pos, nil
}
