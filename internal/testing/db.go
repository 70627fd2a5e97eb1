// Package testing provides testing utilities and helpers for the folio project.
package testing

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aristath/folio/internal/database"
)

// NewTestDB creates a temporary SQLite database for testing with the folio
// schema applied. Returns the database instance and a cleanup function that
// closes the connection and removes the file. The cleanup function is
// idempotent and can be called multiple times safely.
func NewTestDB(t *testing.T) (*database.DB, func()) {
	t.Helper()

	// Temporary file per test for isolation
	tmpFile, err := os.CreateTemp("", "test_folio_*.db")
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileStandard,
		Name:    "folio",
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	closed := false
	cleanup := func() {
		if closed {
			return
		}
		closed = true
		_ = db.Close()
		_ = os.Remove(tmpPath)
		_ = os.Remove(tmpPath + "-wal")
		_ = os.Remove(tmpPath + "-shm")
	}

	return db, cleanup
}

// InsertAccount inserts an account row and returns its id
func InsertAccount(t *testing.T, db *database.DB, email string, role string) int64 {
	t.Helper()

	res, err := db.Exec(
		`INSERT INTO accounts (email, display_name, role, enabled, created_at) VALUES (?, ?, ?, 1, ?)`,
		email, email, role, time.Now().Unix(),
	)
	if err != nil {
		t.Fatalf("Failed to insert account %s: %v", email, err)
	}
	id, _ := res.LastInsertId()
	return id
}

// InsertStock inserts a stock row and returns its id. Pass an empty price to
// leave current_price NULL.
func InsertStock(t *testing.T, db *database.DB, ticker, sector, price string) int64 {
	t.Helper()

	var priceVal interface{}
	if price != "" {
		// Validate up front so fixtures fail loudly
		if _, err := decimal.NewFromString(price); err != nil {
			t.Fatalf("Invalid fixture price %q: %v", price, err)
		}
		priceVal = price
	}

	var sectorVal interface{}
	if sector != "" {
		sectorVal = sector
	}

	res, err := db.Exec(
		`INSERT INTO stocks (ticker, name, exchange, sector, industry, currency, current_price, last_updated)
		 VALUES (?, ?, 'NASDAQ', ?, '', 'USD', ?, ?)`,
		ticker, fmt.Sprintf("%s Inc", ticker), sectorVal, priceVal, time.Now().Unix(),
	)
	if err != nil {
		t.Fatalf("Failed to insert stock %s: %v", ticker, err)
	}
	id, _ := res.LastInsertId()
	return id
}
