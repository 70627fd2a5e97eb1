package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/accounts"
	"github.com/aristath/folio/internal/modules/catalog"
	foliotest "github.com/aristath/folio/internal/testing"
)

type ledgerFixture struct {
	svc          *Service
	db           *database.DB
	positions    *PositionRepository
	transactions *TransactionRepository
	userID       int64
	stockID      int64
}

func newLedgerFixture(t *testing.T) (*ledgerFixture, func()) {
	t.Helper()
	db, cleanup := foliotest.NewTestDB(t)

	accountRepo := accounts.NewRepository(db.Conn(), zerolog.Nop())
	stockRepo := catalog.NewRepository(db.Conn(), zerolog.Nop())
	positions := NewPositionRepository(db.Conn(), zerolog.Nop())
	transactions := NewTransactionRepository(db.Conn(), zerolog.Nop())
	svc := NewService(db, accountRepo, stockRepo, positions, transactions, zerolog.Nop())

	userID := foliotest.InsertAccount(t, db, "trader@example.com", "USER")
	stockID := foliotest.InsertStock(t, db, "AAPL", "Technology", "150")

	return &ledgerFixture{
		svc:          svc,
		db:           db,
		positions:    positions,
		transactions: transactions,
		userID:       userID,
		stockID:      stockID,
	}, cleanup
}

func (f *ledgerFixture) buy(t *testing.T, quantity, price, fee string) *domain.Transaction {
	t.Helper()
	tx, err := f.svc.Buy(TradeRequest{
		UserID:   f.userID,
		Ticker:   "AAPL",
		Quantity: decimal.RequireFromString(quantity),
		Price:    decimal.RequireFromString(price),
		Fee:      decimal.RequireFromString(fee),
	})
	require.NoError(t, err)
	return tx
}

func (f *ledgerFixture) position(t *testing.T) *domain.Position {
	t.Helper()
	pos, err := f.positions.ByUserAndStock(f.userID, f.stockID)
	require.NoError(t, err)
	require.NotNil(t, pos)
	return pos
}

func TestBuyCreatesPosition(t *testing.T) {
	f, cleanup := newLedgerFixture(t)
	defer cleanup()

	tx := f.buy(t, "10", "150", "5")
	assert.NotZero(t, tx.ID)
	assert.Equal(t, domain.TransactionBuy, tx.Type)
	assert.NotZero(t, tx.PositionID)

	pos := f.position(t)
	assert.True(t, pos.Quantity.Equal(decimal.RequireFromString("10")))
	assert.True(t, pos.AverageCost.Equal(decimal.RequireFromString("150")))
	assert.False(t, pos.FirstPurchased.IsZero())
}

func TestBuyAveragesCost(t *testing.T) {
	f, cleanup := newLedgerFixture(t)
	defer cleanup()

	f.buy(t, "10", "150", "0")
	f.buy(t, "5", "160", "0")

	// (10*150 + 5*160) / 15 = 153.3333 half-up at four places
	pos := f.position(t)
	assert.True(t, pos.Quantity.Equal(decimal.RequireFromString("15")))
	assert.Equal(t, "153.3333", pos.AverageCost.StringFixed(4))
}

func TestBuyFeesStayOutOfBasis(t *testing.T) {
	f, cleanup := newLedgerFixture(t)
	defer cleanup()

	tx := f.buy(t, "10", "150", "9.99")
	pos := f.position(t)
	assert.True(t, pos.AverageCost.Equal(decimal.RequireFromString("150")))
	assert.True(t, tx.TotalCost().Equal(decimal.RequireFromString("1509.99")))
}

func TestSellKeepsAverageCost(t *testing.T) {
	f, cleanup := newLedgerFixture(t)
	defer cleanup()

	f.buy(t, "10", "150", "0")

	_, err := f.svc.Sell(TradeRequest{
		UserID:   f.userID,
		Ticker:   "aapl", // ticker resolution is case-insensitive
		Quantity: decimal.RequireFromString("4"),
		Price:    decimal.RequireFromString("170"),
		Fee:      decimal.Zero,
	})
	require.NoError(t, err)

	pos := f.position(t)
	assert.True(t, pos.Quantity.Equal(decimal.RequireFromString("6")))
	assert.True(t, pos.AverageCost.Equal(decimal.RequireFromString("150")))
}

func TestSellMoreThanHeld(t *testing.T) {
	f, cleanup := newLedgerFixture(t)
	defer cleanup()

	f.buy(t, "10", "150", "0")

	_, err := f.svc.Sell(TradeRequest{
		UserID:   f.userID,
		Ticker:   "AAPL",
		Quantity: decimal.RequireFromString("20"),
		Price:    decimal.RequireFromString("170"),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientHoldings)

	// Nothing was recorded and the position is untouched
	pos := f.position(t)
	assert.True(t, pos.Quantity.Equal(decimal.RequireFromString("10")))

	txs, err := f.transactions.ByUser(f.userID)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestSellWithoutPosition(t *testing.T) {
	f, cleanup := newLedgerFixture(t)
	defer cleanup()

	// Selling a stock never bought is a missing position, not a
	// quantity shortfall
	_, err := f.svc.Sell(TradeRequest{
		UserID:   f.userID,
		Ticker:   "AAPL",
		Quantity: decimal.RequireFromString("1"),
		Price:    decimal.RequireFromString("170"),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrInsufficientHoldings)

	txs, err := f.transactions.ByUser(f.userID)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestSellToZeroRetainsPosition(t *testing.T) {
	f, cleanup := newLedgerFixture(t)
	defer cleanup()

	f.buy(t, "10", "150", "0")
	_, err := f.svc.Sell(TradeRequest{
		UserID:   f.userID,
		Ticker:   "AAPL",
		Quantity: decimal.RequireFromString("10"),
		Price:    decimal.RequireFromString("170"),
	})
	require.NoError(t, err)

	pos := f.position(t)
	assert.True(t, pos.Quantity.IsZero())
	assert.True(t, pos.AverageCost.Equal(decimal.RequireFromString("150")))

	// Buying again reuses the closed position; the basis restarts at
	// the new lot's price
	f.buy(t, "2", "200", "0")
	reopened := f.position(t)
	assert.Equal(t, pos.ID, reopened.ID)
	assert.True(t, reopened.Quantity.Equal(decimal.RequireFromString("2")))
	assert.True(t, reopened.AverageCost.Equal(decimal.RequireFromString("200")))
}

func TestFractionalQuantities(t *testing.T) {
	f, cleanup := newLedgerFixture(t)
	defer cleanup()

	f.buy(t, "0.5", "100", "0")
	f.buy(t, "0.25", "200", "0")

	// (0.5*100 + 0.25*200) / 0.75 = 133.3333
	pos := f.position(t)
	assert.True(t, pos.Quantity.Equal(decimal.RequireFromString("0.75")))
	assert.Equal(t, "133.3333", pos.AverageCost.StringFixed(4))
}

func TestTradeValidation(t *testing.T) {
	f, cleanup := newLedgerFixture(t)
	defer cleanup()

	cases := []struct {
		name string
		req  TradeRequest
	}{
		{"zero quantity", TradeRequest{UserID: f.userID, Ticker: "AAPL", Quantity: decimal.Zero, Price: decimal.New(1, 0)}},
		{"negative quantity", TradeRequest{UserID: f.userID, Ticker: "AAPL", Quantity: decimal.New(-1, 0), Price: decimal.New(1, 0)}},
		{"zero price", TradeRequest{UserID: f.userID, Ticker: "AAPL", Quantity: decimal.New(1, 0), Price: decimal.Zero}},
		{"negative fee", TradeRequest{UserID: f.userID, Ticker: "AAPL", Quantity: decimal.New(1, 0), Price: decimal.New(1, 0), Fee: decimal.New(-1, 0)}},
		{"blank ticker", TradeRequest{UserID: f.userID, Ticker: "  ", Quantity: decimal.New(1, 0), Price: decimal.New(1, 0)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Buy(tc.req)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestTradeUnknownAccountOrStock(t *testing.T) {
	f, cleanup := newLedgerFixture(t)
	defer cleanup()

	_, err := f.svc.Buy(TradeRequest{
		UserID:   9999,
		Ticker:   "AAPL",
		Quantity: decimal.New(1, 0),
		Price:    decimal.New(1, 0),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Buy(TradeRequest{
		UserID:   f.userID,
		Ticker:   "NOPE",
		Quantity: decimal.New(1, 0),
		Price:    decimal.New(1, 0),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTradeDateDefaultsToNow(t *testing.T) {
	f, cleanup := newLedgerFixture(t)
	defer cleanup()

	before := time.Now().Add(-time.Second)
	tx := f.buy(t, "1", "10", "0")
	assert.True(t, tx.TransactionDate.After(before))
}

func TestConcurrentBuys(t *testing.T) {
	f, cleanup := newLedgerFixture(t)
	defer cleanup()

	const workers = 50
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Buy(TradeRequest{
				UserID:   f.userID,
				Ticker:   "AAPL",
				Quantity: decimal.New(1, 0),
				Price:    decimal.New(10, 0),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	// Every buy landed exactly once
	pos := f.position(t)
	assert.True(t, pos.Quantity.Equal(decimal.New(workers, 0)), "quantity = %s", pos.Quantity)
	assert.True(t, pos.AverageCost.Equal(decimal.New(10, 0)))

	txs, err := f.transactions.ByUser(f.userID)
	require.NoError(t, err)
	assert.Len(t, txs, workers)
}

func TestTransactionQueries(t *testing.T) {
	f, cleanup := newLedgerFixture(t)
	defer cleanup()

	msftID := foliotest.InsertStock(t, f.db, "MSFT", "Technology", "300")

	jan := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	_, err := f.svc.Buy(TradeRequest{UserID: f.userID, Ticker: "AAPL",
		Quantity: decimal.New(10, 0), Price: decimal.New(150, 0), Date: jan})
	require.NoError(t, err)
	_, err = f.svc.Buy(TradeRequest{UserID: f.userID, Ticker: "MSFT",
		Quantity: decimal.New(2, 0), Price: decimal.New(300, 0), Date: feb})
	require.NoError(t, err)
	_, err = f.svc.Sell(TradeRequest{UserID: f.userID, Ticker: "AAPL",
		Quantity: decimal.New(5, 0), Price: decimal.New(160, 0), Date: feb})
	require.NoError(t, err)

	all, err := f.transactions.ByUser(f.userID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first
	assert.True(t, !all[0].TransactionDate.Before(all[1].TransactionDate))

	byStock, err := f.transactions.ByUserAndStock(f.userID, msftID)
	require.NoError(t, err)
	require.Len(t, byStock, 1)
	assert.Equal(t, domain.TransactionBuy, byStock[0].Type)

	inJan, err := f.transactions.ByUserInRange(f.userID,
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, inJan, 1)

	page, err := f.transactions.ByUserPaginated(f.userID, 0, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	rest, err := f.transactions.ByUserPaginated(f.userID, 1, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	summary, err := f.transactions.MonthlySummary(f.userID)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	// January first: 1500 bought, nothing sold
	assert.Equal(t, 2026, summary[0].Year)
	assert.Equal(t, 1, summary[0].Month)
	assert.True(t, summary[0].BuyAmount.Equal(decimal.New(1500, 0)))
	assert.True(t, summary[0].SellAmount.IsZero())
	assert.Equal(t, 2, summary[1].Month)
	assert.True(t, summary[1].BuyAmount.Equal(decimal.New(600, 0)))
	assert.True(t, summary[1].SellAmount.Equal(decimal.New(800, 0)))

	buys, err := f.transactions.TotalBuyAmount(f.userID)
	require.NoError(t, err)
	assert.True(t, buys.Equal(decimal.New(2100, 0)))
	sells, err := f.transactions.TotalSellAmount(f.userID)
	require.NoError(t, err)
	assert.True(t, sells.Equal(decimal.New(800, 0)))
}
