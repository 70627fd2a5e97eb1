// Package handlers exposes the read-only portfolio views over HTTP. All
// views are scoped to the calling account.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/httpx"
	"github.com/aristath/folio/internal/modules/accounts"
	"github.com/aristath/folio/internal/modules/portfolio"
)

// Handler provides HTTP handlers for portfolio endpoints
type Handler struct {
	svc  *portfolio.Service
	auth *accounts.Authorizer
	log  zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(svc *portfolio.Service, auth *accounts.Authorizer, log zerolog.Logger) *Handler {
	return &Handler{
		svc:  svc,
		auth: auth,
		log:  log.With().Str("handler", "portfolio").Logger(),
	}
}

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/value", h.handleValue)
		r.Get("/holdings", h.handleHoldings)
		r.Get("/performance", h.handlePerformance)
		r.Get("/allocation", h.handleAllocation)
		r.Get("/sectors", h.handleSectors)
		r.Get("/largest", h.handleLargest)
		r.Get("/winners", h.handleWinners)
	})
	r.Route("/transactions", func(r chi.Router) {
		r.Get("/", h.handleTransactions)
		r.Get("/monthly", h.handleMonthly)
		r.Get("/range", h.handleRange)
		r.Get("/stock/{ticker}", h.handleForTicker)
	})
}

// caller resolves the viewing account or writes the failure
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (*domain.Account, bool) {
	account, err := h.auth.Caller(r, accounts.OpViewPortfolio)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return nil, false
	}
	return account, true
}

func (h *Handler) handleValue(w http.ResponseWriter, r *http.Request) {
	account, ok := h.caller(w, r)
	if !ok {
		return
	}

	value, err := h.svc.TotalValue(account.ID)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]decimal.Decimal{"total_value": value})
}

func (h *Handler) handleHoldings(w http.ResponseWriter, r *http.Request) {
	account, ok := h.caller(w, r)
	if !ok {
		return
	}

	holdings, err := h.svc.Holdings(account.ID)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, holdings)
}

func (h *Handler) handlePerformance(w http.ResponseWriter, r *http.Request) {
	account, ok := h.caller(w, r)
	if !ok {
		return
	}

	metrics, err := h.svc.Performance(account.ID)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, metrics)
}

func (h *Handler) handleAllocation(w http.ResponseWriter, r *http.Request) {
	account, ok := h.caller(w, r)
	if !ok {
		return
	}

	allocation, err := h.svc.SectorAllocation(account.ID)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, allocation)
}

func (h *Handler) handleSectors(w http.ResponseWriter, r *http.Request) {
	account, ok := h.caller(w, r)
	if !ok {
		return
	}

	sectors, err := h.svc.SectorValues(account.ID)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sectors)
}

func (h *Handler) handleLargest(w http.ResponseWriter, r *http.Request) {
	account, ok := h.caller(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	largest, err := h.svc.LargestPositions(account.ID, limit)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, largest)
}

func (h *Handler) handleWinners(w http.ResponseWriter, r *http.Request) {
	account, ok := h.caller(w, r)
	if !ok {
		return
	}

	threshold := decimal.Zero
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		var err error
		if threshold, err = decimal.NewFromString(raw); err != nil {
			httpx.WriteError(w, h.log, domain.ErrInvalidInput)
			return
		}
	}

	winners, err := h.svc.PositionsWithGainAbove(account.ID, threshold)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, winners)
}

func (h *Handler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	account, ok := h.caller(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	if q.Get("page") != "" || q.Get("size") != "" {
		page, _ := strconv.Atoi(q.Get("page"))
		size, _ := strconv.Atoi(q.Get("size"))
		txs, err := h.svc.TransactionsPage(account.ID, page, size)
		if err != nil {
			httpx.WriteError(w, h.log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, txs)
		return
	}

	txs, err := h.svc.Transactions(account.ID)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, txs)
}

func (h *Handler) handleMonthly(w http.ResponseWriter, r *http.Request) {
	account, ok := h.caller(w, r)
	if !ok {
		return
	}

	summary, err := h.svc.MonthlySummary(account.ID)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleRange(w http.ResponseWriter, r *http.Request) {
	account, ok := h.caller(w, r)
	if !ok {
		return
	}

	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		httpx.WriteError(w, h.log, domain.ErrInvalidInput)
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		httpx.WriteError(w, h.log, domain.ErrInvalidInput)
		return
	}

	txs, err := h.svc.TransactionsInRange(account.ID, start, end)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, txs)
}

func (h *Handler) handleForTicker(w http.ResponseWriter, r *http.Request) {
	account, ok := h.caller(w, r)
	if !ok {
		return
	}

	txs, err := h.svc.TransactionsForTicker(account.ID, chi.URLParam(r, "ticker"))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, txs)
}
