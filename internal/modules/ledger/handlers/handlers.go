// Package handlers exposes trade recording over HTTP. Trades always run
// against the calling account's own ledger.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/httpx"
	"github.com/aristath/folio/internal/modules/accounts"
	"github.com/aristath/folio/internal/modules/ledger"
)

// Handler provides HTTP handlers for trade endpoints
type Handler struct {
	svc  *ledger.Service
	auth *accounts.Authorizer
	log  zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(svc *ledger.Service, auth *accounts.Authorizer, log zerolog.Logger) *Handler {
	return &Handler{
		svc:  svc,
		auth: auth,
		log:  log.With().Str("handler", "ledger").Logger(),
	}
}

// RegisterRoutes registers all trade routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/trades", func(r chi.Router) {
		r.Post("/buy", h.handleBuy)
		r.Post("/sell", h.handleSell)
	})
}

type tradeRequest struct {
	Ticker   string          `json:"ticker"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Fee      decimal.Decimal `json:"fee"`
	Date     *time.Time      `json:"date"`
}

func (h *Handler) handleBuy(w http.ResponseWriter, r *http.Request) {
	h.handleTrade(w, r, h.svc.Buy)
}

func (h *Handler) handleSell(w http.ResponseWriter, r *http.Request) {
	h.handleTrade(w, r, h.svc.Sell)
}

func (h *Handler) handleTrade(w http.ResponseWriter, r *http.Request, record func(ledger.TradeRequest) (*domain.Transaction, error)) {
	caller, err := h.auth.Caller(r, accounts.OpTrade)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	var req tradeRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	trade := ledger.TradeRequest{
		UserID:   caller.ID,
		Ticker:   req.Ticker,
		Quantity: req.Quantity,
		Price:    req.Price,
		Fee:      req.Fee,
	}
	if req.Date != nil {
		trade.Date = *req.Date
	}

	recorded, err := record(trade)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, recorded)
}
