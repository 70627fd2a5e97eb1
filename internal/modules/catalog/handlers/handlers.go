// Package handlers exposes the stock catalog over HTTP.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/folio/internal/httpx"
	"github.com/aristath/folio/internal/modules/accounts"
	"github.com/aristath/folio/internal/modules/catalog"
)

// Handler provides HTTP handlers for catalog endpoints
type Handler struct {
	svc  *catalog.Service
	auth *accounts.Authorizer
	log  zerolog.Logger
}

// NewHandler creates a new catalog handler
func NewHandler(svc *catalog.Service, auth *accounts.Authorizer, log zerolog.Logger) *Handler {
	return &Handler{
		svc:  svc,
		auth: auth,
		log:  log.With().Str("handler", "catalog").Logger(),
	}
}

// RegisterRoutes registers all catalog routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/stocks", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Post("/from-quote", h.handleCreateFromQuote)
		r.Get("/top", h.handleTop)
		r.Get("/sectors/average-price", h.handleSectorAverages)
		r.Post("/prices", h.handleBatchPrices)
		r.Post("/refresh", h.handleRefreshAll)
		r.Post("/cache/clear", h.handleClearCache)
		r.Get("/{ticker}", h.handleGet)
		r.Put("/{ticker}", h.handleUpdate)
		r.Delete("/{ticker}", h.handleDelete)
		r.Put("/{ticker}/price", h.handleSetPrice)
		r.Post("/{ticker}/refresh", h.handleRefresh)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Caller(r, accounts.OpViewPortfolio); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	stocks, err := h.svc.Search(r.URL.Query().Get("q"))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stocks)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Caller(r, accounts.OpViewPortfolio); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	stock, err := h.svc.ByTicker(chi.URLParam(r, "ticker"))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stock)
}

func (h *Handler) handleTop(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Caller(r, accounts.OpViewPortfolio); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	stocks, err := h.svc.TopByPrice(limit)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stocks)
}

func (h *Handler) handleSectorAverages(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Caller(r, accounts.OpViewPortfolio); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	averages, err := h.svc.AveragePriceBySector()
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, averages)
}

type stockRequest struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Sector   string `json:"sector"`
	Industry string `json:"industry"`
	Currency string `json:"currency"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Caller(r, accounts.OpManageCatalog); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	var req stockRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	stock, err := h.svc.Create(req.Ticker, req.Name, req.Exchange, req.Sector, req.Industry, req.Currency)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, stock)
}

type tickerRequest struct {
	Ticker string `json:"ticker"`
}

func (h *Handler) handleCreateFromQuote(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Caller(r, accounts.OpManageCatalog); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	var req tickerRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	stock, err := h.svc.CreateFromQuote(r.Context(), req.Ticker)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, stock)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Caller(r, accounts.OpManageCatalog); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	existing, err := h.svc.ByTicker(chi.URLParam(r, "ticker"))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	var req stockRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	stock, err := h.svc.Update(existing.ID, req.Name, req.Exchange, req.Sector, req.Industry, req.Currency)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stock)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Caller(r, accounts.OpManageCatalog); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	existing, err := h.svc.ByTicker(chi.URLParam(r, "ticker"))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.svc.Delete(existing.ID); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type priceRequest struct {
	Price decimal.Decimal `json:"price"`
}

func (h *Handler) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Caller(r, accounts.OpManageCatalog); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	var req priceRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	stock, err := h.svc.SetPrice(chi.URLParam(r, "ticker"), req.Price)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stock)
}

type batchPricesRequest struct {
	Prices []struct {
		Ticker string          `json:"ticker"`
		Price  decimal.Decimal `json:"price"`
	} `json:"prices"`
}

func (h *Handler) handleBatchPrices(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Caller(r, accounts.OpManageCatalog); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	var req batchPricesRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	updates := make([]catalog.PriceUpdate, 0, len(req.Prices))
	for _, p := range req.Prices {
		updates = append(updates, catalog.PriceUpdate{Ticker: p.Ticker, Price: p.Price})
	}

	applied, err := h.svc.BatchSetPrices(updates)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"updated": applied})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Caller(r, accounts.OpManageCatalog); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	stock, err := h.svc.RefreshPrice(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stock)
}

func (h *Handler) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Caller(r, accounts.OpManageCatalog); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	report, err := h.svc.RefreshAllPrices(r.Context())
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Caller(r, accounts.OpManageCatalog); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	h.svc.ClearCache()
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
