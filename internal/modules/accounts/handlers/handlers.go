// Package handlers exposes account management over HTTP.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/httpx"
	"github.com/aristath/folio/internal/modules/accounts"
)

// Handler provides HTTP handlers for account endpoints
type Handler struct {
	svc  *accounts.Service
	auth *accounts.Authorizer
	log  zerolog.Logger
}

// NewHandler creates a new accounts handler
func NewHandler(svc *accounts.Service, auth *accounts.Authorizer, log zerolog.Logger) *Handler {
	return &Handler{
		svc:  svc,
		auth: auth,
		log:  log.With().Str("handler", "accounts").Logger(),
	}
}

// RegisterRoutes registers all account routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/me", h.handleMe)
		r.Get("/", h.handleList)
		r.Post("/", h.handleRegister)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}/enabled", h.handleSetEnabled)
	})
}

type registerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Caller(r, accounts.OpManageAccounts); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	var req registerRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	role := domain.Role(req.Role)
	if req.Role == "" {
		role = domain.RoleUser
	}

	account, err := h.svc.Register(req.Email, req.DisplayName, role)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, account)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Caller(r, accounts.OpManageAccounts); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	all, err := h.svc.All()
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, all)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Caller(r, accounts.OpManageAccounts); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.WriteError(w, h.log, domain.ErrInvalidInput)
		return
	}

	account, err := h.svc.ByID(id)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, account)
}

// handleMe returns the calling account itself
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	account, err := h.auth.Caller(r, accounts.OpViewPortfolio)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, account)
}

type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *Handler) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Caller(r, accounts.OpManageAccounts); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.WriteError(w, h.log, domain.ErrInvalidInput)
		return
	}

	var req setEnabledRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	if err := h.svc.SetEnabled(id, req.Enabled); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	account, err := h.svc.ByID(id)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, account)
}
