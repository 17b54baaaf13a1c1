package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/prn-tf/meridian-bank/internal/auth"
	"github.com/prn-tf/meridian-bank/internal/service"
)

// AccountHandler handles account management requests.
type AccountHandler struct {
	accountService *service.AccountService
	logger         zerolog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService *service.AccountService, logger zerolog.Logger) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logger:         logger.With().Str("handler", "account").Logger(),
	}
}

// RegisterRoutes registers the authenticated account routes.
func (h *AccountHandler) RegisterRoutes(r chi.Router) {
	r.Post("/accounts", h.handleCreate)
	r.Get("/accounts", h.handleSearch)
	r.Get("/accounts/{iban}", h.handleGet)
	r.Get("/accounts/{iban}/limits", h.handleLimits)
	r.Put("/accounts/{iban}", h.handleUpdate)
	r.Delete("/accounts/{iban}", h.handleDeactivate)
	r.Get("/users/{id}/accounts", h.handleListByOwner)
}

type createAccountRequest struct {
	OwnerUsername    string          `json:"owner_username"`
	Name             string          `json:"name"`
	DailyLimit       decimal.Decimal `json:"daily_limit"`
	TransactionLimit decimal.Decimal `json:"transaction_limit"`
	AbsoluteLimit    decimal.Decimal `json:"absolute_limit"`
	IsSavings        bool            `json:"is_savings"`
}

func (h *AccountHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req createAccountRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	acct, err := h.accountService.Create(r.Context(), p, service.CreateAccountInput{
		OwnerUsername:    req.OwnerUsername,
		Name:             req.Name,
		DailyLimit:       req.DailyLimit,
		TransactionLimit: req.TransactionLimit,
		AbsoluteLimit:    req.AbsoluteLimit,
		IsSavings:        req.IsSavings,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, acct)
}

func (h *AccountHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	query := r.URL.Query()
	var active *bool
	if v := query.Get("active"); v != "" {
		b := v == "true"
		active = &b
	}

	accounts, err := h.accountService.Search(r.Context(), p, query.Get("q"), active)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, accounts)
}

func (h *AccountHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	acct, err := h.accountService.Get(r.Context(), p, chi.URLParam(r, "iban"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, acct)
}

func (h *AccountHandler) handleLimits(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	limits, err := h.accountService.Limits(r.Context(), p, chi.URLParam(r, "iban"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, limits)
}

type updateAccountRequest struct {
	Name             *string          `json:"name"`
	DailyLimit       *decimal.Decimal `json:"daily_limit"`
	TransactionLimit *decimal.Decimal `json:"transaction_limit"`
	AbsoluteLimit    *decimal.Decimal `json:"absolute_limit"`
	IsSavings        *bool            `json:"is_savings"`
	Balance          *decimal.Decimal `json:"balance"`
}

func (h *AccountHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req updateAccountRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	acct, err := h.accountService.Update(r.Context(), p, chi.URLParam(r, "iban"), service.UpdateAccountInput{
		Name:             req.Name,
		DailyLimit:       req.DailyLimit,
		TransactionLimit: req.TransactionLimit,
		AbsoluteLimit:    req.AbsoluteLimit,
		IsSavings:        req.IsSavings,
		Balance:          req.Balance,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, acct)
}

func (h *AccountHandler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.accountService.Deactivate(r.Context(), p, chi.URLParam(r, "iban")); err != nil {
		WriteError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, "account deactivated")
}

func (h *AccountHandler) handleListByOwner(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	userID, err := userIDParam(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	accounts, err := h.accountService.ListByOwner(r.Context(), p, userID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, accounts)
}
