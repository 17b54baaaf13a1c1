package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/prn-tf/meridian-bank/internal/auth"
	"github.com/prn-tf/meridian-bank/internal/domain"
	"github.com/prn-tf/meridian-bank/internal/metrics"
	"github.com/prn-tf/meridian-bank/internal/service"
)

// TransactionHandler handles transaction posting and history requests.
type TransactionHandler struct {
	transactionService *service.TransactionService
	metrics            *metrics.Metrics
	logger             zerolog.Logger
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionService *service.TransactionService, m *metrics.Metrics, logger zerolog.Logger) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		metrics:            m,
		logger:             logger.With().Str("handler", "transaction").Logger(),
	}
}

// RegisterRoutes registers the authenticated transaction routes.
func (h *TransactionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/transactions", h.handlePost)
	r.Get("/transactions/{id}", h.handleGet)
	r.Get("/accounts/{iban}/transactions", h.handleListByAccount)
}

type postTransactionRequest struct {
	Type        string          `json:"type"`
	FromIBAN    string          `json:"from_iban"`
	ToIBAN      string          `json:"to_iban"`
	Amount      decimal.Decimal `json:"amount"`
	Label       string          `json:"label"`
	Description string          `json:"description"`
}

func (h *TransactionHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req postTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	tx, err := h.transactionService.Post(r.Context(), p, service.PostTransactionInput{
		Type:        domain.TransactionType(req.Type),
		FromIBAN:    req.FromIBAN,
		ToIBAN:      req.ToIBAN,
		Amount:      req.Amount,
		Label:       req.Label,
		Description: req.Description,
	})
	if err != nil {
		h.metrics.TransactionRejected()
		WriteError(w, r, err)
		return
	}

	h.metrics.TransactionPosted(string(tx.Type))
	writeData(w, http.StatusCreated, tx)
}

func (h *TransactionHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, domain.ErrTransactionNotFound)
		return
	}

	tx, err := h.transactionService.GetByID(r.Context(), p, id)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, tx)
}

func (h *TransactionHandler) handleListByAccount(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	transactions, err := h.transactionService.ListByAccount(r.Context(), p, chi.URLParam(r, "iban"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, transactions)
}
