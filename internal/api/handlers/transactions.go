package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Oleguzik/ngo-automation/internal/api/dto"
	"github.com/Oleguzik/ngo-automation/internal/application/service"
	"github.com/Oleguzik/ngo-automation/internal/domain/ledger"
	"github.com/Oleguzik/ngo-automation/internal/infrastructure/storage"
)

// TransactionsHandler handles transaction-related HTTP requests.
type TransactionsHandler struct {
	*Base
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(svc *service.DedupeService) *TransactionsHandler {
	return &TransactionsHandler{Base: NewBase(svc)}
}

// Create handles POST /api/transactions - canonicalizes, evaluates
// against the store and persists the transaction. Duplicate
// candidates are reported, never blocked.
func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	tx, eval, err := h.service.IngestTransaction(r.Context(), input)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, dto.IngestResponse{
		Transaction: dto.ToTransactionResponse(tx),
		Evaluation:  dto.ToEvaluationResponse(eval),
		Persisted:   true,
	})
}

// Check handles POST /api/transactions/check - evaluates a candidate
// transaction without persisting anything.
func (h *TransactionsHandler) Check(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	tx, eval, err := h.service.PreviewTransaction(r.Context(), input)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.IngestResponse{
		Transaction: dto.ToTransactionResponse(tx),
		Evaluation:  dto.ToEvaluationResponse(eval),
		Persisted:   false,
	})
}

// List handles GET /api/transactions - returns a paginated list of
// stored transactions.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	params := dto.DefaultTransactionListParams()
	params.Limit = ParseIntParam(r, "limit", params.Limit)
	params.Offset = ParseIntParam(r, "offset", params.Offset)
	params.Source = r.URL.Query().Get("source")
	params.ProjectID = r.URL.Query().Get("project_id")
	params.From = r.URL.Query().Get("from")
	params.To = r.URL.Query().Get("to")

	filters := storage.TransactionFilters{
		Source:    ledger.Source(params.Source),
		ProjectID: params.ProjectID,
		Limit:     params.Limit,
		Offset:    params.Offset,
	}
	if params.Source != "" && !filters.Source.Valid() {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("unknown source "+params.Source))
		return
	}
	var ok bool
	if filters.From, ok = h.parseDateParam(w, params.From); !ok {
		return
	}
	if filters.To, ok = h.parseDateParam(w, params.To); !ok {
		return
	}

	txs, total, err := h.service.ListTransactions(r.Context(), filters)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	response := dto.TransactionListResponse{
		Transactions: make([]dto.TransactionResponse, 0, len(txs)),
		TotalCount:   total,
		Limit:        params.Limit,
		Offset:       params.Offset,
	}
	for i := range txs {
		response.Transactions = append(response.Transactions, dto.ToTransactionResponse(&txs[i]))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/transactions/{id} - returns a single stored
// transaction.
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	tx, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.ToTransactionResponse(tx))
}

// ListDuplicates handles GET /api/transactions/{id}/duplicates -
// returns the duplicate relationships involving one transaction.
func (h *TransactionsHandler) ListDuplicates(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	rels, err := h.service.ListDuplicatesFor(r.Context(), id)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	response := dto.RelationshipListResponse{
		Relationships: make([]dto.RelationshipResponse, 0, len(rels)),
		Count:         len(rels),
	}
	for i := range rels {
		response.Relationships = append(response.Relationships, dto.ToRelationshipResponse(&rels[i]))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

func (h *TransactionsHandler) decodeInput(w http.ResponseWriter, r *http.Request) (service.TransactionInput, bool) {
	var req dto.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return service.TransactionInput{}, false
	}
	return service.TransactionInput{
		Date:      req.Date,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Vendor:    req.Vendor,
		Source:    req.Source,
		ProjectID: req.ProjectID,
	}, true
}

func (h *TransactionsHandler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid transaction id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *TransactionsHandler) parseDateParam(w http.ResponseWriter, val string) (time.Time, bool) {
	if val == "" {
		return time.Time{}, true
	}
	t, err := time.ParseInLocation("2006-01-02", val, time.UTC)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid date "+val))
		return time.Time{}, false
	}
	return t, true
}
