package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Oleguzik/ngo-automation/internal/api/dto"
	"github.com/Oleguzik/ngo-automation/internal/application/service"
	"github.com/Oleguzik/ngo-automation/internal/domain/ledger"
	"github.com/Oleguzik/ngo-automation/internal/infrastructure/storage"
)

// DuplicatesHandler handles duplicate-relationship HTTP requests.
type DuplicatesHandler struct {
	*Base
}

// NewDuplicatesHandler creates a new duplicates handler.
func NewDuplicatesHandler(svc *service.DedupeService) *DuplicatesHandler {
	return &DuplicatesHandler{Base: NewBase(svc)}
}

// Record handles POST /api/duplicates - records a reviewed duplicate
// relationship between two stored transactions.
func (h *DuplicatesHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req dto.RecordDuplicateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}

	originalID, err := uuid.Parse(req.OriginalID)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid original_transaction_id"))
		return
	}
	candidateID, err := uuid.Parse(req.CandidateID)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid candidate_transaction_id"))
		return
	}

	rel, err := h.service.RecordRelationship(r.Context(), originalID, candidateID,
		ledger.MatchKind(req.Kind), req.SimilarityScore)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, dto.ToRelationshipResponse(rel))
}

// List handles GET /api/duplicates - returns duplicate relationships,
// optionally filtered by resolution state.
func (h *DuplicatesHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := storage.RelationshipFilters{
		Resolution: ledger.Resolution(r.URL.Query().Get("resolution")),
		Limit:      ParseIntParam(r, "limit", 50),
		Offset:     ParseIntParam(r, "offset", 0),
	}
	if filters.Resolution != "" && !filters.Resolution.Valid() {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("unknown resolution "+string(filters.Resolution)))
		return
	}

	rels, err := h.service.ListRelationships(r.Context(), filters)
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

// Resolve handles POST /api/duplicates/{id}/resolution - applies a
// terminal resolution to a relationship. A second resolution attempt
// gets 409.
func (h *DuplicatesHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid relationship id"))
		return
	}

	var req dto.ResolveDuplicateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}

	rel, err := h.service.ResolveRelationship(r.Context(), id, ledger.Resolution(req.Resolution))
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.ToRelationshipResponse(rel))
}
