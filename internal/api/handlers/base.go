package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Oleguzik/ngo-automation/internal/api/dto"
	"github.com/Oleguzik/ngo-automation/internal/application/service"
	"github.com/Oleguzik/ngo-automation/internal/domain/ledger"
	"github.com/Oleguzik/ngo-automation/internal/infrastructure/storage"
)

// Base provides shared functionality for all handlers.
type Base struct {
	service *service.DedupeService
}

// NewBase creates a new base handler backed by the given service.
func NewBase(svc *service.DedupeService) *Base {
	return &Base{service: svc}
}

// WriteJSON writes a JSON response with the given status code.
func (b *Base) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error response with the given status code.
func (b *Base) WriteError(w http.ResponseWriter, status int, err dto.APIError) {
	b.WriteJSON(w, status, err)
}

// WriteServiceError maps service and storage errors to HTTP
// responses.
func (b *Base) WriteServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		b.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
	case errors.Is(err, storage.ErrNotFound):
		b.WriteError(w, http.StatusNotFound, dto.NewAPIError(dto.ErrCodeNotFound, err.Error()))
	case errors.Is(err, storage.ErrAlreadyExists):
		b.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
	case errors.Is(err, ledger.ErrResolutionFinal):
		b.WriteError(w, http.StatusConflict, dto.ConflictError("relationship is already resolved"))
	default:
		b.WriteError(w, http.StatusInternalServerError, dto.InternalError())
	}
}

// ParseIntParam parses an integer query parameter with a default value.
func ParseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}
