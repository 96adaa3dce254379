package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Oleguzik/ngo-automation/internal/api/dto"
	"github.com/Oleguzik/ngo-automation/internal/api/handlers"
	"github.com/Oleguzik/ngo-automation/internal/application/service"
	"github.com/Oleguzik/ngo-automation/internal/domain/ledger"
)

func ingestPair(t *testing.T, svc *service.DedupeService) (uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	a, _, err := svc.IngestTransaction(ctx, service.TransactionInput{
		Date: "2024-03-15", Amount: "2500.00", Currency: "EUR", Vendor: "Tech Consulting GmbH", Source: "invoice",
	})
	require.NoError(t, err)
	b, _, err := svc.IngestTransaction(ctx, service.TransactionInput{
		Date: "2024-03-15", Amount: "2500.00", Currency: "EUR", Vendor: "Tech Consulting GmbH", Source: "receipt",
	})
	require.NoError(t, err)
	return a.ID, b.ID
}

func recordBody(t *testing.T, originalID, candidateID uuid.UUID, kind string, score float64) *bytes.Buffer {
	t.Helper()
	data, err := json.Marshal(dto.RecordDuplicateRequest{
		OriginalID:      originalID.String(),
		CandidateID:     candidateID.String(),
		Kind:            kind,
		SimilarityScore: score,
	})
	require.NoError(t, err)
	return bytes.NewBuffer(data)
}

func TestDuplicatesHandler_Record(t *testing.T) {
	t.Run("records unresolved relationship", func(t *testing.T) {
		svc, repo := newService(t)
		handler := handlers.NewDuplicatesHandler(svc)
		a, b := ingestPair(t, svc)

		rec := httptest.NewRecorder()
		handler.Record(rec, httptest.NewRequest(http.MethodPost, "/api/duplicates", recordBody(t, a, b, "exact", 1.0)))

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.True(t, repo.InsertRelationshipCalled)

		var response dto.RelationshipResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, "unresolved", response.Resolution)
		assert.Equal(t, "exact", response.Kind)
		assert.Empty(t, response.ResolvedAt)
	})

	t.Run("rejects duplicate pair", func(t *testing.T) {
		svc, _ := newService(t)
		handler := handlers.NewDuplicatesHandler(svc)
		a, b := ingestPair(t, svc)

		first := httptest.NewRecorder()
		handler.Record(first, httptest.NewRequest(http.MethodPost, "/api/duplicates", recordBody(t, a, b, "exact", 1.0)))
		require.Equal(t, http.StatusCreated, first.Code)

		second := httptest.NewRecorder()
		handler.Record(second, httptest.NewRequest(http.MethodPost, "/api/duplicates", recordBody(t, a, b, "exact", 1.0)))
		assert.Equal(t, http.StatusConflict, second.Code)
	})

	t.Run("rejects unknown transaction", func(t *testing.T) {
		svc, _ := newService(t)
		handler := handlers.NewDuplicatesHandler(svc)
		a, _ := ingestPair(t, svc)

		rec := httptest.NewRecorder()
		handler.Record(rec, httptest.NewRequest(http.MethodPost, "/api/duplicates", recordBody(t, a, uuid.New(), "exact", 1.0)))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("rejects bad kind and score", func(t *testing.T) {
		svc, _ := newService(t)
		handler := handlers.NewDuplicatesHandler(svc)
		a, b := ingestPair(t, svc)

		rec := httptest.NewRecorder()
		handler.Record(rec, httptest.NewRequest(http.MethodPost, "/api/duplicates", recordBody(t, a, b, "fuzzy", 1.0)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = httptest.NewRecorder()
		handler.Record(rec, httptest.NewRequest(http.MethodPost, "/api/duplicates", recordBody(t, a, b, "near", 1.5)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDuplicatesHandler_List(t *testing.T) {
	svc, _ := newService(t)
	handler := handlers.NewDuplicatesHandler(svc)
	a, b := ingestPair(t, svc)

	_, err := svc.RecordRelationship(context.Background(), a, b, ledger.MatchExact, 1.0)
	require.NoError(t, err)

	t.Run("lists all", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/duplicates", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var response dto.RelationshipListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, 1, response.Count)
	})

	t.Run("filters by resolution", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/duplicates?resolution=merge", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var response dto.RelationshipListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, 0, response.Count)
	})

	t.Run("rejects unknown resolution", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/duplicates?resolution=maybe", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDuplicatesHandler_Resolve(t *testing.T) {
	newRouter := func(handler *handlers.DuplicatesHandler) chi.Router {
		router := chi.NewRouter()
		router.Post("/api/duplicates/{id}/resolution", handler.Resolve)
		return router
	}

	resolveBody := func(resolution string) *bytes.Buffer {
		data, _ := json.Marshal(dto.ResolveDuplicateRequest{Resolution: resolution})
		return bytes.NewBuffer(data)
	}

	t.Run("applies terminal resolution once", func(t *testing.T) {
		svc, _ := newService(t)
		handler := handlers.NewDuplicatesHandler(svc)
		a, b := ingestPair(t, svc)
		rel, err := svc.RecordRelationship(context.Background(), a, b, ledger.MatchExact, 1.0)
		require.NoError(t, err)
		router := newRouter(handler)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
			"/api/duplicates/"+rel.ID.String()+"/resolution", resolveBody("merge")))
		require.Equal(t, http.StatusOK, rec.Code)

		var response dto.RelationshipResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, "merge", response.Resolution)
		assert.NotEmpty(t, response.ResolvedAt)

		// Second attempt conflicts.
		again := httptest.NewRecorder()
		router.ServeHTTP(again, httptest.NewRequest(http.MethodPost,
			"/api/duplicates/"+rel.ID.String()+"/resolution", resolveBody("ignore")))
		assert.Equal(t, http.StatusConflict, again.Code)
	})

	t.Run("rejects non-terminal resolution", func(t *testing.T) {
		svc, _ := newService(t)
		handler := handlers.NewDuplicatesHandler(svc)
		a, b := ingestPair(t, svc)
		rel, err := svc.RecordRelationship(context.Background(), a, b, ledger.MatchExact, 1.0)
		require.NoError(t, err)
		router := newRouter(handler)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
			"/api/duplicates/"+rel.ID.String()+"/resolution", resolveBody("unresolved")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("returns 404 for unknown relationship", func(t *testing.T) {
		svc, _ := newService(t)
		handler := handlers.NewDuplicatesHandler(svc)
		router := newRouter(handler)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
			"/api/duplicates/"+uuid.NewString()+"/resolution", resolveBody("merge")))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
