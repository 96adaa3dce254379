package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Oleguzik/ngo-automation/internal/api"
	"github.com/Oleguzik/ngo-automation/internal/api/dto"
	"github.com/Oleguzik/ngo-automation/internal/application/service"
	"github.com/Oleguzik/ngo-automation/internal/domain/resolver"
	"github.com/Oleguzik/ngo-automation/internal/domain/vendor"
	"github.com/Oleguzik/ngo-automation/internal/infrastructure/storage"
)

func newTestServer(t *testing.T) *api.Server {
	t.Helper()
	res, err := resolver.New(resolver.DefaultConfig())
	require.NoError(t, err)
	svc := service.NewDedupeService(storage.NewMockRepository(), vendor.Default(), res, nil, nil)
	return api.NewServer(api.DefaultConfig(), svc, nil)
}

func postJSON(t *testing.T, server *api.Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func getPath(server *api.Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

// Walks the whole duplicate workflow through the router: ingest two
// matching invoices, review the reported match, record it and resolve
// it.
func TestDuplicateWorkflow(t *testing.T) {
	server := newTestServer(t)

	invoice := dto.TransactionRequest{
		Date:     "2024-03-15",
		Amount:   "2500.00",
		Currency: "EUR",
		Vendor:   "Tech Consulting GmbH",
		Source:   "invoice",
	}

	// First ingest is clean.
	rec := postJSON(t, server, "/api/transactions", invoice)
	require.Equal(t, http.StatusCreated, rec.Code)
	var first dto.IngestResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&first))
	assert.False(t, first.Evaluation.HasMatches)

	// Same invoice arrives again via a bank statement.
	invoice.Source = "bank_statement"
	rec = postJSON(t, server, "/api/transactions", invoice)
	require.Equal(t, http.StatusCreated, rec.Code)
	var second dto.IngestResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&second))
	require.Len(t, second.Evaluation.ExactMatches, 1)
	assert.Equal(t, first.Transaction.ID, second.Evaluation.ExactMatches[0].ID)

	// Record the reviewed duplicate.
	rec = postJSON(t, server, "/api/duplicates", dto.RecordDuplicateRequest{
		OriginalID:      first.Transaction.ID,
		CandidateID:     second.Transaction.ID,
		Kind:            "exact",
		SimilarityScore: 1.0,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var rel dto.RelationshipResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rel))
	assert.Equal(t, "unresolved", rel.Resolution)

	// The relationship shows up for both transactions.
	rec = getPath(server, "/api/transactions/"+second.Transaction.ID+"/duplicates")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed dto.RelationshipListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listed))
	assert.Equal(t, 1, listed.Count)

	// Resolve it, then confirm the state is final.
	rec = postJSON(t, server, "/api/duplicates/"+rel.ID+"/resolution",
		dto.ResolveDuplicateRequest{Resolution: "keep_both"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, server, "/api/duplicates/"+rel.ID+"/resolution",
		dto.ResolveDuplicateRequest{Resolution: "merge"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = getPath(server, "/api/duplicates?resolution=unresolved")
	require.Equal(t, http.StatusOK, rec.Code)
	var open dto.RelationshipListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&open))
	assert.Equal(t, 0, open.Count)
}

func TestCheckEndpointDoesNotPersist(t *testing.T) {
	server := newTestServer(t)

	candidate := dto.TransactionRequest{
		Date:     "2024-03-15",
		Amount:   "120.00",
		Currency: "EUR",
		Vendor:   "Print Shop Ltd",
	}

	rec := postJSON(t, server, "/api/transactions/check", candidate)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = getPath(server, "/api/transactions")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed dto.TransactionListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listed))
	assert.Equal(t, 0, listed.TotalCount)
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	rec := getPath(server, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}
