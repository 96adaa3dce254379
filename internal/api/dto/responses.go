package dto

import (
	"time"

	"github.com/Oleguzik/ngo-automation/internal/domain/ledger"
	"github.com/Oleguzik/ngo-automation/internal/domain/resolver"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// TransactionResponse represents a transaction in API responses.
// Amount is a decimal string.
type TransactionResponse struct {
	ID               string `json:"id"`
	Date             string `json:"date"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	Vendor           string `json:"vendor"`
	NormalizedVendor string `json:"normalized_vendor"`
	Source           string `json:"source"`
	Fingerprint      string `json:"fingerprint"`
	ProjectID        string `json:"project_id,omitempty"`
	CreatedAt        string `json:"created_at,omitempty"`
}

// TransactionListResponse is returned when listing transactions.
type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	TotalCount   int                   `json:"total_count"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

// NearMatchResponse is a candidate duplicate with its similarity
// score.
type NearMatchResponse struct {
	Transaction     TransactionResponse `json:"transaction"`
	SimilarityScore float64             `json:"similarity_score"`
}

// EvaluationResponse reports the duplicate candidates found for a
// transaction.
type EvaluationResponse struct {
	ExactMatches []TransactionResponse `json:"exact_matches"`
	NearMatches  []NearMatchResponse   `json:"near_matches"`
	HasMatches   bool                  `json:"has_matches"`
}

// IngestResponse is returned after creating or checking a
// transaction.
type IngestResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Evaluation  EvaluationResponse  `json:"evaluation"`
	Persisted   bool                `json:"persisted"`
}

// RelationshipResponse represents a duplicate relationship in API
// responses.
type RelationshipResponse struct {
	ID              string  `json:"id"`
	OriginalID      string  `json:"original_transaction_id"`
	CandidateID     string  `json:"candidate_transaction_id"`
	Kind            string  `json:"kind"`
	SimilarityScore float64 `json:"similarity_score"`
	Resolution      string  `json:"resolution"`
	CreatedAt       string  `json:"created_at"`
	ResolvedAt      string  `json:"resolved_at,omitempty"`
}

// RelationshipListResponse is returned when listing duplicate
// relationships.
type RelationshipListResponse struct {
	Relationships []RelationshipResponse `json:"relationships"`
	Count         int                    `json:"count"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ToTransactionResponse converts a domain transaction to an API
// response.
func ToTransactionResponse(tx *ledger.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:               tx.ID.String(),
		Date:             tx.Date.Format("2006-01-02"),
		Amount:           tx.Amount.StringFixed(2),
		Currency:         tx.Currency,
		Vendor:           tx.RawVendor,
		NormalizedVendor: tx.NormalizedVendor,
		Source:           string(tx.Source),
		Fingerprint:      tx.Fingerprint,
		ProjectID:        tx.ProjectID,
	}
	if !tx.CreatedAt.IsZero() {
		resp.CreatedAt = tx.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// ToEvaluationResponse converts a resolver evaluation to an API
// response.
func ToEvaluationResponse(eval *resolver.Evaluation) EvaluationResponse {
	resp := EvaluationResponse{
		ExactMatches: make([]TransactionResponse, 0, len(eval.ExactMatches)),
		NearMatches:  make([]NearMatchResponse, 0, len(eval.NearMatches)),
		HasMatches:   eval.HasMatches(),
	}
	for i := range eval.ExactMatches {
		resp.ExactMatches = append(resp.ExactMatches, ToTransactionResponse(&eval.ExactMatches[i]))
	}
	for i := range eval.NearMatches {
		resp.NearMatches = append(resp.NearMatches, NearMatchResponse{
			Transaction:     ToTransactionResponse(&eval.NearMatches[i].Transaction),
			SimilarityScore: eval.NearMatches[i].Score,
		})
	}
	return resp
}

// ToRelationshipResponse converts a domain relationship to an API
// response.
func ToRelationshipResponse(rel *ledger.DuplicateRelationship) RelationshipResponse {
	resp := RelationshipResponse{
		ID:              rel.ID.String(),
		OriginalID:      rel.OriginalID.String(),
		CandidateID:     rel.CandidateID.String(),
		Kind:            string(rel.Kind),
		SimilarityScore: rel.SimilarityScore,
		Resolution:      string(rel.Resolution),
		CreatedAt:       rel.CreatedAt.UTC().Format(time.RFC3339),
	}
	if rel.ResolvedAt != nil {
		resp.ResolvedAt = rel.ResolvedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
