package dto

// TransactionRequest is the body for creating or checking a
// transaction. Amount is a decimal string so cent precision survives
// the wire.
type TransactionRequest struct {
	Date      string `json:"date"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Vendor    string `json:"vendor"`
	Source    string `json:"source,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
}

// RecordDuplicateRequest is the body for recording a duplicate
// relationship between two stored transactions.
type RecordDuplicateRequest struct {
	OriginalID      string  `json:"original_transaction_id"`
	CandidateID     string  `json:"candidate_transaction_id"`
	Kind            string  `json:"kind"`
	SimilarityScore float64 `json:"similarity_score"`
}

// ResolveDuplicateRequest is the body for resolving a duplicate
// relationship.
type ResolveDuplicateRequest struct {
	Resolution string `json:"resolution"`
}

// TransactionListParams represents query parameters for listing
// transactions.
type TransactionListParams struct {
	Source    string `json:"source"`
	ProjectID string `json:"project_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
}

// DefaultTransactionListParams returns default values for transaction
// list params.
func DefaultTransactionListParams() TransactionListParams {
	return TransactionListParams{
		Limit:  50,
		Offset: 0,
	}
}
