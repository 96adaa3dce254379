// Package ledger holds the core financial record types.
//
// Transactions are immutable once stored: corrections are appended as
// new records, never applied in place. Duplicate relationships record
// the outcome of duplicate detection and keep their resolution history
// append-only for audit purposes.
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Source identifies where a transaction record came from.
type Source string

const (
	SourceInvoice       Source = "invoice"
	SourceReceipt       Source = "receipt"
	SourceBankStatement Source = "bank_statement"
	SourceManual        Source = "manual"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceInvoice, SourceReceipt, SourceBankStatement, SourceManual:
		return true
	}
	return false
}

// Transaction is a single financial record. The monetary and vendor
// fields never change after the record is stored.
type Transaction struct {
	ID               uuid.UUID       `json:"id"`
	Date             time.Time       `json:"date"` // calendar date, UTC midnight
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"` // ISO 4217, uppercase
	RawVendor        string          `json:"raw_vendor"`
	NormalizedVendor string          `json:"normalized_vendor"`
	Source           Source          `json:"source"`
	Fingerprint      string          `json:"fingerprint"`
	ProjectID        string          `json:"project_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}
