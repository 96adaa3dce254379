// Package storage persists transactions and duplicate relationships.
//
// Transactions are append-only: the store exposes no update or delete
// for them. Duplicate relationships accept exactly one resolution
// update and reject anything after that.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Oleguzik/ngo-automation/internal/domain/ledger"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when an insert collides with an
	// existing id or relationship pair.
	ErrAlreadyExists = errors.New("record already exists")
)

// Repository defines the complete storage interface. This interface
// allows swapping implementations (SQLite, PostgreSQL) and makes
// testing with mocks straightforward.
type Repository interface {
	TransactionRepository
	RelationshipRepository
	Close() error
}

// TransactionRepository handles transaction records.
type TransactionRepository interface {
	// InsertTransaction appends a transaction. Fails with
	// ErrAlreadyExists on a duplicate id. The record is visible to
	// subsequent lookups immediately.
	InsertTransaction(ctx context.Context, tx *ledger.Transaction) error

	// GetTransaction retrieves a transaction by id.
	GetTransaction(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error)

	// GetByFingerprint returns all transactions stored under a
	// fingerprint (index-backed).
	GetByFingerprint(ctx context.Context, fp string) ([]ledger.Transaction, error)

	// ListInWindow returns transactions dated within +/- days of
	// center.
	ListInWindow(ctx context.Context, center time.Time, days int) ([]ledger.Transaction, error)

	// ListTransactions returns transactions matching the filters with
	// pagination, newest first, plus the total count.
	ListTransactions(ctx context.Context, filters TransactionFilters) ([]ledger.Transaction, int, error)
}

// TransactionFilters defines filters for listing transactions.
type TransactionFilters struct {
	Source    ledger.Source // empty = all
	ProjectID string        // empty = all
	From      time.Time     // zero = open
	To        time.Time     // zero = open
	Limit     int           // 0 = default 50
	Offset    int
}

// RelationshipRepository handles duplicate relationships.
type RelationshipRepository interface {
	// InsertRelationship records a new duplicate relationship; fails
	// with ErrAlreadyExists when the same (original, candidate, kind)
	// pair is already recorded.
	InsertRelationship(ctx context.Context, rel *ledger.DuplicateRelationship) error

	// GetRelationship retrieves a relationship by id.
	GetRelationship(ctx context.Context, id uuid.UUID) (*ledger.DuplicateRelationship, error)

	// UpdateResolution applies a terminal resolution. Fails with
	// ledger.ErrResolutionFinal when the relationship was already
	// resolved.
	UpdateResolution(ctx context.Context, id uuid.UUID, resolution ledger.Resolution) (*ledger.DuplicateRelationship, error)

	// ListRelationships returns relationships matching the filters,
	// newest first.
	ListRelationships(ctx context.Context, filters RelationshipFilters) ([]ledger.DuplicateRelationship, error)
}

// RelationshipFilters defines filters for listing relationships.
type RelationshipFilters struct {
	Resolution    ledger.Resolution // empty = all
	TransactionID uuid.UUID         // matches original or candidate; zero = all
	Limit         int               // 0 = default 50
	Offset        int
}
