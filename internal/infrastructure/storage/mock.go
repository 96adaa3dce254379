package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Oleguzik/ngo-automation/internal/domain/ledger"
)

// MockRepository is an in-memory implementation of Repository for
// testing. It stores all data in maps, making tests fast and isolated.
type MockRepository struct {
	transactions  map[uuid.UUID]*ledger.Transaction
	relationships map[uuid.UUID]*ledger.DuplicateRelationship

	// Hooks for test assertions
	InsertTransactionCalled  bool
	LastInsertedTransaction  *ledger.Transaction
	InsertRelationshipCalled bool
	LastInsertedRelationship *ledger.DuplicateRelationship
	UpdateResolutionCalled   bool

	// Error injection for testing error paths
	InsertTransactionErr  error
	GetTransactionErr     error
	InsertRelationshipErr error
	UpdateResolutionErr   error
	ListErr               error
}

var _ Repository = (*MockRepository)(nil)

// NewMockRepository creates a new mock repository for testing.
func NewMockRepository() *MockRepository {
	return &MockRepository{
		transactions:  make(map[uuid.UUID]*ledger.Transaction),
		relationships: make(map[uuid.UUID]*ledger.DuplicateRelationship),
	}
}

// Close implements Repository.
func (m *MockRepository) Close() error { return nil }

// InsertTransaction stores a transaction in memory.
func (m *MockRepository) InsertTransaction(_ context.Context, tx *ledger.Transaction) error {
	m.InsertTransactionCalled = true
	m.LastInsertedTransaction = tx
	if m.InsertTransactionErr != nil {
		return m.InsertTransactionErr
	}
	if _, ok := m.transactions[tx.ID]; ok {
		return fmt.Errorf("transaction %s: %w", tx.ID, ErrAlreadyExists)
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	clone := *tx
	m.transactions[tx.ID] = &clone
	return nil
}

// GetTransaction retrieves a transaction by id.
func (m *MockRepository) GetTransaction(_ context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	if m.GetTransactionErr != nil {
		return nil, m.GetTransactionErr
	}
	tx, ok := m.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	clone := *tx
	return &clone, nil
}

// GetByFingerprint returns transactions stored under a fingerprint.
func (m *MockRepository) GetByFingerprint(_ context.Context, fp string) ([]ledger.Transaction, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []ledger.Transaction
	for _, tx := range m.transactions {
		if tx.Fingerprint == fp {
			out = append(out, *tx)
		}
	}
	sortByID(out)
	return out, nil
}

// ListInWindow returns transactions dated within +/- days of center.
func (m *MockRepository) ListInWindow(_ context.Context, center time.Time, days int) ([]ledger.Transaction, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []ledger.Transaction
	for _, tx := range m.transactions {
		diff := tx.Date.Sub(center)
		if diff < 0 {
			diff = -diff
		}
		if diff <= time.Duration(days)*24*time.Hour {
			out = append(out, *tx)
		}
	}
	sortByID(out)
	return out, nil
}

// ListTransactions returns filtered transactions.
func (m *MockRepository) ListTransactions(_ context.Context, filters TransactionFilters) ([]ledger.Transaction, int, error) {
	if m.ListErr != nil {
		return nil, 0, m.ListErr
	}
	var all []ledger.Transaction
	for _, tx := range m.transactions {
		if filters.Source != "" && tx.Source != filters.Source {
			continue
		}
		if filters.ProjectID != "" && tx.ProjectID != filters.ProjectID {
			continue
		}
		if !filters.From.IsZero() && tx.Date.Before(filters.From) {
			continue
		}
		if !filters.To.IsZero() && tx.Date.After(filters.To) {
			continue
		}
		all = append(all, *tx)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Date.After(all[j].Date) })

	total := len(all)
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	start := filters.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

// InsertRelationship stores a relationship in memory.
func (m *MockRepository) InsertRelationship(_ context.Context, rel *ledger.DuplicateRelationship) error {
	m.InsertRelationshipCalled = true
	m.LastInsertedRelationship = rel
	if m.InsertRelationshipErr != nil {
		return m.InsertRelationshipErr
	}
	for _, existing := range m.relationships {
		if existing.OriginalID == rel.OriginalID &&
			existing.CandidateID == rel.CandidateID &&
			existing.Kind == rel.Kind {
			return fmt.Errorf("relationship %s/%s: %w", rel.OriginalID, rel.CandidateID, ErrAlreadyExists)
		}
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now().UTC()
	}
	if rel.Resolution == "" {
		rel.Resolution = ledger.ResolutionUnresolved
	}
	clone := *rel
	m.relationships[rel.ID] = &clone
	return nil
}

// GetRelationship retrieves a relationship by id.
func (m *MockRepository) GetRelationship(_ context.Context, id uuid.UUID) (*ledger.DuplicateRelationship, error) {
	rel, ok := m.relationships[id]
	if !ok {
		return nil, fmt.Errorf("relationship %s: %w", id, ErrNotFound)
	}
	clone := *rel
	return &clone, nil
}

// UpdateResolution applies a terminal resolution with the same
// semantics as the real stores.
func (m *MockRepository) UpdateResolution(_ context.Context, id uuid.UUID, resolution ledger.Resolution) (*ledger.DuplicateRelationship, error) {
	m.UpdateResolutionCalled = true
	if m.UpdateResolutionErr != nil {
		return nil, m.UpdateResolutionErr
	}
	rel, ok := m.relationships[id]
	if !ok {
		return nil, fmt.Errorf("relationship %s: %w", id, ErrNotFound)
	}
	if err := rel.Resolve(resolution, time.Now().UTC()); err != nil {
		return nil, err
	}
	clone := *rel
	return &clone, nil
}

// ListRelationships returns filtered relationships.
func (m *MockRepository) ListRelationships(_ context.Context, filters RelationshipFilters) ([]ledger.DuplicateRelationship, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []ledger.DuplicateRelationship
	for _, rel := range m.relationships {
		if filters.Resolution != "" && rel.Resolution != filters.Resolution {
			continue
		}
		if filters.TransactionID != uuid.Nil &&
			rel.OriginalID != filters.TransactionID &&
			rel.CandidateID != filters.TransactionID {
			continue
		}
		out = append(out, *rel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func sortByID(txs []ledger.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].ID.String() < txs[j].ID.String()
	})
}
