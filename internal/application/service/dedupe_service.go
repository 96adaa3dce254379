// Package service orchestrates the duplicate-detection engine against
// the storage and event layers.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Oleguzik/ngo-automation/internal/domain/fingerprint"
	"github.com/Oleguzik/ngo-automation/internal/domain/ledger"
	"github.com/Oleguzik/ngo-automation/internal/domain/resolver"
	"github.com/Oleguzik/ngo-automation/internal/domain/vendor"
	"github.com/Oleguzik/ngo-automation/internal/events"
	"github.com/Oleguzik/ngo-automation/internal/infrastructure/storage"
)

// ErrInvalidInput marks request-validation failures the caller must
// fix. It wraps the engine's own validation sentinel so both layers
// match with errors.Is.
var ErrInvalidInput = fingerprint.ErrInvalidInput

// TransactionInput is an incoming transaction before canonicalization.
type TransactionInput struct {
	Date      string // YYYY-MM-DD
	Amount    string // decimal string
	Currency  string // ISO 4217
	Vendor    string // free text
	Source    string
	ProjectID string
}

// DedupeService wires the normalizer, fingerprint builder and
// resolver to a repository and an event publisher.
type DedupeService struct {
	repo       storage.Repository
	normalizer *vendor.Normalizer
	resolver   *resolver.Resolver
	publisher  events.Publisher
	logger     *slog.Logger
}

// NewDedupeService creates the service. A nil publisher disables
// event publishing; a nil logger falls back to slog.Default().
func NewDedupeService(
	repo storage.Repository,
	normalizer *vendor.Normalizer,
	res *resolver.Resolver,
	publisher events.Publisher,
	logger *slog.Logger,
) *DedupeService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DedupeService{
		repo:       repo,
		normalizer: normalizer,
		resolver:   res,
		publisher:  publisher,
		logger:     logger,
	}
}

// BuildTransaction validates and canonicalizes an input into a
// transaction record (not yet persisted).
func (s *DedupeService) BuildTransaction(input TransactionInput) (*ledger.Transaction, error) {
	date, err := time.ParseInLocation("2006-01-02", input.Date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q is not a valid YYYY-MM-DD calendar date", ErrInvalidInput, input.Date)
	}

	amount, err := decimal.NewFromString(input.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q is not numeric", ErrInvalidInput, input.Amount)
	}

	source := ledger.Source(input.Source)
	if source == "" {
		source = ledger.SourceManual
	}
	if !source.Valid() {
		return nil, fmt.Errorf("%w: unknown source %q", ErrInvalidInput, input.Source)
	}

	currency, err := fingerprint.CanonicalCurrency(input.Currency)
	if err != nil {
		return nil, err
	}

	normalized := s.normalizer.Normalize(input.Vendor)
	fp, err := fingerprint.Build(date, amount, normalized, currency)
	if err != nil {
		return nil, err
	}

	return &ledger.Transaction{
		ID:               uuid.New(),
		Date:             date,
		Amount:           amount,
		Currency:         currency,
		RawVendor:        input.Vendor,
		NormalizedVendor: normalized,
		Source:           source,
		Fingerprint:      fp,
		ProjectID:        input.ProjectID,
	}, nil
}

// PreviewTransaction canonicalizes the input and evaluates it against
// the store without persisting anything.
func (s *DedupeService) PreviewTransaction(ctx context.Context, input TransactionInput) (*ledger.Transaction, *resolver.Evaluation, error) {
	tx, err := s.BuildTransaction(input)
	if err != nil {
		return nil, nil, err
	}

	eval, err := s.evaluate(ctx, tx)
	if err != nil {
		return nil, nil, err
	}
	return tx, eval, nil
}

// IngestTransaction canonicalizes, evaluates and persists the
// transaction. The evaluation reflects the store as it was before the
// insert, so the new record never matches itself.
func (s *DedupeService) IngestTransaction(ctx context.Context, input TransactionInput) (*ledger.Transaction, *resolver.Evaluation, error) {
	tx, eval, err := s.PreviewTransaction(ctx, input)
	if err != nil {
		return nil, nil, err
	}

	if err := s.repo.InsertTransaction(ctx, tx); err != nil {
		return nil, nil, err
	}

	s.logger.Info("transaction ingested",
		"id", tx.ID,
		"fingerprint", tx.Fingerprint,
		"exact_matches", len(eval.ExactMatches),
		"near_matches", len(eval.NearMatches))

	return tx, eval, nil
}

// EvaluateAgainst runs the configured resolver over a caller-supplied
// snapshot. Batch sweeps use this to evaluate many transactions
// against one preloaded index instead of hitting storage per record.
func (s *DedupeService) EvaluateAgainst(tx ledger.Transaction, snapshot resolver.Snapshot) (*resolver.Evaluation, error) {
	eval, err := s.resolver.Evaluate(tx, snapshot)
	if err != nil {
		return nil, err
	}
	return &eval, nil
}

// evaluate builds a request-scoped snapshot from the repository and
// runs the resolver over it.
func (s *DedupeService) evaluate(ctx context.Context, tx *ledger.Transaction) (*resolver.Evaluation, error) {
	index := resolver.NewIndex()

	byFP, err := s.repo.GetByFingerprint(ctx, tx.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("load fingerprint matches: %w", err)
	}
	index.AddAll(byFP)

	inWindow, err := s.repo.ListInWindow(ctx, tx.Date, s.resolver.Config().WindowDays)
	if err != nil {
		return nil, fmt.Errorf("load date window: %w", err)
	}
	// Fingerprint hits outside the window are already indexed; adding
	// the window set twice would duplicate them.
	seen := make(map[uuid.UUID]struct{}, len(byFP))
	for _, existing := range byFP {
		seen[existing.ID] = struct{}{}
	}
	for _, existing := range inWindow {
		if _, ok := seen[existing.ID]; ok {
			continue
		}
		index.Add(existing)
	}

	eval, err := s.resolver.Evaluate(*tx, index)
	if err != nil {
		return nil, err
	}
	return &eval, nil
}

// RecordRelationship persists a duplicate relationship after the
// caller reviewed an evaluation, then publishes a duplicate-detected
// event. Publish failures are logged, not returned: the recorded
// relationship is the source of truth.
func (s *DedupeService) RecordRelationship(ctx context.Context, originalID, candidateID uuid.UUID, kind ledger.MatchKind, score float64) (*ledger.DuplicateRelationship, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown match kind %q", ErrInvalidInput, kind)
	}
	if score < 0 || score > 1 {
		return nil, fmt.Errorf("%w: similarity score %v outside [0,1]", ErrInvalidInput, score)
	}
	if originalID == candidateID {
		return nil, fmt.Errorf("%w: a transaction cannot duplicate itself", ErrInvalidInput)
	}

	// Both ends must exist before the relationship is recorded.
	if _, err := s.repo.GetTransaction(ctx, originalID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetTransaction(ctx, candidateID); err != nil {
		return nil, err
	}

	rel := &ledger.DuplicateRelationship{
		ID:              uuid.New(),
		OriginalID:      originalID,
		CandidateID:     candidateID,
		Kind:            kind,
		SimilarityScore: score,
		Resolution:      ledger.ResolutionUnresolved,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.repo.InsertRelationship(ctx, rel); err != nil {
		return nil, err
	}

	event := events.DuplicateDetected{
		RelationshipID:  rel.ID,
		OriginalID:      rel.OriginalID,
		CandidateID:     rel.CandidateID,
		Kind:            string(rel.Kind),
		SimilarityScore: rel.SimilarityScore,
		DetectedAt:      rel.CreatedAt,
	}
	if err := s.publisher.PublishDuplicateDetected(ctx, event); err != nil {
		s.logger.Warn("failed to publish duplicate event",
			"relationship_id", rel.ID, "error", err)
	}

	return rel, nil
}

// ResolveRelationship applies a terminal resolution. Fails with
// ledger.ErrResolutionFinal when the relationship was already
// resolved.
func (s *DedupeService) ResolveRelationship(ctx context.Context, id uuid.UUID, resolution ledger.Resolution) (*ledger.DuplicateRelationship, error) {
	if !resolution.Terminal() {
		return nil, fmt.Errorf("%w: resolution must be keep_both, merge or ignore", ErrInvalidInput)
	}

	rel, err := s.repo.UpdateResolution(ctx, id, resolution)
	if err != nil {
		return nil, err
	}

	s.logger.Info("duplicate relationship resolved",
		"relationship_id", rel.ID, "resolution", rel.Resolution)
	return rel, nil
}

// GetTransaction retrieves a stored transaction.
func (s *DedupeService) GetTransaction(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// ListTransactions lists stored transactions.
func (s *DedupeService) ListTransactions(ctx context.Context, filters storage.TransactionFilters) ([]ledger.Transaction, int, error) {
	return s.repo.ListTransactions(ctx, filters)
}

// ListRelationships lists duplicate relationships.
func (s *DedupeService) ListRelationships(ctx context.Context, filters storage.RelationshipFilters) ([]ledger.DuplicateRelationship, error) {
	return s.repo.ListRelationships(ctx, filters)
}

// ListDuplicatesFor lists relationships involving one transaction.
func (s *DedupeService) ListDuplicatesFor(ctx context.Context, id uuid.UUID) ([]ledger.DuplicateRelationship, error) {
	if _, err := s.repo.GetTransaction(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListRelationships(ctx, storage.RelationshipFilters{TransactionID: id})
}
