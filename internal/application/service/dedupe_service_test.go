package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Oleguzik/ngo-automation/internal/domain/ledger"
	"github.com/Oleguzik/ngo-automation/internal/domain/resolver"
	"github.com/Oleguzik/ngo-automation/internal/domain/vendor"
	"github.com/Oleguzik/ngo-automation/internal/events"
	"github.com/Oleguzik/ngo-automation/internal/infrastructure/storage"
)

type capturingPublisher struct {
	published []events.DuplicateDetected
	err       error
}

func (p *capturingPublisher) PublishDuplicateDetected(_ context.Context, event events.DuplicateDetected) error {
	p.published = append(p.published, event)
	return p.err
}

func (p *capturingPublisher) Close() error { return nil }

func newTestService(t *testing.T, repo *storage.MockRepository, pub events.Publisher) *DedupeService {
	t.Helper()
	res, err := resolver.New(resolver.DefaultConfig())
	require.NoError(t, err)
	return NewDedupeService(repo, vendor.Default(), res, pub, nil)
}

func validInput() TransactionInput {
	return TransactionInput{
		Date:     "2024-03-15",
		Amount:   "2500.00",
		Currency: "EUR",
		Vendor:   "Tech Consulting GmbH",
		Source:   "invoice",
	}
}

func TestBuildTransactionCanonicalizes(t *testing.T) {
	svc := newTestService(t, storage.NewMockRepository(), nil)

	tx, err := svc.BuildTransaction(validInput())
	require.NoError(t, err)

	assert.Equal(t, "tech consulting", tx.NormalizedVendor)
	assert.Equal(t, "Tech Consulting GmbH", tx.RawVendor)
	assert.Equal(t, "EUR", tx.Currency)
	assert.Equal(t, ledger.SourceInvoice, tx.Source)
	assert.Len(t, tx.Fingerprint, 64)
	assert.NotEqual(t, uuid.Nil, tx.ID)
}

func TestBuildTransactionDefaultsSourceToManual(t *testing.T) {
	svc := newTestService(t, storage.NewMockRepository(), nil)

	input := validInput()
	input.Source = ""

	tx, err := svc.BuildTransaction(input)
	require.NoError(t, err)
	assert.Equal(t, ledger.SourceManual, tx.Source)
}

func TestBuildTransactionRejectsBadInput(t *testing.T) {
	svc := newTestService(t, storage.NewMockRepository(), nil)

	cases := []struct {
		name   string
		mutate func(*TransactionInput)
	}{
		{"bad date", func(in *TransactionInput) { in.Date = "15/03/2024" }},
		{"impossible date", func(in *TransactionInput) { in.Date = "2024-02-30" }},
		{"bad amount", func(in *TransactionInput) { in.Amount = "twelve" }},
		{"bad currency", func(in *TransactionInput) { in.Currency = "EURO" }},
		{"bad source", func(in *TransactionInput) { in.Source = "carrier_pigeon" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput()
			tc.mutate(&input)
			_, err := svc.BuildTransaction(input)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestPreviewTransactionDoesNotPersist(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	existing, _, err := svc.IngestTransaction(ctx, validInput())
	require.NoError(t, err)
	repo.InsertTransactionCalled = false

	tx, eval, err := svc.PreviewTransaction(ctx, validInput())
	require.NoError(t, err)
	require.Len(t, eval.ExactMatches, 1)
	assert.Equal(t, existing.ID, eval.ExactMatches[0].ID)
	assert.NotEqual(t, existing.ID, tx.ID)
	assert.False(t, repo.InsertTransactionCalled)
}

func TestIngestTransactionPersistsAndReportsMatches(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	first, eval, err := svc.IngestTransaction(ctx, validInput())
	require.NoError(t, err)
	assert.False(t, eval.HasMatches())
	assert.True(t, repo.InsertTransactionCalled)

	second, eval, err := svc.IngestTransaction(ctx, validInput())
	require.NoError(t, err)
	require.Len(t, eval.ExactMatches, 1)
	assert.Equal(t, first.ID, eval.ExactMatches[0].ID)
	assert.NotEqual(t, first.ID, second.ID)

	stored, err := svc.GetTransaction(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Fingerprint, stored.Fingerprint)
}

func TestIngestTransactionFindsNearMatch(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	first, _, err := svc.IngestTransaction(ctx, TransactionInput{
		Date:     "2024-03-15",
		Amount:   "2500.00",
		Currency: "EUR",
		Vendor:   "Tech Consulting Partners GmbH",
		Source:   "invoice",
	})
	require.NoError(t, err)

	_, eval, err := svc.IngestTransaction(ctx, TransactionInput{
		Date:     "2024-03-16",
		Amount:   "2500.00",
		Currency: "EUR",
		Vendor:   "Tech Consulting Partner Inc",
		Source:   "receipt",
	})
	require.NoError(t, err)

	assert.Empty(t, eval.ExactMatches)
	require.Len(t, eval.NearMatches, 1)
	assert.Equal(t, first.ID, eval.NearMatches[0].Transaction.ID)
	assert.GreaterOrEqual(t, eval.NearMatches[0].Score, 0.95)
}

func TestRecordRelationshipPublishesEvent(t *testing.T) {
	repo := storage.NewMockRepository()
	pub := &capturingPublisher{}
	svc := newTestService(t, repo, pub)
	ctx := context.Background()

	a, _, err := svc.IngestTransaction(ctx, validInput())
	require.NoError(t, err)
	b, _, err := svc.IngestTransaction(ctx, validInput())
	require.NoError(t, err)

	rel, err := svc.RecordRelationship(ctx, a.ID, b.ID, ledger.MatchExact, 1.0)
	require.NoError(t, err)
	assert.Equal(t, ledger.ResolutionUnresolved, rel.Resolution)
	assert.True(t, repo.InsertRelationshipCalled)

	require.Len(t, pub.published, 1)
	assert.Equal(t, rel.ID, pub.published[0].RelationshipID)
	assert.Equal(t, a.ID, pub.published[0].OriginalID)
	assert.Equal(t, b.ID, pub.published[0].CandidateID)
}

func TestRecordRelationshipSurvivesPublishFailure(t *testing.T) {
	repo := storage.NewMockRepository()
	pub := &capturingPublisher{err: assert.AnError}
	svc := newTestService(t, repo, pub)
	ctx := context.Background()

	a, _, err := svc.IngestTransaction(ctx, validInput())
	require.NoError(t, err)
	b, _, err := svc.IngestTransaction(ctx, validInput())
	require.NoError(t, err)

	rel, err := svc.RecordRelationship(ctx, a.ID, b.ID, ledger.MatchExact, 1.0)
	require.NoError(t, err)
	assert.NotNil(t, rel)
}

func TestRecordRelationshipValidation(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	a, _, err := svc.IngestTransaction(ctx, validInput())
	require.NoError(t, err)
	b, _, err := svc.IngestTransaction(ctx, validInput())
	require.NoError(t, err)

	_, err = svc.RecordRelationship(ctx, a.ID, b.ID, "fuzzy", 0.9)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.RecordRelationship(ctx, a.ID, b.ID, ledger.MatchNear, 1.5)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.RecordRelationship(ctx, a.ID, a.ID, ledger.MatchExact, 1.0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.RecordRelationship(ctx, a.ID, uuid.New(), ledger.MatchExact, 1.0)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestResolveRelationshipIsOneShot(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	a, _, err := svc.IngestTransaction(ctx, validInput())
	require.NoError(t, err)
	b, _, err := svc.IngestTransaction(ctx, validInput())
	require.NoError(t, err)

	rel, err := svc.RecordRelationship(ctx, a.ID, b.ID, ledger.MatchExact, 1.0)
	require.NoError(t, err)

	resolved, err := svc.ResolveRelationship(ctx, rel.ID, ledger.ResolutionMerge)
	require.NoError(t, err)
	assert.Equal(t, ledger.ResolutionMerge, resolved.Resolution)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = svc.ResolveRelationship(ctx, rel.ID, ledger.ResolutionIgnore)
	assert.ErrorIs(t, err, ledger.ErrResolutionFinal)
}

func TestResolveRelationshipRejectsNonTerminal(t *testing.T) {
	svc := newTestService(t, storage.NewMockRepository(), nil)

	_, err := svc.ResolveRelationship(context.Background(), uuid.New(), ledger.ResolutionUnresolved)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestListDuplicatesForRequiresTransaction(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	_, err := svc.ListDuplicatesFor(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	a, _, err := svc.IngestTransaction(ctx, validInput())
	require.NoError(t, err)
	b, _, err := svc.IngestTransaction(ctx, validInput())
	require.NoError(t, err)
	_, err = svc.RecordRelationship(ctx, a.ID, b.ID, ledger.MatchExact, 1.0)
	require.NoError(t, err)

	rels, err := svc.ListDuplicatesFor(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, rels, 1)

	ongoing, err := svc.ListRelationships(ctx, storage.RelationshipFilters{Resolution: ledger.ResolutionUnresolved})
	require.NoError(t, err)
	assert.Len(t, ongoing, 1)
}

func TestResolutionTimestampIsUTC(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	a, _, err := svc.IngestTransaction(ctx, validInput())
	require.NoError(t, err)
	b, _, err := svc.IngestTransaction(ctx, validInput())
	require.NoError(t, err)

	rel, err := svc.RecordRelationship(ctx, a.ID, b.ID, ledger.MatchExact, 1.0)
	require.NoError(t, err)

	resolved, err := svc.ResolveRelationship(ctx, rel.ID, ledger.ResolutionKeepBoth)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	assert.WithinDuration(t, time.Now().UTC(), *resolved.ResolvedAt, 5*time.Second)
}
