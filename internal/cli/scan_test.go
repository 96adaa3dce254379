package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Oleguzik/ngo-automation/internal/application/service"
	"github.com/Oleguzik/ngo-automation/internal/domain/resolver"
	"github.com/Oleguzik/ngo-automation/internal/domain/vendor"
	"github.com/Oleguzik/ngo-automation/internal/infrastructure/config"
	"github.com/Oleguzik/ngo-automation/internal/infrastructure/storage"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	repo := storage.NewMockRepository()
	res, err := resolver.New(resolver.DefaultConfig())
	require.NoError(t, err)
	return &App{
		Service: service.NewDedupeService(repo, vendor.Default(), res, nil, nil),
		Repo:    repo,
	}
}

func ingest(t *testing.T, app *App, date, amount, vendorName string) {
	t.Helper()
	_, _, err := app.Service.IngestTransaction(context.Background(), service.TransactionInput{
		Date: date, Amount: amount, Currency: "EUR", Vendor: vendorName, Source: "invoice",
	})
	require.NoError(t, err)
}

func TestResolverConfig(t *testing.T) {
	cfg, err := ResolverConfig(config.DedupeConfig{
		WindowDays:      5,
		AmountTolerance: "1.50",
		ToleranceMode:   "percent",
		SimilarityFloor: 0.9,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.WindowDays)
	assert.Equal(t, "1.5", cfg.AmountTolerance.String())
	assert.Equal(t, resolver.TolerancePercent, cfg.ToleranceMode)

	_, err = ResolverConfig(config.DedupeConfig{AmountTolerance: "cheap"})
	assert.Error(t, err)
}

func TestScanReportsPairsOnce(t *testing.T) {
	app := newTestApp(t)
	ingest(t, app, "2024-03-15", "2500.00", "Tech Consulting GmbH")
	ingest(t, app, "2024-03-15", "2500.00", "Tech Consulting GmbH")
	ingest(t, app, "2024-04-01", "99.00", "Print Shop Ltd")

	result, err := Scan(context.Background(), app, false)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Scanned)
	assert.Equal(t, 1, result.ExactPairs)
	assert.Equal(t, 0, result.NearPairs)
	assert.Equal(t, 0, result.Recorded)
}

func TestScanRecordsAndSkipsExisting(t *testing.T) {
	app := newTestApp(t)
	ingest(t, app, "2024-03-15", "2500.00", "Tech Consulting GmbH")
	ingest(t, app, "2024-03-15", "2500.00", "Tech Consulting GmbH")

	first, err := Scan(context.Background(), app, true)
	require.NoError(t, err)
	assert.Equal(t, 1, first.ExactPairs)
	assert.Equal(t, 1, first.Recorded)
	assert.Empty(t, first.Errors)

	// A second sweep finds the same pair but does not re-record it.
	second, err := Scan(context.Background(), app, true)
	require.NoError(t, err)
	assert.Equal(t, 1, second.ExactPairs)
	assert.Equal(t, 0, second.Recorded)
	assert.Equal(t, 1, second.Skipped)
}
