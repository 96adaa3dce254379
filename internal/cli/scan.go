package cli

import (
	"context"
	"errors"
	"flag"

	"github.com/google/uuid"

	"github.com/Oleguzik/ngo-automation/internal/domain/ledger"
	"github.com/Oleguzik/ngo-automation/internal/domain/resolver"
	"github.com/Oleguzik/ngo-automation/internal/infrastructure/config"
	"github.com/Oleguzik/ngo-automation/internal/infrastructure/logging"
	"github.com/Oleguzik/ngo-automation/internal/infrastructure/storage"
)

// ScanFlags holds the CLI flags for the scan command.
type ScanFlags struct {
	Config  string
	Record  bool
	Verbose bool
}

// ParseScanFlags parses command line flags for the scan command.
func ParseScanFlags() *ScanFlags {
	flags := &ScanFlags{}
	flag.StringVar(&flags.Config, "config", "config.yaml", "Path to config file")
	flag.BoolVar(&flags.Record, "record", false, "Record found duplicates as unresolved relationships")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	flag.Parse()
	return flags
}

// ScanResult summarizes a full-store duplicate sweep.
type ScanResult struct {
	Scanned    int
	ExactPairs int
	NearPairs  int
	Recorded   int
	Skipped    int
	Errors     []error
}

// RunScan sweeps every stored transaction for duplicates and prints a
// summary. With -record, each found pair is stored as an unresolved
// relationship; pairs that are already recorded are skipped.
func RunScan(cfg *config.Config, flags *ScanFlags) error {
	loggingCfg := cfg.Observability.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, "scan")

	ctx := context.Background()
	app, err := BuildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	PrintScanHeader(cfg.Storage.Driver, flags.Record)

	result, err := Scan(ctx, app, flags.Record)
	if err != nil {
		return err
	}

	PrintScanSummary(result, flags.Record)
	return nil
}

// Scan loads all transactions, evaluates each against the rest and
// optionally records the found pairs.
func Scan(ctx context.Context, app *App, record bool) (*ScanResult, error) {
	all, err := loadAllTransactions(ctx, app.Repo)
	if err != nil {
		return nil, err
	}

	index := resolver.NewIndex()
	index.AddAll(all)

	result := &ScanResult{Scanned: len(all)}

	for _, tx := range all {
		eval, err := app.Service.EvaluateAgainst(tx, index)
		if err != nil {
			return nil, err
		}

		for _, match := range eval.ExactMatches {
			// Each pair surfaces twice; keep the ordered one.
			if match.ID.String() < tx.ID.String() {
				continue
			}
			result.ExactPairs++
			recordPair(ctx, app, record, result, tx.ID, match.ID, ledger.MatchExact, 1.0)
		}
		for _, near := range eval.NearMatches {
			if near.Transaction.ID.String() < tx.ID.String() {
				continue
			}
			result.NearPairs++
			recordPair(ctx, app, record, result, tx.ID, near.Transaction.ID, ledger.MatchNear, near.Score)
		}
	}

	return result, nil
}

func recordPair(ctx context.Context, app *App, record bool, result *ScanResult, originalID, candidateID uuid.UUID, kind ledger.MatchKind, score float64) {
	if !record {
		return
	}
	_, err := app.Service.RecordRelationship(ctx, originalID, candidateID, kind, score)
	switch {
	case err == nil:
		result.Recorded++
	case errors.Is(err, storage.ErrAlreadyExists):
		result.Skipped++
	default:
		result.Errors = append(result.Errors, err)
	}
}

func loadAllTransactions(ctx context.Context, repo storage.Repository) ([]ledger.Transaction, error) {
	const pageSize = 500
	var all []ledger.Transaction
	for offset := 0; ; offset += pageSize {
		page, _, err := repo.ListTransactions(ctx, storage.TransactionFilters{Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}
