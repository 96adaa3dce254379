package resolver

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Oleguzik/ngo-automation/internal/domain/ledger"
)

// ErrInvalidWindow is returned for a negative date window, a negative
// amount tolerance or a similarity floor outside [0,1].
var ErrInvalidWindow = errors.New("invalid resolver window")

// ToleranceMode selects how the amount tolerance is interpreted.
type ToleranceMode string

const (
	// ToleranceAbsolute compares |a-b| against a fixed amount.
	ToleranceAbsolute ToleranceMode = "absolute"
	// TolerancePercent compares |a-b| against a percentage of the new
	// transaction's amount.
	TolerancePercent ToleranceMode = "percent"
)

// Valid reports whether m is a known tolerance mode.
func (m ToleranceMode) Valid() bool {
	return m == ToleranceAbsolute || m == TolerancePercent
}

// Config holds resolver tuning.
type Config struct {
	// WindowDays bounds the near-match candidate set to transactions
	// dated within +/- this many days of the new transaction.
	WindowDays int
	// AmountTolerance is the maximum amount difference for a near
	// match, interpreted per ToleranceMode.
	AmountTolerance decimal.Decimal
	ToleranceMode   ToleranceMode
	// SimilarityFloor is the minimum normalized-vendor similarity for
	// a near match.
	SimilarityFloor float64
}

// DefaultConfig returns the production defaults: 3-day window, exact
// amounts only, 0.95 similarity floor.
func DefaultConfig() Config {
	return Config{
		WindowDays:      3,
		AmountTolerance: decimal.Zero,
		ToleranceMode:   ToleranceAbsolute,
		SimilarityFloor: 0.95,
	}
}

// Validate checks the config bounds.
func (c Config) Validate() error {
	if c.WindowDays < 0 {
		return fmt.Errorf("%w: window days %d is negative", ErrInvalidWindow, c.WindowDays)
	}
	if c.AmountTolerance.IsNegative() {
		return fmt.Errorf("%w: amount tolerance %s is negative", ErrInvalidWindow, c.AmountTolerance)
	}
	if !c.ToleranceMode.Valid() {
		return fmt.Errorf("%w: unknown tolerance mode %q", ErrInvalidWindow, c.ToleranceMode)
	}
	if c.SimilarityFloor < 0 || c.SimilarityFloor > 1 {
		return fmt.Errorf("%w: similarity floor %v outside [0,1]", ErrInvalidWindow, c.SimilarityFloor)
	}
	return nil
}

// Snapshot is the read view of existing transactions the caller
// supplies to Evaluate. It is owned by the surrounding storage layer
// and must reflect a consistent state at evaluation time.
type Snapshot interface {
	// ByFingerprint returns the transactions stored under a
	// fingerprint. Expected O(1) against an incrementally maintained
	// index.
	ByFingerprint(fp string) []ledger.Transaction
	// InWindow returns the transactions dated within +/- days of
	// center.
	InWindow(center time.Time, days int) []ledger.Transaction
}

// NearMatch pairs a candidate transaction with its vendor-similarity
// score.
type NearMatch struct {
	Transaction ledger.Transaction
	Score       float64
}

// Evaluation is the ordered result of evaluating one new transaction:
// exact fingerprint matches first (id ascending), then near matches by
// score descending, id ascending.
type Evaluation struct {
	ExactMatches []ledger.Transaction
	NearMatches  []NearMatch
}

// HasMatches reports whether anything matched at all.
func (e Evaluation) HasMatches() bool {
	return len(e.ExactMatches) > 0 || len(e.NearMatches) > 0
}
