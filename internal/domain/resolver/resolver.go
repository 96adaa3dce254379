// Package resolver classifies a new transaction against previously
// stored ones: exact duplicates by fingerprint equality, near
// duplicates by date/amount prefilter plus vendor-name similarity.
//
// Evaluate is read-only and idempotent for a fixed snapshot;
// persisting a duplicate relationship is the caller's explicit,
// separate step.
package resolver

import (
	"sort"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"

	"github.com/Oleguzik/ngo-automation/internal/domain/ledger"
)

// Resolver evaluates transactions against a snapshot of existing
// ones. It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	config Config
}

// New creates a Resolver, validating the config bounds.
func New(config Config) (*Resolver, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Resolver{config: config}, nil
}

// Config returns the resolver's configuration.
func (r *Resolver) Config() Config {
	return r.config
}

// Evaluate classifies tx against the snapshot. Exact matches are the
// fingerprint-identical transactions; near matches are transactions
// within the date window whose amount passes the tolerance prefilter
// and whose normalized vendor scores at or above the similarity
// floor. A transaction never matches itself, and exact matches are
// never reported again as near matches.
func (r *Resolver) Evaluate(tx ledger.Transaction, existing Snapshot) (Evaluation, error) {
	// Config was validated at construction, but a zero-valued Resolver
	// obtained without New must not silently misbehave.
	if err := r.config.Validate(); err != nil {
		return Evaluation{}, err
	}

	var eval Evaluation

	exactIDs := make(map[string]struct{})
	for _, candidate := range existing.ByFingerprint(tx.Fingerprint) {
		if candidate.ID == tx.ID {
			continue
		}
		exactIDs[candidate.ID.String()] = struct{}{}
		eval.ExactMatches = append(eval.ExactMatches, candidate)
	}
	sort.Slice(eval.ExactMatches, func(i, j int) bool {
		return eval.ExactMatches[i].ID.String() < eval.ExactMatches[j].ID.String()
	})

	for _, candidate := range existing.InWindow(tx.Date, r.config.WindowDays) {
		if candidate.ID == tx.ID {
			continue
		}
		if _, ok := exactIDs[candidate.ID.String()]; ok {
			continue
		}
		// The snapshot already prefilters by date, but the window
		// contract must hold for any Snapshot implementation.
		if !withinDays(tx.Date, candidate.Date, r.config.WindowDays) {
			continue
		}
		if !r.amountWithinTolerance(tx, candidate) {
			continue
		}
		score := Similarity(tx.NormalizedVendor, candidate.NormalizedVendor)
		if score < r.config.SimilarityFloor {
			continue
		}
		eval.NearMatches = append(eval.NearMatches, NearMatch{Transaction: candidate, Score: score})
	}

	sort.Slice(eval.NearMatches, func(i, j int) bool {
		if eval.NearMatches[i].Score != eval.NearMatches[j].Score {
			return eval.NearMatches[i].Score > eval.NearMatches[j].Score
		}
		return eval.NearMatches[i].Transaction.ID.String() < eval.NearMatches[j].Transaction.ID.String()
	})

	return eval, nil
}

// amountWithinTolerance applies the configured amount prefilter.
func (r *Resolver) amountWithinTolerance(tx, candidate ledger.Transaction) bool {
	diff := tx.Amount.Sub(candidate.Amount).Abs()
	switch r.config.ToleranceMode {
	case TolerancePercent:
		limit := tx.Amount.Abs().Mul(r.config.AmountTolerance).Div(decimal.NewFromInt(100))
		return diff.LessThanOrEqual(limit)
	default:
		return diff.LessThanOrEqual(r.config.AmountTolerance)
	}
}

// withinDays reports whether two calendar dates are at most days
// apart.
func withinDays(a, b time.Time, days int) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(days)*24*time.Hour
}

// Similarity is the normalized Levenshtein ratio between two vendor
// keys, in [0,1]. Two empty strings score 1.0; empty versus non-empty
// scores 0.0. Distance is computed over runes.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}
