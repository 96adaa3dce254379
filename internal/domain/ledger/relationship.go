package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrResolutionFinal is returned when a resolution update is attempted
// on a relationship whose resolution is already terminal.
var ErrResolutionFinal = errors.New("duplicate relationship resolution is final")

// MatchKind distinguishes fingerprint-identical pairs from fuzzy ones.
type MatchKind string

const (
	MatchExact MatchKind = "exact"
	MatchNear  MatchKind = "near"
)

// Valid reports whether k is a known match kind.
func (k MatchKind) Valid() bool {
	return k == MatchExact || k == MatchNear
}

// Resolution is the review outcome for a duplicate relationship.
// The only legal transition is unresolved -> {keep_both, merge, ignore};
// the three outcomes are terminal. Re-resolving requires a new
// relationship record.
type Resolution string

const (
	ResolutionUnresolved Resolution = "unresolved"
	ResolutionKeepBoth   Resolution = "keep_both"
	ResolutionMerge      Resolution = "merge"
	ResolutionIgnore     Resolution = "ignore"
)

// Valid reports whether r is a known resolution.
func (r Resolution) Valid() bool {
	switch r {
	case ResolutionUnresolved, ResolutionKeepBoth, ResolutionMerge, ResolutionIgnore:
		return true
	}
	return false
}

// Terminal reports whether r ends the relationship's state machine.
func (r Resolution) Terminal() bool {
	return r.Valid() && r != ResolutionUnresolved
}

// CanTransitionTo reports whether moving from r to target is legal.
func (r Resolution) CanTransitionTo(target Resolution) bool {
	return r == ResolutionUnresolved && target.Terminal()
}

// DuplicateRelationship links a stored transaction (original) with a
// later candidate that matched it exactly or nearly.
type DuplicateRelationship struct {
	ID              uuid.UUID  `json:"id"`
	OriginalID      uuid.UUID  `json:"original_transaction_id"`
	CandidateID     uuid.UUID  `json:"candidate_transaction_id"`
	Kind            MatchKind  `json:"kind"`
	SimilarityScore float64    `json:"similarity_score"`
	Resolution      Resolution `json:"resolution"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

// Resolve applies a terminal resolution. It fails with
// ErrResolutionFinal once the relationship has already been resolved.
func (d *DuplicateRelationship) Resolve(target Resolution, at time.Time) error {
	if !target.Terminal() {
		return errors.New("resolution target must be keep_both, merge or ignore")
	}
	if !d.Resolution.CanTransitionTo(target) {
		return ErrResolutionFinal
	}
	d.Resolution = target
	d.ResolvedAt = &at
	return nil
}
