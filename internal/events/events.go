// Package events publishes duplicate-detection notifications so other
// systems (review dashboards, alerting) can react to recorded
// duplicates. Publishing happens only when a relationship is
// persisted, never during evaluation.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DuplicateDetected is emitted when a duplicate relationship is
// recorded.
type DuplicateDetected struct {
	RelationshipID  uuid.UUID `json:"relationship_id"`
	OriginalID      uuid.UUID `json:"original_transaction_id"`
	CandidateID     uuid.UUID `json:"candidate_transaction_id"`
	Kind            string    `json:"kind"`
	SimilarityScore float64   `json:"similarity_score"`
	DetectedAt      time.Time `json:"detected_at"`
}

// Publisher delivers duplicate-detection events.
type Publisher interface {
	PublishDuplicateDetected(ctx context.Context, event DuplicateDetected) error
	Close() error
}

// NoopPublisher discards events. Used when no broker is configured.
type NoopPublisher struct{}

// PublishDuplicateDetected implements Publisher.
func (NoopPublisher) PublishDuplicateDetected(context.Context, DuplicateDetected) error {
	return nil
}

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }
