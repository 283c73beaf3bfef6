package ratings

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Aggregator maintains the per-doctor running rating totals. Doctors carry
// rating_sum and rating_count columns; the average is derived on read, so
// applying a score is one atomic UPDATE with no read-modify-write window.
type Aggregator struct{}

// NewAggregator creates a rating aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Apply adds one score to the doctor's totals. It must be invoked exactly
// once per rating event, inside the same transaction that records the rating.
func (a *Aggregator) Apply(ctx context.Context, q Querier, doctorID uuid.UUID, score int16) error {
	tag, err := q.Exec(ctx, `
		UPDATE doctors
		SET rating_sum = rating_sum + $2,
		    rating_count = rating_count + 1,
		    updated_at = now()
		WHERE id = $1
	`, doctorID, score)
	if err != nil {
		return fmt.Errorf("ratings: apply score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ratings: apply score: doctor %s not found", doctorID)
	}
	return nil
}
