package relstore

import (
	"context"
	"fmt"
)

// Counts holds the tallies reported by the status operation (spec.md §4.9).
type Counts struct {
	Artifacts   int64
	Revisions   int64
	Events      int64
	Entities    int64
	NeedsReview int64
	Jobs        map[string]int64
}

// GetCounts gathers every count the status operation reports in one pass.
func (s *Store) GetCounts(ctx context.Context) (Counts, error) {
	var c Counts

	if err := s.pool.QueryRow(ctx, `
		SELECT count(DISTINCT artifact_uid), count(*) FROM artifact_revision`).
		Scan(&c.Artifacts, &c.Revisions); err != nil {
		return c, fmt.Errorf("relstore: count artifacts: %w", err)
	}

	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM semantic_event`).Scan(&c.Events); err != nil {
		return c, fmt.Errorf("relstore: count events: %w", err)
	}

	if err := s.pool.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE needs_review) FROM entity`).
		Scan(&c.Entities, &c.NeedsReview); err != nil {
		return c, fmt.Errorf("relstore: count entities: %w", err)
	}

	jobs, err := s.CountJobsByStatus(ctx)
	if err != nil {
		return c, err
	}
	c.Jobs = jobs
	return c, nil
}
