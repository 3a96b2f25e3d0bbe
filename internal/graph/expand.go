package graph

import (
	"context"

	"github.com/sembank/memoryd/internal/relstore"
)

// Expand performs the 1-hop relational expansion named in spec.md §4.8:
// given a seed set of event ids drawn from primary recall results, pull
// every event sharing an actor or subject entity, labeled with the reason
// it was surfaced.
func Expand(ctx context.Context, rel *relstore.Store, seedEventIDs, categories []string, budget int) ([]relstore.RelatedEvent, error) {
	return rel.GraphExpand(ctx, seedEventIDs, categories, budget)
}
