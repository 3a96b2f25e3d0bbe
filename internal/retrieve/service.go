package retrieve

import (
	"context"

	"github.com/sembank/memoryd/internal/relstore"
	"github.com/sembank/memoryd/internal/vectorstore"
)

// Embedder is the minimal surface Service needs from internal/embedclient.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Item is one primary recall result (spec.md §4.6 output's `results[]`).
type Item struct {
	ArtifactID string
	Content    string
	Similarity float64
	Metadata   map[string]string
	Events     []relstore.Event
}

// Related is one graph-expansion result (spec.md §4.6 output's `related[]`).
type Related struct {
	Event  relstore.Event
	Reason string
}

// Options controls one recall query-path call (spec.md §4.6).
type Options struct {
	Limit         int
	Expand        bool
	IncludeEvents bool
	GraphBudget   int
	GraphSeedCap  int // default 5, the "graph_seed_limit" named in §4.6 step 8
	CategoryFilter []string
	MetadataFilter map[string]string
}

// Service runs the recall query path end to end.
type Service struct {
	vec   vectorstore.Store
	rel   *relstore.Store
	embed Embedder
}

func NewService(vec vectorstore.Store, rel *relstore.Store, embed Embedder) *Service {
	return &Service{vec: vec, rel: rel, embed: embed}
}

// Query runs spec.md §4.6's algorithm for the query path: embed once, fan
// out across collections, fuse by RRF, dedup by artifact, truncate, then
// optionally expand via the graph and attach events.
func (s *Service) Query(ctx context.Context, query string, opt Options) (results []Item, related []Related, err error) {
	if opt.Limit <= 0 {
		opt.Limit = 10
	}
	if opt.GraphBudget <= 0 {
		opt.GraphBudget = 10
	}
	if opt.GraphSeedCap <= 0 {
		opt.GraphSeedCap = 5
	}

	vecs, err := s.embed.Embed(ctx, []string{query})
	if err != nil {
		return nil, nil, err
	}
	if len(vecs) == 0 {
		return nil, nil, nil
	}

	overFetch := opt.Limit * 3
	contentHits, chunkHits, _, err := ParallelCandidates(ctx, s.vec, vecs[0], overFetch, opt.MetadataFilter)
	if err != nil {
		return nil, nil, err
	}

	fused := FuseRRF(contentHits, chunkHits, defaultRRFK)
	deduped := DedupByArtifact(fused)
	if len(deduped) > opt.Limit {
		deduped = deduped[:opt.Limit]
	}

	results = make([]Item, 0, len(deduped))
	var seedEventIDs []string
	for _, h := range deduped {
		item := Item{
			ArtifactID: h.ArtifactID,
			Content:    h.Text,
			Similarity: h.fused,
			Metadata:   h.Metadata,
		}
		if opt.IncludeEvents && item.ArtifactID != "" {
			if rev, err := s.rel.GetRevisionByArtifactID(ctx, item.ArtifactID); err == nil && rev != nil {
				events, err := s.rel.GetEventsForRevision(ctx, rev.ArtifactUID, rev.RevisionID)
				if err == nil {
					item.Events = events
					for i, ev := range events {
						if i >= opt.GraphSeedCap {
							break
						}
						seedEventIDs = append(seedEventIDs, ev.EventID)
					}
				}
			}
		}
		results = append(results, item)
	}

	if opt.Expand && len(seedEventIDs) > 0 {
		relatedEvents, err := s.rel.GraphExpand(ctx, seedEventIDs, opt.CategoryFilter, opt.GraphBudget)
		if err != nil {
			// Graph expansion is best-effort (spec.md §4.9): primary results
			// still return with an empty related list on failure.
			return results, nil, nil
		}
		for _, re := range relatedEvents {
			related = append(related, Related{Event: re.Event, Reason: re.Reason})
		}
	}

	return results, related, nil
}
