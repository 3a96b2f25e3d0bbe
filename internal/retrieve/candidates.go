package retrieve

import (
	"context"
	"time"

	"github.com/sembank/memoryd/internal/vectorstore"
)

// SourceDiagnostics carries per-collection retrieval timings and counts,
// returned alongside results for the recall operation's diagnostics field.
type SourceDiagnostics struct {
	ContentLatency time.Duration
	ChunksLatency  time.Duration
	ContentCount   int
	ChunksCount    int
}

// ParallelCandidates queries the content and chunks collections
// concurrently with the same query embedding, per spec.md §4.8 step 1.
func ParallelCandidates(ctx context.Context, vec vectorstore.Store, queryVec []float32, k int, filter map[string]string) (contentHits, chunkHits []vectorstore.Hit, diag SourceDiagnostics, err error) {
	type result struct {
		hits []vectorstore.Hit
		dur  time.Duration
		err  error
	}

	contentCh := make(chan result, 1)
	chunksCh := make(chan result, 1)

	go func() {
		t0 := time.Now()
		hits, e := vec.SimilaritySearch(ctx, vectorstore.CollectionContent, queryVec, k, filter)
		contentCh <- result{hits: hits, dur: time.Since(t0), err: e}
	}()
	go func() {
		t0 := time.Now()
		hits, e := vec.SimilaritySearch(ctx, vectorstore.CollectionChunks, queryVec, k, filter)
		chunksCh <- result{hits: hits, dur: time.Since(t0), err: e}
	}()

	cr := <-contentCh
	kr := <-chunksCh
	if cr.err != nil {
		return nil, nil, SourceDiagnostics{}, cr.err
	}
	if kr.err != nil {
		return nil, nil, SourceDiagnostics{}, kr.err
	}

	diag = SourceDiagnostics{
		ContentLatency: cr.dur, ChunksLatency: kr.dur,
		ContentCount: len(cr.hits), ChunksCount: len(kr.hits),
	}
	return cr.hits, kr.hits, diag, nil
}
