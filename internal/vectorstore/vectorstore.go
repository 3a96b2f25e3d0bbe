// Package vectorstore is the per-collection ANN index client (spec.md §2
// component 1, §3 "Vector collections"): insert, delete, and filtered
// nearest-neighbor query, accepting caller-supplied embeddings.
package vectorstore

import "context"

// Named collections, per spec.md §3.
const (
	CollectionContent = "content"
	CollectionChunks  = "chunks"
	CollectionEntity  = "entity"
)

// Point is one row to upsert: an identifier, the text it indexes, its
// embedding, and a metadata map.
type Point struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]string
}

// Hit is one nearest-neighbor result.
type Hit struct {
	ID       string
	Score    float64 // higher is closer
	Text     string
	Metadata map[string]string
}

// Store is the minimum portable interface every backend (Qdrant, in-memory
// test double) implements. All operations are scoped to a single named
// collection; callers are responsible for using the constants above.
type Store interface {
	Upsert(ctx context.Context, collection string, points []Point) error
	Delete(ctx context.Context, collection string, ids []string) error
	SimilaritySearch(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]Hit, error)
	// GetByFilter returns every row matching filter exactly, with no
	// similarity ranking involved. Used by the extraction worker to load an
	// artifact revision's stored text back out of the vector store
	// (spec.md §4.5 step 3).
	GetByFilter(ctx context.Context, collection string, filter map[string]string, limit int) ([]Hit, error)
	// Ping reports whether the backend is reachable, used by the status
	// operation's per-component health summary (spec.md §4.9).
	Ping(ctx context.Context) error
	Close() error
}
