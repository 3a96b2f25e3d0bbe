package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process test double satisfying Store, used by the
// fast unit-test suite in place of Qdrant.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]map[string]row // collection -> id -> row
}

type row struct {
	vector   []float32
	text     string
	metadata map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]map[string]row)}
}

func (m *MemoryStore) Upsert(_ context.Context, collection string, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.rows[collection]
	if !ok {
		coll = make(map[string]row)
		m.rows[collection] = coll
	}
	for _, p := range points {
		v := make([]float32, len(p.Vector))
		copy(v, p.Vector)
		coll[p.ID] = row{vector: v, text: p.Text, metadata: copyMap(p.Metadata)}
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, collection string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.rows[collection]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(coll, id)
	}
	return nil
}

func (m *MemoryStore) SimilaritySearch(_ context.Context, collection string, vector []float32, k int, filter map[string]string) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 {
		k = 10
	}
	coll := m.rows[collection]
	qnorm := norm(vector)
	hits := make([]Hit, 0, len(coll))
	for id, r := range coll {
		if !matchesFilter(r.metadata, filter) {
			continue
		}
		hits = append(hits, Hit{
			ID:       id,
			Score:    cosine(vector, r.vector, qnorm),
			Text:     r.text,
			Metadata: copyMap(r.metadata),
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *MemoryStore) GetByFilter(_ context.Context, collection string, filter map[string]string, limit int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll := m.rows[collection]
	hits := make([]Hit, 0, len(coll))
	for id, r := range coll {
		if !matchesFilter(r.metadata, filter) {
			continue
		}
		hits = append(hits, Hit{ID: id, Text: r.text, Metadata: copyMap(r.metadata)})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func matchesFilter(md, filter map[string]string) bool {
	if len(filter) == 0 {
		return true
	}
	for k, v := range filter {
		if md[k] != v {
			return false
		}
	}
	return true
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func norm(a []float32) float64 {
	var s float64
	for _, x := range a {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func cosine(a, b []float32, anorm float64) float64 {
	if anorm == 0 {
		anorm = norm(a)
	}
	bnorm := norm(b)
	if anorm == 0 || bnorm == 0 {
		return 0
	}
	return dot(a, b) / (anorm * bnorm)
}
