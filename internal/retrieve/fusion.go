// Package retrieve implements hybrid retrieval (spec.md §4.8): parallel
// vector search across the content/chunks collections, Reciprocal Rank
// Fusion, artifact-level dedup, and 1-hop graph expansion splicing.
package retrieve

import (
	"sort"

	"github.com/sembank/memoryd/internal/vectorstore"
)

const defaultRRFK = 60

// fusedHit tracks one candidate's rank in each source list plus its fused
// RRF score.
type fusedHit struct {
	ID         string
	ArtifactID string
	Text       string
	Metadata   map[string]string
	contentRank int // 1-based, 0 if absent
	chunkRank   int
	fused       float64
}

// FuseRRF combines the content-collection and chunk-collection hit lists
// using Reciprocal Rank Fusion with constant k (spec.md §4.8, default 60).
func FuseRRF(contentHits, chunkHits []vectorstore.Hit, k int) []fusedHit {
	if k <= 0 {
		k = defaultRRFK
	}

	contentRank := make(map[string]int, len(contentHits))
	byID := make(map[string]vectorstore.Hit, len(contentHits)+len(chunkHits))
	for i, h := range contentHits {
		contentRank[h.ID] = i + 1
		byID[h.ID] = h
	}
	chunkRank := make(map[string]int, len(chunkHits))
	for i, h := range chunkHits {
		chunkRank[h.ID] = i + 1
		if _, ok := byID[h.ID]; !ok {
			byID[h.ID] = h
		}
	}

	seen := map[string]struct{}{}
	var ids []string
	for _, h := range contentHits {
		if _, ok := seen[h.ID]; !ok {
			seen[h.ID] = struct{}{}
			ids = append(ids, h.ID)
		}
	}
	for _, h := range chunkHits {
		if _, ok := seen[h.ID]; !ok {
			seen[h.ID] = struct{}{}
			ids = append(ids, h.ID)
		}
	}

	out := make([]fusedHit, 0, len(ids))
	for _, id := range ids {
		cr := contentRank[id]
		kr := chunkRank[id]
		var score float64
		if cr > 0 {
			score += 1.0 / float64(k+cr)
		}
		if kr > 0 {
			score += 1.0 / float64(k+kr)
		}
		hit := byID[id]
		out = append(out, fusedHit{
			ID:          id,
			ArtifactID:  artifactIDOf(hit),
			Text:        hit.Text,
			Metadata:    hit.Metadata,
			contentRank: cr,
			chunkRank:   kr,
			fused:       score,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].fused != out[j].fused {
			return out[i].fused > out[j].fused
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func artifactIDOf(h vectorstore.Hit) string {
	if h.Metadata == nil {
		return ""
	}
	return h.Metadata["artifact_id"]
}

// DedupByArtifact keeps only the highest-scoring hit per artifact id,
// preserving overall rank order, matching the artifact-level dedup rule
// in spec.md §4.8.
func DedupByArtifact(hits []fusedHit) []fusedHit {
	seen := map[string]bool{}
	out := make([]fusedHit, 0, len(hits))
	for _, h := range hits {
		key := h.ArtifactID
		if key == "" {
			key = h.ID
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, h)
	}
	return out
}
