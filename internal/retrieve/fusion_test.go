package retrieve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sembank/memoryd/internal/vectorstore"
)

func TestFuseRRF_CombinesAndRanks(t *testing.T) {
	content := []vectorstore.Hit{
		{ID: "A", Score: 1.0, Metadata: map[string]string{"artifact_id": "art_A"}},
		{ID: "B", Score: 0.9, Metadata: map[string]string{"artifact_id": "art_B"}},
	}
	chunks := []vectorstore.Hit{
		{ID: "B", Score: 0.95, Metadata: map[string]string{"artifact_id": "art_B"}},
		{ID: "C", Score: 0.5, Metadata: map[string]string{"artifact_id": "art_C"}},
	}

	fused := FuseRRF(content, chunks, 60)
	require.Len(t, fused, 3)

	// B appears in both lists (ranks 2 and 1) so it scores higher than A or C alone.
	assert.Equal(t, "B", fused[0].ID)
}

func TestFuseRRF_DefaultsKWhenZero(t *testing.T) {
	content := []vectorstore.Hit{{ID: "A", Metadata: map[string]string{"artifact_id": "art_A"}}}
	fused := FuseRRF(content, nil, 0)
	require.Len(t, fused, 1)
	assert.InDelta(t, 1.0/61.0, fused[0].fused, 1e-9)
}

func TestDedupByArtifact_KeepsHighestRankedPerArtifact(t *testing.T) {
	hits := []fusedHit{
		{ID: "chunk-1", ArtifactID: "art_A", fused: 0.9},
		{ID: "chunk-2", ArtifactID: "art_A", fused: 0.5},
		{ID: "chunk-3", ArtifactID: "art_B", fused: 0.8},
	}
	out := DedupByArtifact(hits)
	require.Len(t, out, 2)
	assert.Equal(t, "chunk-1", out[0].ID)
	assert.Equal(t, "chunk-3", out[1].ID)
}

func TestDedupByArtifact_FallsBackToIDWhenArtifactIDEmpty(t *testing.T) {
	hits := []fusedHit{
		{ID: "x", ArtifactID: "", fused: 1.0},
		{ID: "y", ArtifactID: "", fused: 0.5},
	}
	out := DedupByArtifact(hits)
	require.Len(t, out, 2)
}
