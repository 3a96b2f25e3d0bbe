package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_UpsertSearchDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, CollectionContent, []Point{
		{ID: "art_1", Vector: []float32{1, 0, 0}, Text: "alpha", Metadata: map[string]string{"artifact_uid": "uid_a"}},
		{ID: "art_2", Vector: []float32{0, 1, 0}, Text: "beta", Metadata: map[string]string{"artifact_uid": "uid_b"}},
	}))

	hits, err := s.SimilaritySearch(ctx, CollectionContent, []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "art_1", hits[0].ID)

	filtered, err := s.SimilaritySearch(ctx, CollectionContent, []float32{1, 0, 0}, 10, map[string]string{"artifact_uid": "uid_b"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, "art_2", filtered[0].ID)

	require.NoError(t, s.Delete(ctx, CollectionContent, []string{"art_1"}))
	remaining, err := s.SimilaritySearch(ctx, CollectionContent, []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, "art_2", remaining[0].ID)
}

func TestMemoryStore_UnknownCollectionReturnsEmpty(t *testing.T) {
	s := NewMemoryStore()
	hits, err := s.SimilaritySearch(context.Background(), "does-not-exist", []float32{1}, 5, nil)
	require.NoError(t, err)
	require.Empty(t, hits)
}
