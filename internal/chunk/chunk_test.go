package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func genWords(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("word")
	}
	return b.String()
}

func TestSlidingWindow_ExactBoundary_SingleVsChunked(t *testing.T) {
	text900 := genWords(900)
	require.False(t, ShouldChunk(900, 1200))
	require.False(t, ShouldChunk(1200, 1200))
	require.True(t, ShouldChunk(1201, 1200))
	_ = text900
}

func TestSlidingWindow_1700Tokens_ExactlyTwoChunks(t *testing.T) {
	text := genWords(1700)
	chunks, err := SlidingWindow{}.Chunk("art_deadbeef0000", text, Options{Target: 900, Overlap: 100})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.Equal(t, 900, chunks[0].TokenCount)
	require.Equal(t, 900, chunks[1].TokenCount)
	require.Equal(t, 0, chunks[0].Index)
	require.Equal(t, 1, chunks[1].Index)
	// windows overlap by 100 tokens: second window starts 800 tokens in.
	require.True(t, chunks[1].StartChar < chunks[0].EndChar)
}

func TestSlidingWindow_DeterministicIDs(t *testing.T) {
	text := genWords(2000)
	a, err := SlidingWindow{}.Chunk("art_deadbeef0000", text, Options{Target: 900, Overlap: 100})
	require.NoError(t, err)
	b, err := SlidingWindow{}.Chunk("art_deadbeef0000", text, Options{Target: 900, Overlap: 100})
	require.NoError(t, err)
	require.Equal(t, len(a), len(b))
	for i := range a {
		require.Equal(t, a[i].ID, b[i].ID)
	}
}

func TestSlidingWindow_RejectsNonAdvancingWindow(t *testing.T) {
	_, err := SlidingWindow{}.Chunk("art_x", "some text", Options{Target: 100, Overlap: 100})
	require.Error(t, err)
}

func TestSlidingWindow_LastChunkCoversTailExactly(t *testing.T) {
	text := genWords(950)
	chunks, err := SlidingWindow{}.Chunk("art_x", text, Options{Target: 900, Overlap: 100})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.Equal(t, len(text), chunks[len(chunks)-1].EndChar)
}
