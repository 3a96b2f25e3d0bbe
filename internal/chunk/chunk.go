// Package chunk implements the token-window chunking service (spec.md
// §4.3): given text and an artifact identifier, it returns an ordered,
// deterministic list of chunks with stable ids and accurate character
// offsets.
package chunk

import (
	"fmt"

	"github.com/sembank/memoryd/internal/ids"
	"github.com/sembank/memoryd/internal/tokenizer"
)

// Chunk is one produced window of an artifact revision's text.
type Chunk struct {
	ID         string
	Index      int
	Text       string
	StartChar  int
	EndChar    int
	TokenCount int
}

// Options parameterizes the sliding window. Target and Overlap are in
// tokens, as counted by Tokenizer.
type Options struct {
	Target    int
	Overlap   int
	Tokenizer tokenizer.Tokenizer
}

// Chunker splits text into chunks for a given artifact identity.
type Chunker interface {
	Chunk(artifactID, text string, opt Options) ([]Chunk, error)
}

// SlidingWindow is the single chunking strategy the system uses: a
// token-accounted sliding window, deterministic in both content and ids for
// a fixed (content, target, overlap, tokenizer) tuple.
type SlidingWindow struct{}

// Chunk walks the token spans of text in windows of opt.Target tokens,
// advancing by (Target - Overlap) tokens each step, with the final window
// covering the tail of the text exactly. Returns an error if Target <=
// Overlap (the window would never advance).
func (SlidingWindow) Chunk(artifactID, text string, opt Options) ([]Chunk, error) {
	target := opt.Target
	if target <= 0 {
		target = 900
	}
	overlap := opt.Overlap
	if overlap < 0 {
		overlap = 0
	}
	step := target - overlap
	if step <= 0 {
		return nil, fmt.Errorf("chunk: target (%d) must exceed overlap (%d)", target, overlap)
	}
	tok := opt.Tokenizer
	if tok == nil {
		tok = tokenizer.Default
	}

	spans := tok.Tokenize(text)
	if len(spans) == 0 {
		return nil, nil
	}

	var chunks []Chunk
	index := 0
	pos := 0
	for pos < len(spans) {
		end := pos + target
		if end > len(spans) {
			end = len(spans)
		}
		chunkText := tokenizer.Decode(text, spans, pos, end)
		c := Chunk{
			Index:      index,
			Text:       chunkText,
			StartChar:  spans[pos].Start,
			EndChar:    spans[end-1].End,
			TokenCount: end - pos,
		}
		c.ID = ids.ChunkID(artifactID, index, chunkText)
		chunks = append(chunks, c)
		index++
		if end == len(spans) {
			break
		}
		pos += step
	}
	return chunks, nil
}

// ShouldChunk reports whether content with tokenCount tokens is treated as
// a single piece (false) or chunked (true), per the SINGLE_PIECE_MAX
// boundary in spec.md §4.1 step 4 / §8.
func ShouldChunk(tokenCount, singlePieceMax int) bool {
	return tokenCount > singlePieceMax
}
