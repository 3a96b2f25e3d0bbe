// Package tokenizer provides the fixed token-accounting scheme used
// where content length or chunk boundaries matter: ingestion's
// single-piece-vs-chunked decision and the chunking service's sliding
// window. The embedding and LLM clients do not use it.
package tokenizer

import (
	"strings"
	"unicode"
)

// Span is one token's byte range within the original text, [Start, End).
type Span struct {
	Start int
	End   int
}

// Tokenizer counts and locates tokens in text. Same (content, Tokenizer)
// always yields the identical token list, which is what makes chunk
// identity and the single-piece/chunked boundary deterministic.
type Tokenizer interface {
	// Tokenize returns the ordered token spans for s.
	Tokenize(s string) []Span
	// Count is equivalent to len(Tokenize(s)) but avoids building the slice
	// when only the count is needed.
	Count(s string) int
	Name() string
}

// Default is the heuristic word tokenizer used across the system in the
// absence of a model-specific tokenizer. It approximates subword tokenizers
// closely enough for the sliding-window/boundary contract in spec, which
// only requires determinism and rough token-size proportionality, not
// byte-identical parity with any specific model's BPE vocabulary.
var Default Tokenizer = WordTokenizer{}

// WordTokenizer splits on runs of whitespace and treats most punctuation as
// its own token, which keeps offsets well-defined and the token count in
// the same order of magnitude as a real subword tokenizer for prose text.
type WordTokenizer struct{}

func (WordTokenizer) Name() string { return "word-heuristic-v1" }

func (WordTokenizer) Count(s string) int {
	return len(WordTokenizer{}.Tokenize(s))
}

func (WordTokenizer) Tokenize(s string) []Span {
	var spans []Span
	runes := []rune(s)
	// byteOffsets[i] is the byte offset of runes[i] in s.
	byteOffsets := make([]int, len(runes)+1)
	{
		b := 0
		for i, r := range runes {
			byteOffsets[i] = b
			b += len(string(r))
		}
		byteOffsets[len(runes)] = b
	}

	i := 0
	for i < len(runes) {
		if unicode.IsSpace(runes[i]) {
			i++
			continue
		}
		start := i
		switch {
		case unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]):
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
		default:
			// Punctuation/symbols: one rune per token, except for common
			// contraction/decimal joiners kept with their neighbors is not
			// attempted here — punctuation runs are fine as single tokens.
			i++
		}
		spans = append(spans, Span{Start: byteOffsets[start], End: byteOffsets[i]})
	}
	return spans
}

// Decode returns the substring of s covered by spans[from:to] (exclusive of
// to), or the empty string if the range is empty or out of bounds.
func Decode(s string, spans []Span, from, to int) string {
	if from >= to || from < 0 || to > len(spans) {
		return ""
	}
	return s[spans[from].Start:spans[to-1].End]
}

// NormalizeWhitespace lowercases and collapses whitespace, used for entity
// normalized_name / normalized_alias lookups.
func NormalizeWhitespace(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, " ")
}
