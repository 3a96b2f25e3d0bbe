package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sembank/memoryd/internal/apperr"
	"github.com/sembank/memoryd/internal/config"
)

// New builds a Provider from config, selecting the SDK by cfg.Provider.
func New(cfg config.LLMConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		return NewOpenAI(cfg), nil
	case "anthropic":
		return NewAnthropic(cfg), nil
	case "google":
		return NewGoogle(cfg)
	default:
		return nil, fmt.Errorf("llmclient: unknown provider %q", cfg.Provider)
	}
}

// ExtractedEntity is one entity mention surfaced by Prompt A.
type ExtractedEntity struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Aliases []string `json:"aliases"`
}

// ExtractedEvidence mirrors spec.md §4.4's evidence object: a chunk-local
// quote bounded by character offsets.
type ExtractedEvidence struct {
	Quote     string `json:"quote"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
}

// ExtractedEvent is one event surfaced by Prompt A, before canonicalization.
type ExtractedEvent struct {
	Category   string              `json:"category"`
	Subject    string              `json:"subject"`
	Actors     []string            `json:"actors"`
	EventTime  *string             `json:"event_time"`
	Narrative  string              `json:"narrative"`
	Evidence   []ExtractedEvidence `json:"evidence"`
	Confidence float64             `json:"confidence"`
}

// ChunkExtraction is Prompt A's response shape.
type ChunkExtraction struct {
	Entities []ExtractedEntity `json:"entities"`
	Events   []ExtractedEvent  `json:"events"`
}

// CanonicalEvidence carries the evidence's originating chunk alongside the
// quote and offsets, since Prompt B merges evidence across chunks.
type CanonicalEvidence struct {
	ChunkID   string `json:"chunk_id"`
	Quote     string `json:"quote"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
}

// CanonicalEvent is one deduplicated event from Prompt B.
type CanonicalEvent struct {
	Category   string              `json:"category"`
	Subject    string              `json:"subject"`
	Actors     []string            `json:"actors"`
	EventTime  *string             `json:"event_time"`
	Narrative  string              `json:"narrative"`
	Evidence   []CanonicalEvidence `json:"evidence"`
	Confidence float64             `json:"confidence"`
}

// CanonicalExtraction is Prompt B's response shape.
type CanonicalExtraction struct {
	Events []CanonicalEvent `json:"events"`
}

// Extractor runs the two-phase extraction named in spec.md §4.4 against a
// Provider, validating each response against its expected schema.
type Extractor struct {
	provider Provider
}

func NewExtractor(p Provider) *Extractor {
	return &Extractor{provider: p}
}

const promptASystem = `You extract structured facts from a single chunk of text. Return strict JSON matching:
{"entities":[{"name":"","type":"person|org|project|object|place|other","aliases":[""]}],
 "events":[{"category":"Commitment|Execution|Decision|Collaboration|QualityRisk|Feedback|Change|Stakeholder",
            "subject":"","actors":[""],"event_time":null,"narrative":"",
            "evidence":[{"quote":"","start_char":0,"end_char":0}],"confidence":0.0}]}
Only report facts directly supported by the chunk text. Evidence offsets are character offsets into the chunk as given. Each quote must be 25 words or fewer.`

const promptBSystem = `You canonicalize per-chunk extraction results for one document revision into a deduplicated event list. Merge two events only when they describe the same occurrence; keep them separate when in doubt. Return strict JSON matching:
{"events":[{"category":"Commitment|Execution|Decision|Collaboration|QualityRisk|Feedback|Change|Stakeholder",
            "subject":"","actors":[""],"event_time":null,"narrative":"",
            "evidence":[{"chunk_id":"","quote":"","start_char":0,"end_char":0}],"confidence":0.0}]}
Preserve every evidence entry's chunk_id and offsets exactly as given in the input.`

// ExtractChunk runs Prompt A against one chunk's text.
func (e *Extractor) ExtractChunk(ctx context.Context, chunkText string) (*ChunkExtraction, error) {
	raw, err := e.provider.Complete(ctx, promptASystem, chunkText)
	if err != nil {
		return nil, err
	}
	var out ChunkExtraction
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, apperr.Transient("llmclient: prompt A schema validation failed", err)
	}
	if err := validateChunkExtraction(&out); err != nil {
		return nil, apperr.Transient("llmclient: prompt A schema validation failed", err)
	}
	return &out, nil
}

// Canonicalize runs Prompt B against the accumulated per-chunk results for
// one artifact revision. chunkPayloads maps chunk id to its parsed Prompt A
// result, so the model can echo chunk_id back on each evidence entry.
func (e *Extractor) Canonicalize(ctx context.Context, chunkPayloads map[string]ChunkExtraction) (*CanonicalExtraction, error) {
	input := struct {
		Chunks map[string]ChunkExtraction `json:"chunks"`
	}{Chunks: chunkPayloads}
	b, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("llmclient: marshal canonicalize input: %w", err)
	}

	raw, err := e.provider.Complete(ctx, promptBSystem, string(b))
	if err != nil {
		return nil, err
	}
	var out CanonicalExtraction
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, apperr.Transient("llmclient: prompt B schema validation failed", err)
	}
	if err := validateCanonicalExtraction(&out); err != nil {
		return nil, apperr.Transient("llmclient: prompt B schema validation failed", err)
	}
	return &out, nil
}

const confirmMatchSystem = `You decide whether two entity descriptions refer to the same real-world person, organization, project, object, or place. Return strict JSON matching: {"same_entity": true|false, "confidence": 0.0}. Be conservative: answer false when uncertain.`

// ConfirmMatch asks whether a candidate entity is the same real-world
// referent described in prompt, used by the entity resolver's
// embedding-candidate disambiguation step (spec.md §4.7).
func (e *Extractor) ConfirmMatch(ctx context.Context, prompt string) (bool, error) {
	raw, err := e.provider.Complete(ctx, confirmMatchSystem, prompt)
	if err != nil {
		return false, err
	}
	var out struct {
		SameEntity bool    `json:"same_entity"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return false, apperr.Transient("llmclient: confirm-match schema validation failed", err)
	}
	return out.SameEntity && out.Confidence >= 0.8, nil
}

func validateChunkExtraction(c *ChunkExtraction) error {
	for _, ev := range c.Events {
		if err := validateEventShape(ev.Category, ev.Narrative, len(ev.Evidence)); err != nil {
			return err
		}
		for _, ed := range ev.Evidence {
			if err := validateEvidenceShape(ed.Quote, ed.StartChar, ed.EndChar); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateCanonicalExtraction(c *CanonicalExtraction) error {
	for _, ev := range c.Events {
		if err := validateEventShape(ev.Category, ev.Narrative, len(ev.Evidence)); err != nil {
			return err
		}
		for _, ed := range ev.Evidence {
			if err := validateEvidenceShape(ed.Quote, ed.StartChar, ed.EndChar); err != nil {
				return err
			}
		}
	}
	return nil
}

var validCategories = map[string]bool{
	"Commitment": true, "Execution": true, "Decision": true, "Collaboration": true,
	"QualityRisk": true, "Feedback": true, "Change": true, "Stakeholder": true,
}

func validateEventShape(category, narrative string, evidenceCount int) error {
	if !validCategories[category] {
		return fmt.Errorf("invalid event category %q", category)
	}
	if strings.TrimSpace(narrative) == "" {
		return fmt.Errorf("event narrative is empty")
	}
	if evidenceCount == 0 {
		return fmt.Errorf("event has no evidence")
	}
	return nil
}

func validateEvidenceShape(quote string, startChar, endChar int) error {
	if strings.TrimSpace(quote) == "" {
		return fmt.Errorf("evidence quote is empty")
	}
	if len(strings.Fields(quote)) > 25 {
		return fmt.Errorf("evidence quote exceeds 25 words")
	}
	if endChar <= startChar {
		return fmt.Errorf("evidence end_char must be greater than start_char")
	}
	return nil
}
