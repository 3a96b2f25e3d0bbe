package llmclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sembank/memoryd/internal/config"
)

type fakeProvider struct {
	response string
	err      error
}

func (f *fakeProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.response, f.err
}

func TestExtractChunk_ValidResponse(t *testing.T) {
	resp := `{"entities":[{"name":"Jordan","type":"person","aliases":[]}],
	  "events":[{"category":"Decision","subject":"proj-1","actors":["Jordan"],
	    "event_time":null,"narrative":"Jordan decided to ship","confidence":0.9,
	    "evidence":[{"quote":"we decided to ship on Friday","start_char":10,"end_char":40}]}]}`
	e := NewExtractor(&fakeProvider{response: resp})

	out, err := e.ExtractChunk(context.Background(), "some chunk text")
	require.NoError(t, err)
	require.Len(t, out.Events, 1)
	assert.Equal(t, "Decision", out.Events[0].Category)
}

func TestExtractChunk_RejectsUnknownCategory(t *testing.T) {
	resp := `{"entities":[],"events":[{"category":"Bogus","subject":"x","actors":[],
	  "narrative":"n","confidence":0.5,"evidence":[{"quote":"q","start_char":0,"end_char":1}]}]}`
	e := NewExtractor(&fakeProvider{response: resp})

	_, err := e.ExtractChunk(context.Background(), "chunk")
	assert.Error(t, err)
}

func TestExtractChunk_RejectsEventWithNoEvidence(t *testing.T) {
	resp := `{"entities":[],"events":[{"category":"Decision","subject":"x","actors":[],
	  "narrative":"n","confidence":0.5,"evidence":[]}]}`
	e := NewExtractor(&fakeProvider{response: resp})

	_, err := e.ExtractChunk(context.Background(), "chunk")
	assert.Error(t, err)
}

func TestExtractChunk_RejectsOverlongQuote(t *testing.T) {
	longQuote := ""
	for i := 0; i < 30; i++ {
		longQuote += "word "
	}
	resp := `{"entities":[],"events":[{"category":"Decision","subject":"x","actors":[],
	  "narrative":"n","confidence":0.5,"evidence":[{"quote":"` + longQuote + `","start_char":0,"end_char":1}]}]}`
	e := NewExtractor(&fakeProvider{response: resp})

	_, err := e.ExtractChunk(context.Background(), "chunk")
	assert.Error(t, err)
}

func TestCanonicalize_ValidResponse(t *testing.T) {
	resp := `{"events":[{"category":"Commitment","subject":"proj-1","actors":["Jordan"],
	  "event_time":null,"narrative":"merged event","confidence":0.8,
	  "evidence":[{"chunk_id":"c1","quote":"we will ship","start_char":0,"end_char":12}]}]}`
	e := NewExtractor(&fakeProvider{response: resp})

	out, err := e.Canonicalize(context.Background(), map[string]ChunkExtraction{
		"c1": {Events: []ExtractedEvent{{Category: "Commitment", Narrative: "n"}}},
	})
	require.NoError(t, err)
	require.Len(t, out.Events, 1)
	assert.Equal(t, "c1", out.Events[0].Evidence[0].ChunkID)
}

func TestNew_UnknownProviderErrors(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "bogus"})
	assert.Error(t, err)
}

func TestNew_GoogleProviderDispatches(t *testing.T) {
	p, err := New(config.LLMConfig{Provider: "google", APIKey: "test-key"})
	require.NoError(t, err)
	_, ok := p.(*GoogleProvider)
	assert.True(t, ok)
}
