package harness

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ScoresHitsAndMisses(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /remember", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]any{"artifact_id": "art_" + req["source_id"].(string), "status": "stored"})
	})
	mux.HandleFunc("POST /recall", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		var results []recallResultItem
		if req["query"] == "hit" {
			results = []recallResultItem{{ID: "art_1", Content: "the answer"}}
		}
		json.NewEncoder(w).Encode(recallResponse{Results: results})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fixture := &Fixture{
		Documents: []Document{{Name: "doc1", SourceID: "1"}},
		Queries: []Query{
			{Name: "q_hit", Text: "hit", ExpectedDocuments: []string{"doc1"}},
			{Name: "q_miss", Text: "miss", ExpectedDocuments: []string{"doc1"}},
		},
	}

	client := NewClient(server.URL)
	report, err := Run(context.Background(), client, fixture, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalQueries)
	assert.Equal(t, 1, report.Hits)
	assert.True(t, report.Results[0].Hit)
	assert.False(t, report.Results[1].Hit)
	assert.Equal(t, []string{"doc1"}, report.Results[1].Missing)
}
