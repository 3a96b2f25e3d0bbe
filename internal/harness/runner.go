package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Judge scores whether actual satisfies the fact described by expected.
// Satisfied by llmclient.Provider (via JudgeFunc) so the harness introduces
// no new model dependency beyond the one already wired for extraction.
type Judge interface {
	Judge(ctx context.Context, expectedNarrative, actual string) (bool, error)
}

// JudgeFunc adapts a plain function to Judge.
type JudgeFunc func(ctx context.Context, expectedNarrative, actual string) (bool, error)

func (f JudgeFunc) Judge(ctx context.Context, expectedNarrative, actual string) (bool, error) {
	return f(ctx, expectedNarrative, actual)
}

// Client drives the live RPC facade over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: 60 * time.Second}}
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("harness: %s: %d %s", path, resp.StatusCode, e.Message)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type rememberResult struct {
	ArtifactID string `json:"artifact_id"`
	Status     string `json:"status"`
}

type recallResultItem struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type recallResponse struct {
	Results []recallResultItem `json:"results"`
}

// QueryResult is one query's outcome.
type QueryResult struct {
	Query     string
	Hit       bool
	Missing   []string
	Judged    *bool
}

// Report summarizes one fixture run.
type Report struct {
	TotalQueries int
	Hits         int
	Results      []QueryResult
}

// Run remembers every fixture document, then runs every query and scores
// its results against ExpectedDocuments (membership, always checked) and
// ExpectedNarrative (judge-scored, only when judge is non-nil).
func Run(ctx context.Context, client *Client, f *Fixture, judge Judge) (*Report, error) {
	docIDs := make(map[string]string, len(f.Documents))
	for _, d := range f.Documents {
		var res rememberResult
		err := client.post(ctx, "/remember", map[string]any{
			"artifact_type": d.ArtifactType,
			"source_system": d.SourceSystem,
			"source_id":     d.SourceID,
			"content":       d.Content,
		}, &res)
		if err != nil {
			return nil, fmt.Errorf("harness: remember %q: %w", d.Name, err)
		}
		docIDs[d.Name] = res.ArtifactID
	}

	report := &Report{TotalQueries: len(f.Queries)}
	for _, q := range f.Queries {
		var res recallResponse
		if err := client.post(ctx, "/recall", map[string]any{"query": q.Text}, &res); err != nil {
			return nil, fmt.Errorf("harness: recall %q: %w", q.Name, err)
		}

		got := make(map[string]bool, len(res.Results))
		var content strings.Builder
		for _, r := range res.Results {
			got[r.ID] = true
			content.WriteString(r.Content)
			content.WriteString("\n")
		}

		qr := QueryResult{Query: q.Name}
		hit := true
		for _, want := range q.ExpectedDocuments {
			if !got[docIDs[want]] {
				hit = false
				qr.Missing = append(qr.Missing, want)
			}
		}

		if hit && judge != nil && q.ExpectedNarrative != "" {
			ok, err := judge.Judge(ctx, q.ExpectedNarrative, content.String())
			if err == nil {
				qr.Judged = &ok
				hit = hit && ok
			}
		}

		qr.Hit = hit
		if hit {
			report.Hits++
		}
		report.Results = append(report.Results, qr)
	}
	return report, nil
}
