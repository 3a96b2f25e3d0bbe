// Package embedclient wraps the OpenAI embeddings endpoint with the retry
// and batching rules spec.md §6 places on the embedding provider contract.
package embedclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/sembank/memoryd/internal/apperr"
	"github.com/sembank/memoryd/internal/config"
	"github.com/sembank/memoryd/internal/limiter"
	"github.com/sembank/memoryd/internal/observability"
)

const maxBatchSize = 100

// Client embeds text using an OpenAI-compatible embeddings endpoint.
type Client struct {
	oai       openai.Client
	model     string
	dimension int
	timeout   time.Duration
	retries   int
	limiter   limiter.Limiter
}

func New(cfg config.EmbedConfig, lim limiter.Limiter) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(observability.NewHTTPClient(nil)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		oai:       openai.NewClient(opts...),
		model:     cfg.Model,
		dimension: cfg.Dimensions,
		timeout:   cfg.Timeout,
		retries:   cfg.RetryMax,
		limiter:   lim,
	}
}

// Embed embeds a batch of texts, splitting into sub-batches of at most 100.
// The length of each text is not checked: a text over the provider's
// per-text token limit is sent as is and fails at the provider. Results are
// returned in the same order as the input.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, batch...)
	}
	return results, nil
}

func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	if c.limiter != nil {
		release, err := c.limiter.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	op := func() ([][]float32, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.oai.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
			Model:          openai.EmbeddingModel(c.model),
			Dimensions:     openai.Int(int64(c.dimension)),
			EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
		})
		if err != nil {
			if isTransient(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		if len(resp.Data) != len(batch) {
			return nil, backoff.Permanent(fmt.Errorf("embedclient: expected %d embeddings, got %d", len(batch), len(resp.Data)))
		}

		out := make([][]float32, len(resp.Data))
		for _, d := range resp.Data {
			vec := make([]float32, len(d.Embedding))
			for i, v := range d.Embedding {
				vec[i] = float32(v)
			}
			out[d.Index] = vec
		}
		return out, nil
	}

	result, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(c.retries)+1))
	if err != nil {
		return nil, apperr.Transient("embedclient: embed batch", err)
	}
	return result, nil
}

// isTransient classifies retryable failures: timeouts, rate limits, and
// 5xx responses. Anything else (bad request, auth failure) is permanent.
func isTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"):
		return true
	case strings.Contains(msg, "500"), strings.Contains(msg, "502"),
		strings.Contains(msg, "503"), strings.Contains(msg, "504"):
		return true
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"),
		strings.Contains(msg, "connection reset"):
		return true
	}
	return false
}
