package llmclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/sembank/memoryd/internal/apperr"
	"github.com/sembank/memoryd/internal/config"
	"github.com/sembank/memoryd/internal/observability"
)

// OpenAIProvider calls an OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	sdk   openai.Client
	model string
}

func NewOpenAI(cfg config.LLMConfig) *OpenAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(observability.NewHTTPClient(nil)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &OpenAIProvider{sdk: openai.NewClient(opts...), model: cfg.Model}
}

func (p *OpenAIProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := p.sdk.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		reqJSON, _ := json.Marshal(map[string]string{"system": systemPrompt, "user": userPrompt})
		observability.LoggerWithTrace(ctx).Error().Err(err).Str("model", p.model).
			RawJSON("request", observability.RedactJSON(reqJSON)).Msg("llmclient: openai completion failed")
		return "", apperr.Transient("llmclient: openai completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperr.Permanent("llmclient: openai returned no choices", fmt.Errorf("model=%s", p.model))
	}
	return resp.Choices[0].Message.Content, nil
}
