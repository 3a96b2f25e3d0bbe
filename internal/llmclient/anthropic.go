package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sembank/memoryd/internal/apperr"
	"github.com/sembank/memoryd/internal/config"
	"github.com/sembank/memoryd/internal/observability"
)

const anthropicMaxTokens int64 = 4096

// AnthropicProvider calls the Anthropic Messages API, instructed via the
// system prompt to return a single JSON object (Anthropic has no
// response-format parameter, unlike OpenAI).
type AnthropicProvider struct {
	sdk   anthropic.Client
	model string
}

func NewAnthropic(cfg config.LLMConfig) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(observability.NewHTTPClient(nil)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	return &AnthropicProvider{sdk: anthropic.NewClient(opts...), model: model}
}

func (p *AnthropicProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := p.sdk.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: anthropicMaxTokens,
		Temperature: anthropic.Float(0),
		System:    []anthropic.TextBlockParam{{Text: systemPrompt + "\n\nRespond with a single JSON object and nothing else."}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt))},
	})
	if err != nil {
		reqJSON, _ := json.Marshal(map[string]string{"system": systemPrompt, "user": userPrompt})
		observability.LoggerWithTrace(ctx).Error().Err(err).Str("model", p.model).
			RawJSON("request", observability.RedactJSON(reqJSON)).Msg("llmclient: anthropic completion failed")
		return "", apperr.Transient("llmclient: anthropic completion", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	if sb.Len() == 0 {
		return "", apperr.Permanent("llmclient: anthropic returned no text content", fmt.Errorf("model=%s", p.model))
	}
	return sb.String(), nil
}
