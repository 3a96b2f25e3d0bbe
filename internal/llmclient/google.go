package llmclient

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"

	"github.com/sembank/memoryd/internal/apperr"
	"github.com/sembank/memoryd/internal/config"
	"github.com/sembank/memoryd/internal/observability"
)

// GoogleProvider calls the Gemini API. Like Anthropic, genai has no
// response-format parameter for arbitrary models, so the JSON-object
// contract is carried entirely by the system prompt plus ResponseMIMEType.
type GoogleProvider struct {
	sdk   *genai.Client
	model string
}

func NewGoogle(cfg config.LLMConfig) (*GoogleProvider, error) {
	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}

	httpOpts := genai.HTTPOptions{}
	if cfg.Timeout > 0 {
		t := cfg.Timeout
		httpOpts.Timeout = &t
	}
	if base := strings.TrimSuffix(cfg.BaseURL, "/"); base != "" {
		httpOpts.BaseURL = base + "/"
	}

	sdk, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		HTTPClient:  observability.NewHTTPClient(nil),
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("llmclient: init google client: %w", err)
	}
	return &GoogleProvider{sdk: sdk, model: model}, nil
}

func (p *GoogleProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := p.sdk.Models.GenerateContent(ctx, p.model,
		[]*genai.Content{{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: userPrompt}},
		}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr[float32](0),
		})
	if err != nil {
		observability.LoggerWithTrace(ctx).Error().Err(err).Str("model", p.model).
			Msg("llmclient: google completion failed")
		return "", apperr.Transient("llmclient: google completion", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", apperr.Permanent("llmclient: google returned no candidates", fmt.Errorf("model=%s", p.model))
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", apperr.Permanent("llmclient: google returned no text content", fmt.Errorf("model=%s", p.model))
	}
	return sb.String(), nil
}
