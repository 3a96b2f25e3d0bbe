package llmclient

import (
	"context"

	"github.com/sembank/memoryd/internal/limiter"
)

// WithLimiter wraps p so every Complete call first acquires a slot from l,
// bounding how many requests are in flight against the provider at once
// (spec.md §5's configurable concurrency limit).
func WithLimiter(p Provider, l limiter.Limiter) Provider {
	return &limitedProvider{p: p, l: l}
}

type limitedProvider struct {
	p Provider
	l limiter.Limiter
}

func (lp *limitedProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	release, err := lp.l.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()
	return lp.p.Complete(ctx, systemPrompt, userPrompt)
}
