// Package llmclient wraps the chat-completion providers used by the
// two-phase extraction pipeline (spec.md §4.4) behind one narrow
// interface: a single strict-JSON completion call with a bounded timeout.
package llmclient

import "context"

// Provider issues one strict-JSON chat completion. Implementations must
// request temperature 0 and a JSON-object response format so the caller
// can rely on the output being parseable JSON (schema conformance is
// still validated by the caller).
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
