package harness

import (
	"context"
	"encoding/json"

	"github.com/sembank/memoryd/internal/llmclient"
)

const judgeSystemPrompt = `You check whether a described fact is supported by a block of recalled text. Return strict JSON matching: {"supported": true|false}. Answer false when the text does not clearly support the fact.`

// ProviderJudge adapts an llmclient.Provider (the same one wired for
// extraction) into a Judge, so the harness needs no dedicated
// LLM-as-judge dependency.
func ProviderJudge(p llmclient.Provider) Judge {
	return JudgeFunc(func(ctx context.Context, expectedNarrative, actual string) (bool, error) {
		prompt := "Fact: " + expectedNarrative + "\n\nRecalled text:\n" + actual
		raw, err := p.Complete(ctx, judgeSystemPrompt, prompt)
		if err != nil {
			return false, err
		}
		var out struct {
			Supported bool `json:"supported"`
		}
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return false, err
		}
		return out.Supported, nil
	})
}
