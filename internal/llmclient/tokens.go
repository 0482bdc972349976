package llmclient

import (
	"time"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
)

// estimateTokens approximates the token count of a text as ceil(len/4), the
// usual rough bytes-per-token ratio for English prose.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// estimateUsage builds a TokenUsage for providers that did not report one.
// Tool definitions and call arguments are ignored; the estimate only has to
// keep the cost ledger from recording zero.
func estimateUsage(model string, messages []schemas.Message, completion string) *schemas.TokenUsage {
	prompt := 0
	for _, m := range messages {
		prompt += estimateTokens(m.Content)
	}
	completionTokens := estimateTokens(completion)
	return &schemas.TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completionTokens,
		TotalTokens:      prompt + completionTokens,
		Model:            model,
		Timestamp:        time.Now().UTC(),
	}
}
