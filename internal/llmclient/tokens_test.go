package llmclient

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
)

func TestEstimateTokens(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		expected int
	}{
		{"empty", "", 0},
		{"exact multiple", "abcd", 1},
		{"rounds up", "abcde", 2},
		{"single char", "a", 1},
		{"kilobyte", strings.Repeat("x", 1000), 250},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, estimateTokens(tc.text))
		})
	}
}

func TestEstimateUsage(t *testing.T) {
	messages := []schemas.Message{
		{Role: schemas.RoleSystem, Content: strings.Repeat("s", 40)},
		{Role: schemas.RoleUser, Content: strings.Repeat("u", 40)},
	}

	usage := estimateUsage("gpt-4o", messages, strings.Repeat("c", 20))
	require.NotNil(t, usage)

	assert.Equal(t, 20, usage.PromptTokens)
	assert.Equal(t, 5, usage.CompletionTokens)
	assert.Equal(t, 25, usage.TotalTokens)
	assert.Equal(t, "gpt-4o", usage.Model)
	assert.False(t, usage.Timestamp.IsZero())
}
