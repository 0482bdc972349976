package llmclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/hiroksarker/testgenius-ai-sub000/internal/config"
)

func TestNewClient(t *testing.T) {
	t.Run("openai provider", func(t *testing.T) {
		cfg := validLLMConfig()
		client, err := NewClient(context.Background(), cfg)
		require.NoError(t, err)
		assert.IsType(t, &OpenAIClient{}, client)
		assert.Equal(t, "gpt-4o", client.Model())
	})

	t.Run("gemini provider", func(t *testing.T) {
		cfg := validLLMConfig()
		cfg.Provider = config.ProviderGemini
		cfg.Model = "gemini-2.5-flash"
		client, err := NewClient(context.Background(), cfg)
		require.NoError(t, err)
		assert.IsType(t, &GeminiClient{}, client)
		assert.Equal(t, "gemini-2.5-flash", client.Model())
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := validLLMConfig()
		cfg.Provider = "cohere"
		_, err := NewClient(context.Background(), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cohere")
	})

	t.Run("empty provider", func(t *testing.T) {
		cfg := validLLMConfig()
		cfg.Provider = ""
		_, err := NewClient(context.Background(), cfg)
		require.Error(t, err)
	})
}

func TestNewLimiter(t *testing.T) {
	t.Run("zero disables limiting", func(t *testing.T) {
		l := newLimiter(0)
		assert.Equal(t, rate.Inf, l.Limit())
	})

	t.Run("converts per minute to per second", func(t *testing.T) {
		l := newLimiter(30)
		assert.InDelta(t, 0.5, float64(l.Limit()), 1e-9)
		assert.Equal(t, 1, l.Burst())
	})

	t.Run("negative disables limiting", func(t *testing.T) {
		l := newLimiter(-5)
		assert.Equal(t, rate.Inf, l.Limit())
	})
}
