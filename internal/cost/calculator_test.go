package cost

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
)

func TestCalculate_KnownModel(t *testing.T) {
	calc := NewCalculator(zap.NewNop())

	metrics := calc.Calculate(schemas.TokenUsage{
		PromptTokens:     1000,
		CompletionTokens: 1000,
		TotalTokens:      2000,
		Model:            "gpt-4o",
		Timestamp:        time.Now(),
	})

	// 1000/1000 * 0.005 + 1000/1000 * 0.015
	assert.InDelta(t, 0.020, metrics.EstimatedCost, 1e-9)
	assert.Equal(t, "USD", metrics.Currency)
	assert.InDelta(t, 0.005, metrics.Pricing.InputPerK, 1e-9)
	assert.InDelta(t, 0.015, metrics.Pricing.OutputPerK, 1e-9)
}

func TestCalculate_UnknownModelIsZeroWithWarning(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	calc := NewCalculator(zap.New(core))

	metrics := calc.Calculate(schemas.TokenUsage{
		PromptTokens:     5000,
		CompletionTokens: 5000,
		Model:            "clairvoyant-9000",
	})

	assert.Zero(t, metrics.EstimatedCost)
	assert.Equal(t, "USD", metrics.Currency)
	require.Equal(t, 1, logs.Len(), "unknown model should log exactly one warning")
	assert.Contains(t, logs.All()[0].Message, "No pricing known")
}

func TestCalculate_VersionedModelFallsBack(t *testing.T) {
	calc := NewCalculator(zap.NewNop())

	versioned := calc.Calculate(schemas.TokenUsage{
		PromptTokens:     1000,
		CompletionTokens: 1000,
		Model:            "gpt-4o-2024-08-06",
	})
	base := calc.Calculate(schemas.TokenUsage{
		PromptTokens:     1000,
		CompletionTokens: 1000,
		Model:            "gpt-4o",
	})

	assert.InDelta(t, base.EstimatedCost, versioned.EstimatedCost, 1e-9)
}

func TestCalculate_LongestPrefixWins(t *testing.T) {
	calc := NewCalculator(zap.NewNop())

	mini := calc.Calculate(schemas.TokenUsage{
		PromptTokens:     1000,
		CompletionTokens: 1000,
		Model:            "gpt-4o-mini-2024-07-18",
	})

	// Must match gpt-4o-mini, not the shorter gpt-4o prefix.
	assert.InDelta(t, 0.00015+0.0006, mini.EstimatedCost, 1e-9)
}

func TestCostUnder(t *testing.T) {
	calc := NewCalculator(zap.NewNop())

	alt, ok := calc.CostUnder("gpt-4o-mini", 1000, 1000)
	require.True(t, ok)
	assert.InDelta(t, 0.00075, alt, 1e-9)

	_, ok = calc.CostUnder("no-such-model", 1000, 1000)
	assert.False(t, ok)
}

func TestModels_Sorted(t *testing.T) {
	calc := NewCalculator(zap.NewNop())

	models := calc.Models()
	require.NotEmpty(t, models)
	assert.IsIncreasing(t, models)
	assert.Contains(t, models, "gpt-4o")
}

func TestFormatCost(t *testing.T) {
	assert.Equal(t, "$0.0003", FormatCost(0.0003))
	assert.Equal(t, "$0.005", FormatCost(0.005))
	assert.Equal(t, "$1.25", FormatCost(1.25))
}

func TestFormatTokens(t *testing.T) {
	assert.Equal(t, "512", FormatTokens(512))
	assert.Equal(t, "1.5K", FormatTokens(1500))
	assert.Equal(t, "2.0M", FormatTokens(2000000))
}
