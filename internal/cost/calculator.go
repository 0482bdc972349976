package cost

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
)

const currencyUSD = "USD"

// DefaultPricing returns the built-in pricing table, cost per 1000 tokens
// in USD.
func DefaultPricing() map[string]schemas.ModelPricing {
	return map[string]schemas.ModelPricing{
		"gpt-4o":           {InputPerK: 0.005, OutputPerK: 0.015, Currency: currencyUSD},
		"gpt-4o-mini":      {InputPerK: 0.00015, OutputPerK: 0.0006, Currency: currencyUSD},
		"gpt-4-turbo":      {InputPerK: 0.01, OutputPerK: 0.03, Currency: currencyUSD},
		"gpt-3.5-turbo":    {InputPerK: 0.0005, OutputPerK: 0.0015, Currency: currencyUSD},
		"gemini-2.5-pro":   {InputPerK: 0.00125, OutputPerK: 0.01, Currency: currencyUSD},
		"gemini-2.5-flash": {InputPerK: 0.0003, OutputPerK: 0.0025, Currency: currencyUSD},
		"gemini-2.0-flash": {InputPerK: 0.0001, OutputPerK: 0.0004, Currency: currencyUSD},
		"gemini-1.5-flash": {InputPerK: 0.000075, OutputPerK: 0.0003, Currency: currencyUSD},
	}
}

// Calculator prices token usage against a per-model table. An unknown model
// yields zero cost and a warning, never an error.
type Calculator struct {
	pricing map[string]schemas.ModelPricing
	logger  *zap.Logger
}

// NewCalculator creates a calculator with the built-in pricing table.
func NewCalculator(logger *zap.Logger) *Calculator {
	return &Calculator{
		pricing: DefaultPricing(),
		logger:  logger.Named("cost_calculator"),
	}
}

// Calculate prices the given usage.
func (c *Calculator) Calculate(usage schemas.TokenUsage) schemas.CostMetrics {
	pricing, ok := c.pricingFor(usage.Model)
	if !ok {
		c.logger.Warn("No pricing known for model; recording zero cost.",
			zap.String("model", usage.Model))
		return schemas.CostMetrics{TokenUsage: usage, Currency: currencyUSD}
	}

	estimated := float64(usage.PromptTokens)/1000.0*pricing.InputPerK +
		float64(usage.CompletionTokens)/1000.0*pricing.OutputPerK

	return schemas.CostMetrics{
		TokenUsage:    usage,
		EstimatedCost: estimated,
		Currency:      pricing.Currency,
		Pricing:       pricing,
	}
}

// CostUnder reprices the usage as if it had run on a different model.
// The second return is false when that model has no pricing entry.
func (c *Calculator) CostUnder(model string, prompt, completion int) (float64, bool) {
	pricing, ok := c.pricingFor(model)
	if !ok {
		return 0, false
	}
	return float64(prompt)/1000.0*pricing.InputPerK +
		float64(completion)/1000.0*pricing.OutputPerK, true
}

// Models returns every priced model name, sorted.
func (c *Calculator) Models() []string {
	models := make([]string, 0, len(c.pricing))
	for name := range c.pricing {
		models = append(models, name)
	}
	sort.Strings(models)
	return models
}

// pricingFor resolves a model to its pricing entry. Versioned names such as
// "gpt-4o-2024-08-06" fall back to their longest matching base entry.
func (c *Calculator) pricingFor(model string) (schemas.ModelPricing, bool) {
	if p, ok := c.pricing[model]; ok {
		return p, true
	}
	best := ""
	for key := range c.pricing {
		if strings.HasPrefix(model, key) && len(key) > len(best) {
			best = key
		}
	}
	if best != "" {
		return c.pricing[best], true
	}
	return schemas.ModelPricing{}, false
}

// FormatCost renders a USD amount with precision scaled to its magnitude.
func FormatCost(cost float64) string {
	switch {
	case cost < 0.001:
		return fmt.Sprintf("$%.4f", cost)
	case cost < 0.01:
		return fmt.Sprintf("$%.3f", cost)
	default:
		return fmt.Sprintf("$%.2f", cost)
	}
}

// FormatTokens renders a token count compactly.
func FormatTokens(tokens int) string {
	switch {
	case tokens < 1000:
		return fmt.Sprintf("%d", tokens)
	case tokens < 1000000:
		return fmt.Sprintf("%.1fK", float64(tokens)/1000.0)
	default:
		return fmt.Sprintf("%.1fM", float64(tokens)/1000000.0)
	}
}
