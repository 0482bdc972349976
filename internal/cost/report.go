package cost

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// ModelCost aggregates spend for one model.
type ModelCost struct {
	Cost   float64 `json:"cost"`
	Tests  int     `json:"tests"`
	Tokens int     `json:"tokens"`
}

// Recommendation suggests a cheaper model for one recorded test.
type Recommendation struct {
	TestName       string  `json:"test_name"`
	CurrentModel   string  `json:"current_model"`
	SuggestedModel string  `json:"suggested_model"`
	CurrentCost    float64 `json:"current_cost"`
	ProjectedCost  float64 `json:"projected_cost"`
	Savings        float64 `json:"savings"`
}

// Report is a point-in-time summary of the cost ledger.
type Report struct {
	GeneratedAt     time.Time            `json:"generated_at"`
	Currency        string               `json:"currency"`
	TestCount       int                  `json:"test_count"`
	TotalCost       float64              `json:"total_cost"`
	AverageCost     float64              `json:"average_cost"`
	TopExpensive    []TestCostRecord     `json:"top_expensive"`
	ByModel         map[string]ModelCost `json:"by_model"`
	Recommendations []Recommendation     `json:"recommendations"`
}

// GenerateReport summarizes every ledger record: totals, the most expensive
// tests (ties keep ledger order), per-model spend, and cheaper-model
// recommendations whose savings clear the configured minimum.
func (t *Tracker) GenerateReport(ctx context.Context) (*Report, error) {
	records, err := t.store.LoadTestCosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load test costs: %w", err)
	}

	report := &Report{
		GeneratedAt: time.Now().UTC(),
		Currency:    currencyUSD,
		TestCount:   len(records),
		ByModel:     make(map[string]ModelCost),
	}

	for _, rec := range records {
		report.TotalCost += rec.Cost
		mc := report.ByModel[rec.Model]
		mc.Cost += rec.Cost
		mc.Tests++
		mc.Tokens += rec.TotalTokens
		report.ByModel[rec.Model] = mc
	}
	if len(records) > 0 {
		report.AverageCost = report.TotalCost / float64(len(records))
	}

	report.TopExpensive = t.topExpensive(records)
	report.Recommendations = t.recommendations(records)
	return report, nil
}

func (t *Tracker) topExpensive(records []TestCostRecord) []TestCostRecord {
	n := t.cfg.TopExpensive
	if n <= 0 || len(records) == 0 {
		return nil
	}

	sorted := make([]TestCostRecord, len(records))
	copy(sorted, records)
	// Stable keeps ledger order for equal costs.
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Cost > sorted[j].Cost })

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// recommendations reprices each record under every other priced model and
// keeps the single best alternative when it saves more than the minimum.
func (t *Tracker) recommendations(records []TestCostRecord) []Recommendation {
	var recs []Recommendation
	for _, rec := range records {
		best := Recommendation{}
		for _, model := range t.calc.Models() {
			if model == rec.Model {
				continue
			}
			alt, ok := t.calc.CostUnder(model, rec.PromptTokens, rec.CompletionTokens)
			if !ok {
				continue
			}
			savings := rec.Cost - alt
			if savings <= t.cfg.MinSavings {
				continue
			}
			if best.SuggestedModel == "" || savings > best.Savings {
				best = Recommendation{
					TestName:       rec.TestName,
					CurrentModel:   rec.Model,
					SuggestedModel: model,
					CurrentCost:    rec.Cost,
					ProjectedCost:  alt,
					Savings:        savings,
				}
			}
		}
		if best.SuggestedModel != "" {
			recs = append(recs, best)
		}
	}
	return recs
}
