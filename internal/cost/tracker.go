package cost

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hiroksarker/testgenius-ai-sub000/internal/config"
)

// Tracker maintains the durable cost ledgers and answers budget and report
// queries over them.
type Tracker struct {
	store  Store
	calc   *Calculator
	cfg    config.CostConfig
	logger *zap.Logger
}

// NewTracker wires a tracker to its store and calculator.
func NewTracker(store Store, calc *Calculator, cfg config.CostConfig, logger *zap.Logger) (*Tracker, error) {
	if store == nil {
		return nil, fmt.Errorf("store must not be nil")
	}
	if calc == nil {
		return nil, fmt.Errorf("calculator must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Tracker{
		store:  store,
		calc:   calc,
		cfg:    cfg,
		logger: logger.Named("cost_tracker"),
	}, nil
}

// TrackTestCost appends one test's record to the ledger and folds it into
// the day bucket.
func (t *Tracker) TrackTestCost(ctx context.Context, rec TestCostRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.Currency == "" {
		rec.Currency = currencyUSD
	}

	if err := t.store.AppendTestCost(ctx, rec); err != nil {
		return fmt.Errorf("failed to record test cost: %w", err)
	}
	if err := t.store.AddDailyCost(ctx, DayOf(rec.Timestamp), rec.Cost); err != nil {
		return fmt.Errorf("failed to update cost history: %w", err)
	}

	t.logger.Debug("Test cost recorded.",
		zap.String("test", rec.TestName),
		zap.String("model", rec.Model),
		zap.String("cost", FormatCost(rec.Cost)),
		zap.String("tokens", FormatTokens(rec.TotalTokens)),
	)
	return nil
}

// BudgetWarning reports one exceeded spending limit. Warnings are advisory;
// they never stop a run.
type BudgetWarning struct {
	Period string  `json:"period"`
	Limit  float64 `json:"limit"`
	Spent  float64 `json:"spent"`
}

// CheckBudgets compares today's and the trailing 30 days' spend against the
// configured limits.
func (t *Tracker) CheckBudgets(ctx context.Context) ([]BudgetWarning, error) {
	days, err := t.store.LoadDailyAggregates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cost history: %w", err)
	}

	now := time.Now().UTC()
	today := DayOf(now)
	cutoff := DayOf(now.AddDate(0, 0, -30))

	var todaySpend, monthSpend float64
	for _, d := range days {
		if d.Day == today {
			todaySpend += d.TotalCost
		}
		if d.Day >= cutoff {
			monthSpend += d.TotalCost
		}
	}

	var warnings []BudgetWarning
	if t.cfg.DailyBudget > 0 && todaySpend > t.cfg.DailyBudget {
		warnings = append(warnings, BudgetWarning{Period: "daily", Limit: t.cfg.DailyBudget, Spent: todaySpend})
	}
	if t.cfg.MonthlyBudget > 0 && monthSpend > t.cfg.MonthlyBudget {
		warnings = append(warnings, BudgetWarning{Period: "monthly", Limit: t.cfg.MonthlyBudget, Spent: monthSpend})
	}

	for _, w := range warnings {
		t.logger.Warn("Cost budget exceeded.",
			zap.String("period", w.Period),
			zap.String("limit", FormatCost(w.Limit)),
			zap.String("spent", FormatCost(w.Spent)),
		)
	}
	return warnings, nil
}
