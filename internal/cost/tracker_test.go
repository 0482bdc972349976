package cost

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hiroksarker/testgenius-ai-sub000/internal/config"
)

func newFileTracker(t *testing.T, cfg config.CostConfig) *Tracker {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	tracker, err := NewTracker(store, NewCalculator(zap.NewNop()), cfg, zap.NewNop())
	require.NoError(t, err)
	return tracker
}

func record(name, model string, prompt, completion int, cost float64, ts time.Time) TestCostRecord {
	return TestCostRecord{
		TestID:           name + "-id",
		TestName:         name,
		Model:            model,
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
		Calls:            1,
		Cost:             cost,
		Currency:         "USD",
		Timestamp:        ts,
	}
}

func TestNewTracker_NilDependencies(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	calc := NewCalculator(zap.NewNop())

	_, err = NewTracker(nil, calc, config.CostConfig{}, zap.NewNop())
	assert.Error(t, err)
	_, err = NewTracker(store, nil, config.CostConfig{}, zap.NewNop())
	assert.Error(t, err)
	_, err = NewTracker(store, calc, config.CostConfig{}, nil)
	assert.Error(t, err)
}

func TestTrackTestCost_AppendsAndBucketsByDay(t *testing.T) {
	ctx := context.Background()
	tracker := newFileTracker(t, config.CostConfig{})

	day1 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)

	require.NoError(t, tracker.TrackTestCost(ctx, record("login", "gpt-4o", 1000, 500, 0.0125, day1)))
	require.NoError(t, tracker.TrackTestCost(ctx, record("checkout", "gpt-4o", 2000, 1000, 0.025, day1)))
	require.NoError(t, tracker.TrackTestCost(ctx, record("signup", "gpt-4o-mini", 1000, 500, 0.00045, day2)))

	records, err := tracker.store.LoadTestCosts(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "login", records[0].TestName)

	days, err := tracker.store.LoadDailyAggregates(ctx)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2025-03-10", days[0].Day)
	assert.InDelta(t, 0.0375, days[0].TotalCost, 1e-9)
	assert.Equal(t, 2, days[0].TestCount)
	assert.Equal(t, "2025-03-11", days[1].Day)
	assert.Equal(t, 1, days[1].TestCount)
}

func TestGenerateReport_TotalsAndGrouping(t *testing.T) {
	ctx := context.Background()
	tracker := newFileTracker(t, config.CostConfig{TopExpensive: 2, MinSavings: 0.001})

	ts := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, tracker.TrackTestCost(ctx, record("a", "gpt-4o", 1000, 1000, 0.020, ts)))
	require.NoError(t, tracker.TrackTestCost(ctx, record("b", "gpt-4o", 2000, 2000, 0.040, ts)))
	require.NoError(t, tracker.TrackTestCost(ctx, record("c", "gpt-4o-mini", 1000, 1000, 0.00075, ts)))

	report, err := tracker.GenerateReport(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, report.TestCount)
	assert.InDelta(t, 0.06075, report.TotalCost, 1e-9)
	assert.InDelta(t, 0.06075/3, report.AverageCost, 1e-9)

	require.Len(t, report.TopExpensive, 2)
	assert.Equal(t, "b", report.TopExpensive[0].TestName)
	assert.Equal(t, "a", report.TopExpensive[1].TestName)

	require.Contains(t, report.ByModel, "gpt-4o")
	assert.Equal(t, 2, report.ByModel["gpt-4o"].Tests)
	assert.InDelta(t, 0.060, report.ByModel["gpt-4o"].Cost, 1e-9)
}

func TestGenerateReport_TopExpensiveTiesKeepLedgerOrder(t *testing.T) {
	ctx := context.Background()
	tracker := newFileTracker(t, config.CostConfig{TopExpensive: 3})

	ts := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, tracker.TrackTestCost(ctx, record("first", "gpt-4o", 1000, 1000, 0.020, ts)))
	require.NoError(t, tracker.TrackTestCost(ctx, record("second", "gpt-4o", 1000, 1000, 0.020, ts)))
	require.NoError(t, tracker.TrackTestCost(ctx, record("third", "gpt-4o", 1000, 1000, 0.020, ts)))

	report, err := tracker.GenerateReport(ctx)
	require.NoError(t, err)

	require.Len(t, report.TopExpensive, 3)
	assert.Equal(t, "first", report.TopExpensive[0].TestName)
	assert.Equal(t, "second", report.TopExpensive[1].TestName)
	assert.Equal(t, "third", report.TopExpensive[2].TestName)
}

func TestGenerateReport_RecommendsCheaperModel(t *testing.T) {
	ctx := context.Background()
	tracker := newFileTracker(t, config.CostConfig{TopExpensive: 5, MinSavings: 0.001})

	ts := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, tracker.TrackTestCost(ctx, record("pricey", "gpt-4-turbo", 10000, 10000, 0.40, ts)))

	report, err := tracker.GenerateReport(ctx)
	require.NoError(t, err)

	require.NotEmpty(t, report.Recommendations)
	rec := report.Recommendations[0]
	assert.Equal(t, "pricey", rec.TestName)
	assert.Equal(t, "gpt-4-turbo", rec.CurrentModel)
	assert.NotEqual(t, "gpt-4-turbo", rec.SuggestedModel)
	assert.Greater(t, rec.Savings, 0.001)
	assert.Less(t, rec.ProjectedCost, rec.CurrentCost)
	// The best alternative is the cheapest priced model.
	assert.Equal(t, "gemini-1.5-flash", rec.SuggestedModel)
}

func TestGenerateReport_NoRecommendationBelowMinSavings(t *testing.T) {
	ctx := context.Background()
	tracker := newFileTracker(t, config.CostConfig{TopExpensive: 5, MinSavings: 10.0})

	ts := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, tracker.TrackTestCost(ctx, record("cheap", "gpt-4o", 1000, 1000, 0.020, ts)))

	report, err := tracker.GenerateReport(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Recommendations)
}

func TestCheckBudgets(t *testing.T) {
	ctx := context.Background()

	t.Run("warns on daily and monthly overruns", func(t *testing.T) {
		tracker := newFileTracker(t, config.CostConfig{DailyBudget: 0.01, MonthlyBudget: 0.01})

		now := time.Now().UTC()
		require.NoError(t, tracker.TrackTestCost(ctx, record("today", "gpt-4o", 1000, 1000, 0.020, now)))

		warnings, err := tracker.CheckBudgets(ctx)
		require.NoError(t, err)
		require.Len(t, warnings, 2)
		assert.Equal(t, "daily", warnings[0].Period)
		assert.Equal(t, "monthly", warnings[1].Period)
		assert.InDelta(t, 0.020, warnings[0].Spent, 1e-9)
	})

	t.Run("old spend counts against monthly only", func(t *testing.T) {
		tracker := newFileTracker(t, config.CostConfig{DailyBudget: 0.01, MonthlyBudget: 0.01})

		tenDaysAgo := time.Now().UTC().AddDate(0, 0, -10)
		require.NoError(t, tracker.TrackTestCost(ctx, record("older", "gpt-4o", 1000, 1000, 0.020, tenDaysAgo)))

		warnings, err := tracker.CheckBudgets(ctx)
		require.NoError(t, err)
		require.Len(t, warnings, 1)
		assert.Equal(t, "monthly", warnings[0].Period)
	})

	t.Run("silent within budget", func(t *testing.T) {
		tracker := newFileTracker(t, config.CostConfig{DailyBudget: 5.0, MonthlyBudget: 50.0})

		require.NoError(t, tracker.TrackTestCost(ctx, record("tiny", "gpt-4o", 100, 100, 0.002, time.Now().UTC())))

		warnings, err := tracker.CheckBudgets(ctx)
		require.NoError(t, err)
		assert.Empty(t, warnings)
	})
}
