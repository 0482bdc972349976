package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/hiroksarker/testgenius-ai-sub000/internal/cost"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/observability"
)

var costJSON bool

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Summarize recorded test spend and check budgets.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showCosts(cmd.Context())
	},
}

func init() {
	costCmd.Flags().BoolVar(&costJSON, "json", false, "emit the report as JSON")
	rootCmd.AddCommand(costCmd)
}

func showCosts(ctx context.Context) error {
	if !appCfg.Cost.Enabled {
		return errors.New("cost tracking is disabled; set cost.enabled in the config")
	}

	logger := observability.GetLogger()
	tracker, closeTracker, err := buildTracker(ctx, logger)
	if err != nil {
		return err
	}
	defer closeTracker()

	rep, err := tracker.GenerateReport(ctx)
	if err != nil {
		return err
	}

	if costJSON {
		return printReportJSON(rep)
	}
	printReport(rep)

	warnings, err := tracker.CheckBudgets(ctx)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Printf("WARNING: %s budget exceeded: spent %s of %s\n",
			w.Period, cost.FormatCost(w.Spent), cost.FormatCost(w.Limit))
	}
	return nil
}

func printReportJSON(rep *cost.Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printReport(rep *cost.Report) {
	fmt.Printf("Cost report (%s)\n", rep.GeneratedAt.Format("2006-01-02 15:04 MST"))
	fmt.Printf("  Tests recorded: %d\n", rep.TestCount)
	fmt.Printf("  Total spend:    %s\n", cost.FormatCost(rep.TotalCost))
	fmt.Printf("  Average/test:   %s\n", cost.FormatCost(rep.AverageCost))

	if len(rep.ByModel) > 0 {
		fmt.Println("\nBy model:")
		models := make([]string, 0, len(rep.ByModel))
		for m := range rep.ByModel {
			models = append(models, m)
		}
		sort.Strings(models)
		for _, m := range models {
			mc := rep.ByModel[m]
			fmt.Printf("  %-24s %s across %d tests (%s tokens)\n",
				m, cost.FormatCost(mc.Cost), mc.Tests, cost.FormatTokens(mc.Tokens))
		}
	}

	if len(rep.TopExpensive) > 0 {
		fmt.Println("\nMost expensive tests:")
		for _, rec := range rep.TopExpensive {
			fmt.Printf("  %-30s %s (%s, %d calls)\n",
				rec.TestName, cost.FormatCost(rec.Cost), rec.Model, rec.Calls)
		}
	}

	if len(rep.Recommendations) > 0 {
		fmt.Println("\nRecommendations:")
		for _, r := range rep.Recommendations {
			fmt.Printf("  %s: switch %s -> %s to save %s per run\n",
				r.TestName, r.CurrentModel, r.SuggestedModel, cost.FormatCost(r.Savings))
		}
	}
}
