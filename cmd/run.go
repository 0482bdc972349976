package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/json-iterator/go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/agent"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/browser"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/cost"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/engine"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/llmclient"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/observability"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/report"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/resolver"
)

var (
	runFile  string
	runDir   string
	runTask  string
	runURL   string
	runName  string
	runJUnit string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a test intent file, a directory of intents, or a free-text task.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTests(cmd.Context())
	},
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "JSON test intent file")
	runCmd.Flags().StringVarP(&runDir, "dir", "d", "", "directory of JSON test intent files, run as a suite")
	runCmd.Flags().StringVar(&runTask, "task", "", "free-text task to run without an intent file")
	runCmd.Flags().StringVar(&runURL, "url", "", "site URL for --task")
	runCmd.Flags().StringVar(&runName, "name", "ad-hoc task", "test name for --task")
	runCmd.Flags().StringVar(&runJUnit, "junit", "", "write a JUnit XML report to this path")
	rootCmd.AddCommand(runCmd)
}

func runTests(ctx context.Context) error {
	logger := observability.GetLogger()

	intents, err := collectIntents()
	if err != nil {
		return err
	}

	tracker, closeTracker, err := buildTracker(ctx, logger)
	if err != nil {
		return err
	}
	defer closeTracker()

	manager := browser.NewManager(appCfg.Browser)
	defer func() {
		if err := manager.Shutdown(context.Background()); err != nil {
			logger.Warn("Browser shutdown failed.", zap.Error(err))
		}
	}()

	factory := engineFactory(manager, tracker, logger)

	suite, err := engine.NewSuite(factory, appCfg.Engine.Concurrency, logger)
	if err != nil {
		return err
	}
	sessions, err := suite.Run(ctx, intents)
	if err != nil {
		return err
	}

	printSummary(sessions)

	if runJUnit != "" {
		writer, err := report.NewJUnitWriter(logger)
		if err != nil {
			return err
		}
		if err := writer.Write(sessions, runJUnit); err != nil {
			return err
		}
	}

	if tracker != nil {
		if warnings, err := tracker.CheckBudgets(ctx); err == nil {
			for _, w := range warnings {
				fmt.Printf("WARNING: %s budget exceeded: spent %s of %s\n",
					w.Period, cost.FormatCost(w.Spent), cost.FormatCost(w.Limit))
			}
		}
	}

	for _, s := range sessions {
		if s == nil || s.Status != schemas.SessionPassed {
			return errors.New("one or more tests failed")
		}
	}
	return nil
}

// engineFactory builds one fully wired engine per test: its own browser
// session, resolver cache, and agent conversation.
func engineFactory(manager *browser.Manager, tracker *cost.Tracker, logger *zap.Logger) engine.EngineFactory {
	return func(ctx context.Context) (*engine.Engine, func(), error) {
		session, err := manager.NewSession(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open browser session: %w", err)
		}
		cleanup := func() {
			if err := session.Close(context.Background()); err != nil {
				logger.Warn("Browser session close failed.", zap.Error(err))
			}
		}

		res, err := resolver.New(session)
		if err != nil {
			cleanup()
			return nil, nil, err
		}

		// Sessions are priced even when the ledger is disabled.
		calc := cost.NewCalculator(logger)
		var observer engine.CostObserver
		if tracker != nil {
			observer = tracker
		}

		eng, err := engine.New(session, res, nil, calc, observer, appCfg.Engine, logger)
		if err != nil {
			cleanup()
			return nil, nil, err
		}

		if appCfg.LLM.Provider != "" && appCfg.Engine.UseAgent {
			client, err := llmclient.NewClient(ctx, appCfg.LLM)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("could not build LLM client: %w", err)
			}
			controller, err := agent.NewController(client, eng, appCfg.Agent)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			eng.SetAgent(controller)
		}
		return eng, cleanup, nil
	}
}

// buildTracker assembles the configured cost ledger backend. Returns a nil
// tracker when cost accounting is disabled.
func buildTracker(ctx context.Context, logger *zap.Logger) (*cost.Tracker, func(), error) {
	if !appCfg.Cost.Enabled {
		return nil, func() {}, nil
	}

	var store cost.Store
	closeStore := func() {}

	switch appCfg.Cost.Backend {
	case "postgres":
		pool, err := pgxpool.New(ctx, appCfg.Cost.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("could not connect to the cost database: %w", err)
		}
		pg, err := cost.NewPGStore(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		store = pg
		closeStore = pool.Close
	default:
		fs, err := cost.NewFileStore(appCfg.Cost.Dir, logger)
		if err != nil {
			return nil, nil, err
		}
		store = fs
	}

	tracker, err := cost.NewTracker(store, cost.NewCalculator(logger), appCfg.Cost, logger)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return tracker, closeStore, nil
}

// collectIntents resolves the run flags to the list of intents to execute.
func collectIntents() ([]schemas.TestIntent, error) {
	switch {
	case runTask != "":
		return []schemas.TestIntent{{Name: runName, Task: runTask, URL: runURL}}, nil

	case runFile != "":
		intent, err := loadIntent(runFile)
		if err != nil {
			return nil, err
		}
		return []schemas.TestIntent{intent}, nil

	case runDir != "":
		entries, err := os.ReadDir(runDir)
		if err != nil {
			return nil, fmt.Errorf("could not read intent directory: %w", err)
		}
		var intents []schemas.TestIntent
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			intent, err := loadIntent(filepath.Join(runDir, entry.Name()))
			if err != nil {
				return nil, err
			}
			intents = append(intents, intent)
		}
		if len(intents) == 0 {
			return nil, fmt.Errorf("no intent files found in %s", runDir)
		}
		sort.Slice(intents, func(i, j int) bool { return intents[i].Name < intents[j].Name })
		return intents, nil

	default:
		return nil, errors.New("one of --file, --dir, or --task is required")
	}
}

func loadIntent(path string) (schemas.TestIntent, error) {
	var intent schemas.TestIntent
	data, err := os.ReadFile(path)
	if err != nil {
		return intent, fmt.Errorf("could not read intent file: %w", err)
	}
	if err := json.Unmarshal(data, &intent); err != nil {
		return intent, fmt.Errorf("could not parse intent file %s: %w", path, err)
	}
	if intent.Name == "" {
		intent.Name = strings.TrimSuffix(filepath.Base(path), ".json")
	}
	if len(intent.Steps) == 0 && intent.Task == "" {
		return intent, fmt.Errorf("intent %s has neither steps nor a task", path)
	}
	return intent, nil
}

func printSummary(sessions []*schemas.TestSession) {
	var passed, failed int
	for _, s := range sessions {
		if s == nil {
			continue
		}
		mark := "PASS"
		if s.Status != schemas.SessionPassed {
			mark = "FAIL"
			failed++
		} else {
			passed++
		}
		fmt.Printf("%s  %-30s  steps=%d errors=%d", mark, s.Name, len(s.Steps), len(s.Errors))
		if s.Cost != nil {
			fmt.Printf("  cost=%s", cost.FormatCost(s.Cost.EstimatedCost))
		}
		fmt.Println()
	}
	fmt.Printf("\n%d passed, %d failed\n", passed, failed)
}
