// Package engine turns a test intent into browser actions through a layered
// fallback chain: an agentic controller first, the heuristic fast-path
// resolver second, and an exhaustive selector sweep last. The engine owns
// the active test session log and is the only writer to it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/agent"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/config"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/cost"
)

// -- Interfaces for Dependency Inversion --

// ElementResolver is the fast-path lookup the engine falls back to when the
// agent tier is unavailable or fails.
type ElementResolver interface {
	Detect(ctx context.Context, description, elementType string) (*schemas.ElementMatch, error)
	ClearCache()
}

// TaskRunner is the agentic controller surface the engine drives. A nil
// TaskRunner disables the agent tier entirely.
type TaskRunner interface {
	RunTask(ctx context.Context, task string) (*agent.Result, error)
	TotalUsage() schemas.TokenUsage
	Calls() []schemas.AgentCall
	ClearSession()
}

// CostObserver receives the finished test's cost record. A nil observer
// disables cost accounting.
type CostObserver interface {
	TrackTestCost(ctx context.Context, rec cost.TestCostRecord) error
}

// Engine executes one test at a time against one browser session. It is not
// safe for concurrent ExecuteTest calls; run concurrent tests on separate
// engine instances.
type Engine struct {
	driver   schemas.Driver
	resolver ElementResolver
	agent    TaskRunner
	calc     *cost.Calculator
	costs    CostObserver
	cfg      config.EngineConfig
	logger   *zap.Logger

	mu      sync.Mutex
	session *schemas.TestSession
}

// New validates the required dependencies and builds an engine. The agent
// runner and cost pair may be nil; the corresponding tier or side effect is
// then skipped.
func New(
	driver schemas.Driver,
	resolver ElementResolver,
	agentRunner TaskRunner,
	calc *cost.Calculator,
	costs CostObserver,
	cfg config.EngineConfig,
	logger *zap.Logger,
) (*Engine, error) {
	if driver == nil {
		return nil, errors.New("driver cannot be nil")
	}
	if resolver == nil {
		return nil, errors.New("resolver cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if costs != nil && calc == nil {
		return nil, errors.New("cost observer requires a calculator")
	}
	return &Engine{
		driver:   driver,
		resolver: resolver,
		agent:    agentRunner,
		calc:     calc,
		costs:    costs,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "engine")),
	}, nil
}

// SetAgent installs the agentic controller after construction. The engine
// doubles as the controller's toolkit, so one of the two links has to be
// made late. Must be called before ExecuteTest.
func (e *Engine) SetAgent(runner TaskRunner) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.agent = runner
}

// ExecuteTest runs the whole intent and returns the finalized session. The
// session is returned even when the test fails; the error return is reserved
// for precondition violations.
func (e *Engine) ExecuteTest(ctx context.Context, intent schemas.TestIntent) (*schemas.TestSession, error) {
	session, err := e.beginSession(intent)
	if err != nil {
		return nil, err
	}
	defer e.endSession()

	e.logger.Info("Test starting.",
		zap.String("session_id", session.ID),
		zap.String("name", session.Name),
		zap.Int("steps", len(intent.Steps)))

	if e.agent != nil {
		e.agent.ClearSession()
	}

	aborted := false
	if len(intent.Steps) > 0 {
		aborted = e.runSteps(ctx, intent)
	} else {
		e.runFreeTask(ctx, intent)
	}

	e.finalize(ctx, session, aborted)
	e.persistSession(session)
	return session, nil
}

// beginSession enforces the one-live-session invariant and installs a fresh
// session.
func (e *Engine) beginSession(intent schemas.TestIntent) (*schemas.TestSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		return nil, ErrSessionActive
	}

	id := intent.ID
	if id == "" {
		id = uuid.NewString()
	}
	e.session = &schemas.TestSession{
		ID:        id,
		Name:      intent.Name,
		URL:       intent.URL,
		Status:    schemas.SessionRunning,
		StartedAt: time.Now().UTC(),
	}
	return e.session, nil
}

func (e *Engine) endSession() {
	e.mu.Lock()
	e.session = nil
	e.mu.Unlock()
}

// runSteps walks the plan in order. It reports whether a critical failure
// aborted the remaining steps.
func (e *Engine) runSteps(ctx context.Context, intent schemas.TestIntent) bool {
	for i, step := range intent.Steps {
		step.Value = expandTestData(step.Value, intent.TestData)
		if step.Action == schemas.ActionNavigate && step.Target == "" {
			step.Target = intent.URL
		}

		err := e.runStep(ctx, step)
		if err == nil {
			continue
		}

		e.recordError(fmt.Sprintf("step %d (%s): %v", i+1, step.Action, err))
		if e.isCritical(step) {
			e.logger.Error("Critical step failed; aborting remaining plan.",
				zap.Int("step", i+1),
				zap.String("action", string(step.Action)),
				zap.Error(err))
			for _, skipped := range intent.Steps[i+1:] {
				e.logStep(describeStep(skipped), "skipped: critical step failed earlier", schemas.StepPending)
			}
			return true
		}
		e.logger.Warn("Step failed; continuing with the rest of the plan.",
			zap.Int("step", i+1), zap.Error(err))
	}
	return false
}

// runFreeTask handles an intent with no steps: the task string goes straight
// to the agentic controller.
func (e *Engine) runFreeTask(ctx context.Context, intent schemas.TestIntent) {
	if e.agent == nil {
		e.recordError("intent has no steps and no agent is configured")
		e.logStep(intent.Task, "no agent available for free-text task", schemas.StepFailed)
		return
	}

	if intent.URL != "" {
		if err := e.doNavigate(ctx, intent.URL); err != nil {
			e.recordError(fmt.Sprintf("initial navigation: %v", err))
			e.logStep("Navigate to "+intent.URL, err.Error(), schemas.StepFailed)
			e.captureFailureShot(ctx, "navigation-failure")
			return
		}
		e.logStep("Navigate to "+intent.URL, "page loaded", schemas.StepSuccess)
	}

	result, err := e.agent.RunTask(ctx, intent.Task)
	if err != nil {
		e.recordError(fmt.Sprintf("agent task: %v", err))
		e.logStep(intent.Task, err.Error(), schemas.StepFailed)
		e.captureFailureShot(ctx, "task-failure")
		return
	}
	if !result.Success {
		reason := result.FinalMessage
		if reason == "" {
			reason = string(result.Reason)
		}
		e.recordError("agent task did not succeed: " + reason)
		e.logStep(intent.Task, reason, schemas.StepFailed)
		e.captureFailureShot(ctx, "task-failure")
		return
	}
	e.logStep(intent.Task, result.FinalMessage, schemas.StepSuccess)
}

// finalize stamps the session outcome and folds the run's model usage into
// the cost ledger.
func (e *Engine) finalize(ctx context.Context, session *schemas.TestSession, aborted bool) {
	session.FinishedAt = time.Now().UTC()
	switch {
	case aborted:
		session.Status = schemas.SessionAborted
	case len(session.Errors) > 0:
		session.Status = schemas.SessionFailed
	default:
		session.Status = schemas.SessionPassed
	}

	if e.agent != nil && e.calc != nil {
		usage := e.agent.TotalUsage()
		if usage.TotalTokens > 0 {
			metrics := e.calc.Calculate(usage)
			session.Cost = &metrics

			if e.costs != nil {
				rec := cost.TestCostRecord{
					TestID:           session.ID,
					TestName:         session.Name,
					Model:            usage.Model,
					PromptTokens:     usage.PromptTokens,
					CompletionTokens: usage.CompletionTokens,
					TotalTokens:      usage.TotalTokens,
					Calls:            len(e.agent.Calls()),
					Cost:             metrics.EstimatedCost,
					Currency:         metrics.Currency,
					Timestamp:        session.FinishedAt,
				}
				if err := e.costs.TrackTestCost(ctx, rec); err != nil {
					e.logger.Warn("Failed to record test cost.", zap.Error(err))
				}
			}
		}
	}

	e.logger.Info("Test finished.",
		zap.String("session_id", session.ID),
		zap.String("status", string(session.Status)),
		zap.Int("steps_logged", len(session.Steps)),
		zap.Int("errors", len(session.Errors)))
}

// persistSession writes the finalized session as JSON under the results
// directory. Persistence failures are logged, never fatal: the in-memory
// session is still returned to the caller.
func (e *Engine) persistSession(session *schemas.TestSession) {
	if e.cfg.ResultsDir == "" {
		return
	}
	if err := os.MkdirAll(e.cfg.ResultsDir, 0o755); err != nil {
		e.logger.Warn("Could not create results directory.", zap.Error(err))
		return
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		e.logger.Warn("Could not marshal session.", zap.Error(err))
		return
	}
	path := filepath.Join(e.cfg.ResultsDir, session.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		e.logger.Warn("Could not write session file.", zap.Error(err))
		return
	}
	e.logger.Debug("Session persisted.", zap.String("path", path))
}

// -- Session log side effects --

// logStep appends one entry to the active session log.
func (e *Engine) logStep(description, result string, status schemas.StepStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return
	}
	e.session.Steps = append(e.session.Steps, schemas.ExecutionStep{
		Description: description,
		Result:      result,
		Status:      status,
		Timestamp:   time.Now().UTC(),
	})
}

func (e *Engine) recordError(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return
	}
	e.session.Errors = append(e.session.Errors, msg)
}

func (e *Engine) recordScreenshot(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return
	}
	e.session.Screenshots = append(e.session.Screenshots, path)
}

// captureFailureShot grabs a screenshot after an uncaught failure so the
// report shows what the page looked like. Best effort.
func (e *Engine) captureFailureShot(ctx context.Context, name string) {
	if _, err := e.saveScreenshot(ctx, name); err != nil {
		e.logger.Debug("Failure screenshot not captured.", zap.Error(err))
	}
}

// saveScreenshot captures the page and writes it under the screenshot
// directory with a timestamped name, recording the path on the session.
func (e *Engine) saveScreenshot(ctx context.Context, name string) (string, error) {
	data, err := e.driver.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("screenshot capture failed: %w", err)
	}
	if name == "" {
		name = "screenshot"
	}
	dir := e.cfg.ScreenshotDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("could not create screenshot directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.png", sanitizeName(name), time.Now().UTC().Format("20060102-150405.000")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("could not write screenshot: %w", err)
	}
	e.recordScreenshot(path)
	return path, nil
}

// sanitizeName keeps screenshot file names filesystem-safe.
func sanitizeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		case r == ' ':
			out = append(out, '-')
		}
	}
	if len(out) == 0 {
		return "screenshot"
	}
	return string(out)
}

// expandTestData substitutes {{key}} placeholders from the intent's test
// data. A value that is exactly a known key is replaced too, so step files
// can reference data by bare name.
func expandTestData(value string, data map[string]string) string {
	if value == "" || len(data) == 0 {
		return value
	}
	if v, ok := data[value]; ok {
		return v
	}
	for k, v := range data {
		value = strings.ReplaceAll(value, "{{"+k+"}}", v)
	}
	return value
}
