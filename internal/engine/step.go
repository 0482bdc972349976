package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/resolver"
)

// tier is one rung of the per-step fallback chain. run reports whether the
// tier applied to the step at all; an unapplied tier is skipped without
// counting as a failure.
type tier struct {
	name string
	run  func(ctx context.Context, step schemas.Step) (applied bool, err error)
}

// tiers returns the fallback chain in order: agent, fast path, exhaustive.
func (e *Engine) tiers() []tier {
	return []tier{
		{name: "agent", run: e.agentTier},
		{name: "fast-path", run: e.fastPathTier},
		{name: "exhaustive", run: e.exhaustiveTier},
	}
}

// runStep executes one step with bounded recovery and appends its outcome to
// the session log. The returned error is the last failure; the caller
// decides whether it aborts the plan.
func (e *Engine) runStep(ctx context.Context, step schemas.Step) error {
	desc := describeStep(step)

	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			e.recover(ctx, lastErr, attempt)
		}
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		lastErr = e.attemptStep(ctx, step)
		if lastErr == nil {
			e.logStep(desc, "completed", schemas.StepSuccess)
			return nil
		}
		e.logger.Warn("Step attempt failed.",
			zap.String("step", desc),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
	}

	e.logStep(desc, lastErr.Error(), schemas.StepFailed)
	e.captureFailureShot(ctx, "step-failure")
	return lastErr
}

// attemptStep walks the fallback chain once.
func (e *Engine) attemptStep(ctx context.Context, step schemas.Step) error {
	var lastErr error
	applied := false
	for _, t := range e.tiers() {
		ok, err := t.run(ctx, step)
		if !ok {
			continue
		}
		applied = true
		if err == nil {
			return nil
		}
		lastErr = err
		e.logger.Debug("Tier failed; falling back.",
			zap.String("tier", t.name),
			zap.String("action", string(step.Action)),
			zap.Error(err))
	}
	if !applied {
		return fmt.Errorf("%w: %q", ErrUnknownAction, step.Action)
	}
	return lastErr
}

// recover pauses between attempts and refreshes the page when the failure
// looks navigation- or timing-related.
func (e *Engine) recover(ctx context.Context, lastErr error, attempt int) {
	if e.cfg.RetryPause > 0 {
		_ = e.driver.Pause(ctx, e.cfg.RetryPause)
	}
	if refreshWorthy(lastErr) {
		e.logger.Debug("Refreshing page before retry.", zap.Int("attempt", attempt))
		if err := e.driver.Refresh(ctx); err != nil {
			e.logger.Debug("Refresh failed.", zap.Error(err))
		}
		e.resolver.ClearCache()
		_ = e.settle(ctx)
	}
}

// -- Tier: agent --

// agentTier renders the step as a one-line instruction and hands it to the
// controller. Not applied when no controller is configured or the step is a
// local artifact action the model cannot perform better than the engine.
func (e *Engine) agentTier(ctx context.Context, step schemas.Step) (bool, error) {
	if e.agent == nil || !e.cfg.UseAgent {
		return false, nil
	}
	switch step.Action {
	case schemas.ActionScreenshot, schemas.ActionWait, schemas.ActionSmartWait:
		return false, nil
	}

	instruction := renderInstruction(step)
	if instruction == "" {
		return false, nil
	}

	result, err := e.agent.RunTask(ctx, instruction)
	if err != nil {
		return true, fmt.Errorf("agent attempt failed: %w", err)
	}
	if !result.Success {
		reason := result.FinalMessage
		if reason == "" {
			reason = string(result.Reason)
		}
		return true, fmt.Errorf("agent could not complete step: %s", reason)
	}
	return true, nil
}

// renderInstruction converts a step into the short natural-language task the
// agent receives.
func renderInstruction(step schemas.Step) string {
	switch step.Action {
	case schemas.ActionNavigate:
		return fmt.Sprintf("Navigate to %s", step.Target)
	case schemas.ActionClick:
		return fmt.Sprintf("Click on %s", step.Target)
	case schemas.ActionFill, schemas.ActionType:
		return fmt.Sprintf("Fill %s with %q", step.Target, step.Value)
	case schemas.ActionClear:
		return fmt.Sprintf("Clear the value of %s", step.Target)
	case schemas.ActionSelect:
		return fmt.Sprintf("Select %q in %s", step.Value, step.Target)
	case schemas.ActionUpload:
		return fmt.Sprintf("Upload the file %q using %s", step.Value, step.Target)
	case schemas.ActionVerify:
		expected := extractExpected(step)
		if expected != "" {
			return fmt.Sprintf("Verify that %s shows %q", step.Target, expected)
		}
		return fmt.Sprintf("Verify that %s is present and visible", step.Target)
	default:
		return ""
	}
}

// -- Tier: fast path --

// fastPathTier resolves the element heuristically and dispatches the action
// directly on the driver.
func (e *Engine) fastPathTier(ctx context.Context, step schemas.Step) (bool, error) {
	switch step.Action {
	case schemas.ActionNavigate:
		return true, e.doNavigate(ctx, step.Target)
	case schemas.ActionScreenshot:
		_, err := e.saveScreenshot(ctx, step.Target)
		return true, err
	case schemas.ActionWait, schemas.ActionSmartWait:
		return true, e.doWait(ctx, step)
	case schemas.ActionVerify:
		return true, e.verify(ctx, step)
	case schemas.ActionClick, schemas.ActionFill, schemas.ActionType,
		schemas.ActionClear, schemas.ActionSelect, schemas.ActionUpload:
		match, err := e.resolver.Detect(ctx, step.Target, inferElementType(step.Action))
		if err != nil {
			return true, err
		}
		return true, e.dispatchOn(ctx, step, match.Element)
	default:
		return false, nil
	}
}

// inferElementType maps an action kind to the element type hint the
// resolver scopes its strategies with.
func inferElementType(action schemas.ActionKind) string {
	switch action {
	case schemas.ActionClick:
		return resolver.ElementTypeButton
	case schemas.ActionFill, schemas.ActionType, schemas.ActionClear:
		return resolver.ElementTypeInput
	case schemas.ActionSelect:
		return resolver.ElementTypeSelect
	case schemas.ActionUpload:
		return resolver.ElementTypeFile
	default:
		return resolver.ElementTypeAny
	}
}

// dispatchOn performs the step's action against a resolved element. A stale
// handle is re-resolved and retried exactly once, outside the retry counter.
func (e *Engine) dispatchOn(ctx context.Context, step schemas.Step, el *schemas.Element) error {
	err := e.performAction(ctx, step, el)
	if err == nil || !errors.Is(err, schemas.ErrStaleElement) {
		return err
	}

	e.logger.Debug("Stale element; re-resolving once.",
		zap.String("target", step.Target),
		zap.String("selector", el.Selector))
	e.resolver.ClearCache()
	match, detErr := e.resolver.Detect(ctx, step.Target, inferElementType(step.Action))
	if detErr != nil {
		return fmt.Errorf("re-resolve after stale element failed: %w", detErr)
	}
	return e.performAction(ctx, step, match.Element)
}

func (e *Engine) performAction(ctx context.Context, step schemas.Step, el *schemas.Element) error {
	switch step.Action {
	case schemas.ActionClick:
		return e.doClick(ctx, step, el)
	case schemas.ActionFill, schemas.ActionType:
		if err := e.driver.ClearValue(ctx, el); err != nil {
			return err
		}
		return e.driver.SetValue(ctx, el, step.Value)
	case schemas.ActionClear:
		return e.driver.ClearValue(ctx, el)
	case schemas.ActionSelect:
		return e.doSelect(ctx, step, el)
	case schemas.ActionUpload:
		return e.driver.SetFiles(ctx, el, []string{step.Value})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, step.Action)
	}
}

// doNavigate loads the URL, waits for the page to settle, and drops the
// resolver cache since every cached handle now points at a dead DOM.
func (e *Engine) doNavigate(ctx context.Context, url string) error {
	if strings.TrimSpace(url) == "" {
		return errors.New("navigate step has no URL")
	}
	if err := e.driver.Navigate(ctx, url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	e.resolver.ClearCache()
	return e.settle(ctx)
}

// doClick scrolls the element into view when it is not yet clickable, then
// clicks. Critical steps get an extra settle and a document-ready poll,
// since they usually trigger a navigation.
func (e *Engine) doClick(ctx context.Context, step schemas.Step, el *schemas.Element) error {
	clickable, err := e.driver.IsClickable(ctx, el)
	if err != nil {
		return err
	}
	if !clickable {
		if err := e.driver.ScrollIntoView(ctx, el); err != nil {
			return err
		}
	}
	if err := e.driver.Click(ctx, el); err != nil {
		return err
	}
	if e.isCritical(step) {
		if err := e.settle(ctx); err != nil {
			return err
		}
		e.waitDocumentReady(ctx)
		e.resolver.ClearCache()
	}
	return nil
}

// doSelect picks an option by visible text, falling back to index selection
// when the value is numeric.
func (e *Engine) doSelect(ctx context.Context, step schemas.Step, el *schemas.Element) error {
	err := e.driver.SelectByText(ctx, el, step.Value)
	if err == nil {
		return nil
	}
	if idx, convErr := strconv.Atoi(strings.TrimSpace(step.Value)); convErr == nil {
		if idxErr := e.driver.SelectByIndex(ctx, el, idx); idxErr == nil {
			return nil
		}
	}
	return err
}

// doWait polls until the element is displayed or, when the step carries
// expected text, until that text appears. Bounded by the configured wait
// timeout (or the step value when it parses as seconds).
func (e *Engine) doWait(ctx context.Context, step schemas.Step) error {
	timeout := e.cfg.WaitTimeout
	if secs, err := strconv.Atoi(strings.TrimSpace(step.Value)); err == nil && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}
	expected := strings.ToLower(extractExpected(step))

	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		match, err := e.resolver.Detect(ctx, step.Target, resolver.ElementTypeAny)
		if err == nil {
			if expected == "" {
				if displayed, dErr := e.driver.IsDisplayed(ctx, match.Element); dErr == nil && displayed {
					return nil
				}
			} else {
				if text, tErr := e.driver.GetText(ctx, match.Element); tErr == nil &&
					strings.Contains(strings.ToLower(text), expected) {
					return nil
				}
			}
			// The cached match may be the reason nothing new shows up.
			e.resolver.ClearCache()
		} else {
			lastErr = err
		}
		if err := e.driver.Pause(ctx, waitPollInterval); err != nil {
			return err
		}
	}
	if lastErr != nil {
		return fmt.Errorf("timed out waiting for %q: %w", step.Target, lastErr)
	}
	return fmt.Errorf("timed out waiting for %q", step.Target)
}

const waitPollInterval = 250 * time.Millisecond

// waitDocumentReady polls document.readyState after actions that trigger
// navigation. Best effort; gives up at the wait timeout.
func (e *Engine) waitDocumentReady(ctx context.Context) {
	deadline := time.Now().Add(e.cfg.WaitTimeout)
	for time.Now().Before(deadline) {
		var state string
		if err := e.driver.ExecuteScript(ctx, "document.readyState", &state); err == nil && state == "complete" {
			return
		}
		if err := e.driver.Pause(ctx, waitPollInterval); err != nil {
			return
		}
	}
}

func (e *Engine) settle(ctx context.Context) error {
	if e.cfg.SettlePause <= 0 {
		return nil
	}
	return e.driver.Pause(ctx, e.cfg.SettlePause)
}

// isCritical reports whether the step's description or action contains any
// configured critical keyword. Critical failures abort the remaining plan.
func (e *Engine) isCritical(step schemas.Step) bool {
	haystack := strings.ToLower(step.Target + " " + string(step.Action) + " " + step.Value)
	for _, kw := range e.cfg.CriticalKeywords {
		if kw != "" && strings.Contains(haystack, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// describeStep renders a step for the session log.
func describeStep(step schemas.Step) string {
	switch step.Action {
	case schemas.ActionNavigate:
		return "Navigate to " + step.Target
	case schemas.ActionFill, schemas.ActionType:
		return fmt.Sprintf("Fill %s with %q", step.Target, step.Value)
	case schemas.ActionSelect:
		return fmt.Sprintf("Select %q in %s", step.Value, step.Target)
	case schemas.ActionUpload:
		return fmt.Sprintf("Upload %q to %s", step.Value, step.Target)
	case schemas.ActionScreenshot:
		if step.Target == "" {
			return "Take screenshot"
		}
		return "Take screenshot " + step.Target
	default:
		return fmt.Sprintf("%s %s", capitalize(string(step.Action)), step.Target)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// extractExpected pulls the expected text for verify/wait steps: the
// explicit expected result first, then the value, then any quoted phrase
// inside the target description.
func extractExpected(step schemas.Step) string {
	if step.ExpectedResult != "" {
		return step.ExpectedResult
	}
	if step.Value != "" {
		return step.Value
	}
	return quotedPhrase(step.Target)
}

// quotedPhrase returns the first single- or double-quoted run in s.
func quotedPhrase(s string) string {
	for _, q := range []byte{'\'', '"'} {
		start := strings.IndexByte(s, q)
		if start < 0 {
			continue
		}
		end := strings.IndexByte(s[start+1:], q)
		if end < 0 {
			continue
		}
		return s[start+1 : start+1+end]
	}
	return ""
}
