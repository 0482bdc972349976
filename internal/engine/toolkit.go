package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/agent"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/resolver"
)

// The engine doubles as the agent's toolkit: every tool is one engine
// primitive with a human-readable observation bolted on. This keeps the
// agent package free of driver and resolver imports.
var _ agent.Toolkit = (*Engine)(nil)

// Navigate implements the navigate tool.
func (e *Engine) Navigate(ctx context.Context, url string) (string, error) {
	if err := e.doNavigate(ctx, url); err != nil {
		return "", err
	}
	title, err := e.driver.Title(ctx)
	if err != nil {
		title = "(unknown)"
	}
	return fmt.Sprintf("Navigated to %s. Page title: %q.", url, title), nil
}

// ClickElement implements the click_element tool.
func (e *Engine) ClickElement(ctx context.Context, description string) (string, error) {
	match, err := e.resolver.Detect(ctx, description, resolver.ElementTypeAny)
	if err != nil {
		return "", err
	}
	step := schemas.Step{Action: schemas.ActionClick, Target: description}
	if err := e.dispatchOn(ctx, step, match.Element); err != nil {
		return "", err
	}
	return fmt.Sprintf("Clicked %q (matched by %s, confidence %d).",
		description, match.Selector, match.Confidence), nil
}

// FillField implements the fill_field tool.
func (e *Engine) FillField(ctx context.Context, description, value string) (string, error) {
	match, err := e.resolver.Detect(ctx, description, resolver.ElementTypeInput)
	if err != nil {
		return "", err
	}
	step := schemas.Step{Action: schemas.ActionFill, Target: description, Value: value}
	if err := e.dispatchOn(ctx, step, match.Element); err != nil {
		return "", err
	}
	return fmt.Sprintf("Filled %q with %d characters (matched by %s).",
		description, len(value), match.Selector), nil
}

// VerifyElement implements the verify_element tool.
func (e *Engine) VerifyElement(ctx context.Context, description, expected string) (string, error) {
	step := schemas.Step{Action: schemas.ActionVerify, Target: description, ExpectedResult: expected}
	if err := e.verify(ctx, step); err != nil {
		return "", err
	}
	if expected == "" {
		return fmt.Sprintf("Verified %q is present and visible.", description), nil
	}
	return fmt.Sprintf("Verified %q shows %q.", description, expected), nil
}

// WaitForElement implements the wait_for_element tool.
func (e *Engine) WaitForElement(ctx context.Context, description string, seconds int) (string, error) {
	step := schemas.Step{Action: schemas.ActionWait, Target: description}
	if seconds > 0 {
		step.Value = fmt.Sprintf("%d", seconds)
	}
	start := time.Now()
	if err := e.doWait(ctx, step); err != nil {
		return "", err
	}
	return fmt.Sprintf("Element %q appeared after %s.",
		description, time.Since(start).Round(time.Millisecond)), nil
}

// TakeScreenshot implements the take_screenshot tool.
func (e *Engine) TakeScreenshot(ctx context.Context, name string) (string, error) {
	path, err := e.saveScreenshot(ctx, strings.TrimSpace(name))
	if err != nil {
		return "", err
	}
	return "Screenshot saved to " + path + ".", nil
}
