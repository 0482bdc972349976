package engine

import (
	"context"
	"strings"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/resolver"
)

// verify checks a verify step against the live page. The first applicable
// mode wins: a title check when the description mentions the title, a text
// check when it mentions text or content, otherwise visibility plus an
// optional exact value match.
func (e *Engine) verify(ctx context.Context, step schemas.Step) error {
	lower := strings.ToLower(step.Target)
	expected := extractExpected(step)

	if strings.Contains(lower, "title") {
		return e.verifyTitle(ctx, expected)
	}
	if strings.Contains(lower, "text") || strings.Contains(lower, "content") {
		return e.verifyText(ctx, step, expected)
	}
	return e.verifyDisplayed(ctx, step, expected)
}

func (e *Engine) verifyTitle(ctx context.Context, expected string) error {
	title, err := e.driver.Title(ctx)
	if err != nil {
		return err
	}
	if expected != "" && !strings.Contains(strings.ToLower(title), strings.ToLower(expected)) {
		return &VerificationError{Aspect: "title", Expected: expected, Actual: title}
	}
	return nil
}

// verifyText matches the element's visible text, falling back to its value
// attribute for form controls. Comparison is a case-insensitive substring.
func (e *Engine) verifyText(ctx context.Context, step schemas.Step, expected string) error {
	match, err := e.resolver.Detect(ctx, step.Target, resolver.ElementTypeAny)
	if err != nil {
		return err
	}
	actual, err := e.driver.GetText(ctx, match.Element)
	if err != nil {
		return err
	}
	if strings.TrimSpace(actual) == "" {
		if v, vErr := e.driver.GetAttribute(ctx, match.Element, "value"); vErr == nil {
			actual = v
		}
	}
	if expected != "" && !strings.Contains(strings.ToLower(actual), strings.ToLower(expected)) {
		return &VerificationError{Aspect: "text", Expected: expected, Actual: actual}
	}
	return nil
}

// verifyDisplayed requires the element to be visible and, when a value is
// expected, requires exact equality with its value attribute.
func (e *Engine) verifyDisplayed(ctx context.Context, step schemas.Step, expected string) error {
	match, err := e.resolver.Detect(ctx, step.Target, resolver.ElementTypeAny)
	if err != nil {
		return err
	}
	displayed, err := e.driver.IsDisplayed(ctx, match.Element)
	if err != nil {
		return err
	}
	if !displayed {
		return &VerificationError{Aspect: "visibility", Expected: "element visible", Actual: "element hidden"}
	}
	if step.Value != "" {
		actual, err := e.driver.GetAttribute(ctx, match.Element, "value")
		if err != nil {
			return err
		}
		if actual != step.Value {
			return &VerificationError{Aspect: "value", Expected: step.Value, Actual: actual}
		}
	}
	return nil
}
