package agent

import (
	"context"
	"fmt"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
)

// Toolkit is the set of browser capabilities the controller can drive. The
// execution engine implements it, which keeps this package free of engine
// internals. Every method returns a human-readable observation for the model.
type Toolkit interface {
	Navigate(ctx context.Context, url string) (string, error)
	ClickElement(ctx context.Context, description string) (string, error)
	FillField(ctx context.Context, description, value string) (string, error)
	VerifyElement(ctx context.Context, description, expected string) (string, error)
	WaitForElement(ctx context.Context, description string, seconds int) (string, error)
	TakeScreenshot(ctx context.Context, name string) (string, error)
}

// Tool names as exposed to the model.
const (
	toolNavigate       = "navigate"
	toolClickElement   = "click_element"
	toolFillField      = "fill_field"
	toolVerifyElement  = "verify_element"
	toolWaitForElement = "wait_for_element"
	toolScreenshot     = "take_screenshot"
)

// toolSpecs declares the toolkit to the model. Descriptions double as the
// model's usage manual, so they spell out what each argument means.
func toolSpecs() []schemas.ToolSpec {
	return []schemas.ToolSpec{
		{
			Name:        toolNavigate,
			Description: "Navigate the browser to a URL and wait for the page to load.",
			Params: map[string]schemas.ToolParam{
				"url": {Type: "string", Description: "Absolute URL to open."},
			},
			Required: []string{"url"},
		},
		{
			Name:        toolClickElement,
			Description: "Click an element identified by a natural-language description, e.g. 'the login button'.",
			Params: map[string]schemas.ToolParam{
				"description": {Type: "string", Description: "What to click, as a user would describe it."},
			},
			Required: []string{"description"},
		},
		{
			Name:        toolFillField,
			Description: "Clear a form field and type a value into it.",
			Params: map[string]schemas.ToolParam{
				"description": {Type: "string", Description: "Which field to fill, as a user would describe it."},
				"value":       {Type: "string", Description: "Text to type into the field."},
			},
			Required: []string{"description", "value"},
		},
		{
			Name:        toolVerifyElement,
			Description: "Check that an element exists and, when expected text is given, that its text matches.",
			Params: map[string]schemas.ToolParam{
				"description": {Type: "string", Description: "Which element to verify."},
				"expected":    {Type: "string", Description: "Expected visible text. Leave empty to only check presence."},
			},
			Required: []string{"description"},
		},
		{
			Name:        toolWaitForElement,
			Description: "Wait until an element becomes visible, up to a timeout.",
			Params: map[string]schemas.ToolParam{
				"description": {Type: "string", Description: "Which element to wait for."},
				"seconds":     {Type: "integer", Description: "Maximum seconds to wait. Defaults to 10."},
			},
			Required: []string{"description"},
		},
		{
			Name:        toolScreenshot,
			Description: "Capture a screenshot of the current page for the test report.",
			Params: map[string]schemas.ToolParam{
				"name": {Type: "string", Description: "Short name for the screenshot file."},
			},
		},
	}
}

// executeToolCall dispatches one model-requested call against the toolkit.
// Failures are returned as observations, never as Go errors: the model reads
// the failure and decides what to try next.
func executeToolCall(ctx context.Context, tk Toolkit, call schemas.ToolCall) string {
	observation, code, err := dispatchToolCall(ctx, tk, call)
	if err != nil {
		return fmt.Sprintf("ERROR (%s): %v", code, err)
	}
	return observation
}

func dispatchToolCall(ctx context.Context, tk Toolkit, call schemas.ToolCall) (string, ErrorCode, error) {
	switch call.Name {
	case toolNavigate:
		url, err := stringArg(call.Args, "url")
		if err != nil {
			return "", ErrCodeInvalidParameters, err
		}
		obs, err := tk.Navigate(ctx, url)
		if err != nil {
			return "", ErrCodeNavigationFailure, err
		}
		return obs, "", nil

	case toolClickElement:
		description, err := stringArg(call.Args, "description")
		if err != nil {
			return "", ErrCodeInvalidParameters, err
		}
		obs, err := tk.ClickElement(ctx, description)
		if err != nil {
			return "", ErrCodeElementNotFound, err
		}
		return obs, "", nil

	case toolFillField:
		description, err := stringArg(call.Args, "description")
		if err != nil {
			return "", ErrCodeInvalidParameters, err
		}
		value, err := stringArg(call.Args, "value")
		if err != nil {
			return "", ErrCodeInvalidParameters, err
		}
		obs, err := tk.FillField(ctx, description, value)
		if err != nil {
			return "", ErrCodeElementNotFound, err
		}
		return obs, "", nil

	case toolVerifyElement:
		description, err := stringArg(call.Args, "description")
		if err != nil {
			return "", ErrCodeInvalidParameters, err
		}
		expected := optionalStringArg(call.Args, "expected")
		obs, err := tk.VerifyElement(ctx, description, expected)
		if err != nil {
			return "", ErrCodeVerificationMismatch, err
		}
		return obs, "", nil

	case toolWaitForElement:
		description, err := stringArg(call.Args, "description")
		if err != nil {
			return "", ErrCodeInvalidParameters, err
		}
		seconds := intArg(call.Args, "seconds", 10)
		obs, err := tk.WaitForElement(ctx, description, seconds)
		if err != nil {
			return "", ErrCodeTimeoutError, err
		}
		return obs, "", nil

	case toolScreenshot:
		name := optionalStringArg(call.Args, "name")
		obs, err := tk.TakeScreenshot(ctx, name)
		if err != nil {
			return "", ErrCodeToolInvocation, err
		}
		return obs, "", nil

	default:
		return "", ErrCodeUnknownAction, fmt.Errorf("unknown tool %q", call.Name)
	}
}

func stringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("argument %q must be a non-empty string", key)
	}
	return s, nil
}

func optionalStringArg(args map[string]any, key string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	return ""
}

// intArg tolerates the float64 that JSON decoding produces for numbers.
func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}
