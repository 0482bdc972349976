package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
)

// stubToolkit lets each test wire only the methods it expects to be hit.
// Unwired methods fail loudly instead of succeeding silently.
type stubToolkit struct {
	navigate   func(ctx context.Context, url string) (string, error)
	click      func(ctx context.Context, description string) (string, error)
	fill       func(ctx context.Context, description, value string) (string, error)
	verify     func(ctx context.Context, description, expected string) (string, error)
	wait       func(ctx context.Context, description string, seconds int) (string, error)
	screenshot func(ctx context.Context, name string) (string, error)
}

var _ Toolkit = (*stubToolkit)(nil)

func (s *stubToolkit) Navigate(ctx context.Context, url string) (string, error) {
	if s.navigate == nil {
		return "", errors.New("unexpected Navigate call")
	}
	return s.navigate(ctx, url)
}

func (s *stubToolkit) ClickElement(ctx context.Context, description string) (string, error) {
	if s.click == nil {
		return "", errors.New("unexpected ClickElement call")
	}
	return s.click(ctx, description)
}

func (s *stubToolkit) FillField(ctx context.Context, description, value string) (string, error) {
	if s.fill == nil {
		return "", errors.New("unexpected FillField call")
	}
	return s.fill(ctx, description, value)
}

func (s *stubToolkit) VerifyElement(ctx context.Context, description, expected string) (string, error) {
	if s.verify == nil {
		return "", errors.New("unexpected VerifyElement call")
	}
	return s.verify(ctx, description, expected)
}

func (s *stubToolkit) WaitForElement(ctx context.Context, description string, seconds int) (string, error) {
	if s.wait == nil {
		return "", errors.New("unexpected WaitForElement call")
	}
	return s.wait(ctx, description, seconds)
}

func (s *stubToolkit) TakeScreenshot(ctx context.Context, name string) (string, error) {
	if s.screenshot == nil {
		return "", errors.New("unexpected TakeScreenshot call")
	}
	return s.screenshot(ctx, name)
}

func TestToolSpecs(t *testing.T) {
	specs := toolSpecs()
	require.Len(t, specs, 6)

	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		names = append(names, spec.Name)
		assert.NotEmpty(t, spec.Description, "tool %s needs a description", spec.Name)
		for param, def := range spec.Params {
			assert.NotEmpty(t, def.Type, "tool %s param %s needs a type", spec.Name, param)
			assert.NotEmpty(t, def.Description, "tool %s param %s needs a description", spec.Name, param)
		}
		for _, req := range spec.Required {
			assert.Contains(t, spec.Params, req, "tool %s requires undeclared param %s", spec.Name, req)
		}
	}
	assert.Equal(t, []string{
		"navigate", "click_element", "fill_field",
		"verify_element", "wait_for_element", "take_screenshot",
	}, names)

	fill := specs[2]
	assert.ElementsMatch(t, []string{"description", "value"}, fill.Required)

	wait := specs[4]
	assert.Equal(t, "integer", wait.Params["seconds"].Type)
	assert.Equal(t, []string{"description"}, wait.Required)

	screenshot := specs[5]
	assert.Empty(t, screenshot.Required)
}

func TestExecuteToolCallPassesArguments(t *testing.T) {
	ctx := context.Background()

	t.Run("navigate", func(t *testing.T) {
		tk := &stubToolkit{
			navigate: func(_ context.Context, url string) (string, error) {
				assert.Equal(t, "https://demo.test/login", url)
				return "Navigated to https://demo.test/login", nil
			},
		}
		obs := executeToolCall(ctx, tk, schemas.ToolCall{
			Name: "navigate",
			Args: map[string]any{"url": "https://demo.test/login"},
		})
		assert.Equal(t, "Navigated to https://demo.test/login", obs)
	})

	t.Run("fill_field", func(t *testing.T) {
		tk := &stubToolkit{
			fill: func(_ context.Context, description, value string) (string, error) {
				assert.Equal(t, "the email field", description)
				assert.Equal(t, "user@demo.test", value)
				return "Filled the email field", nil
			},
		}
		obs := executeToolCall(ctx, tk, schemas.ToolCall{
			Name: "fill_field",
			Args: map[string]any{"description": "the email field", "value": "user@demo.test"},
		})
		assert.Equal(t, "Filled the email field", obs)
	})

	t.Run("verify defaults expected to empty", func(t *testing.T) {
		tk := &stubToolkit{
			verify: func(_ context.Context, description, expected string) (string, error) {
				assert.Equal(t, "the welcome banner", description)
				assert.Empty(t, expected)
				return "Element present", nil
			},
		}
		obs := executeToolCall(ctx, tk, schemas.ToolCall{
			Name: "verify_element",
			Args: map[string]any{"description": "the welcome banner"},
		})
		assert.Equal(t, "Element present", obs)
	})

	t.Run("wait defaults seconds to ten", func(t *testing.T) {
		tk := &stubToolkit{
			wait: func(_ context.Context, description string, seconds int) (string, error) {
				assert.Equal(t, "the spinner", description)
				assert.Equal(t, 10, seconds)
				return "Element appeared", nil
			},
		}
		obs := executeToolCall(ctx, tk, schemas.ToolCall{
			Name: "wait_for_element",
			Args: map[string]any{"description": "the spinner"},
		})
		assert.Equal(t, "Element appeared", obs)
	})

	t.Run("wait accepts json numbers", func(t *testing.T) {
		tk := &stubToolkit{
			wait: func(_ context.Context, _ string, seconds int) (string, error) {
				assert.Equal(t, 5, seconds)
				return "Element appeared", nil
			},
		}
		executeToolCall(ctx, tk, schemas.ToolCall{
			Name: "wait_for_element",
			Args: map[string]any{"description": "the spinner", "seconds": float64(5)},
		})
	})

	t.Run("screenshot name is optional", func(t *testing.T) {
		tk := &stubToolkit{
			screenshot: func(_ context.Context, name string) (string, error) {
				assert.Empty(t, name)
				return "Screenshot saved", nil
			},
		}
		obs := executeToolCall(ctx, tk, schemas.ToolCall{Name: "take_screenshot", Args: map[string]any{}})
		assert.Equal(t, "Screenshot saved", obs)
	})
}

func TestExecuteToolCallErrorCodes(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("element did not respond")

	testCases := []struct {
		name     string
		tk       *stubToolkit
		call     schemas.ToolCall
		wantCode ErrorCode
	}{
		{
			name: "navigate failure",
			tk: &stubToolkit{navigate: func(context.Context, string) (string, error) {
				return "", boom
			}},
			call:     schemas.ToolCall{Name: "navigate", Args: map[string]any{"url": "https://demo.test"}},
			wantCode: ErrCodeNavigationFailure,
		},
		{
			name: "click failure",
			tk: &stubToolkit{click: func(context.Context, string) (string, error) {
				return "", boom
			}},
			call:     schemas.ToolCall{Name: "click_element", Args: map[string]any{"description": "the button"}},
			wantCode: ErrCodeElementNotFound,
		},
		{
			name: "fill failure",
			tk: &stubToolkit{fill: func(context.Context, string, string) (string, error) {
				return "", boom
			}},
			call:     schemas.ToolCall{Name: "fill_field", Args: map[string]any{"description": "the field", "value": "x"}},
			wantCode: ErrCodeElementNotFound,
		},
		{
			name: "verify failure",
			tk: &stubToolkit{verify: func(context.Context, string, string) (string, error) {
				return "", boom
			}},
			call:     schemas.ToolCall{Name: "verify_element", Args: map[string]any{"description": "the banner"}},
			wantCode: ErrCodeVerificationMismatch,
		},
		{
			name: "wait failure",
			tk: &stubToolkit{wait: func(context.Context, string, int) (string, error) {
				return "", boom
			}},
			call:     schemas.ToolCall{Name: "wait_for_element", Args: map[string]any{"description": "the spinner"}},
			wantCode: ErrCodeTimeoutError,
		},
		{
			name: "screenshot failure",
			tk: &stubToolkit{screenshot: func(context.Context, string) (string, error) {
				return "", boom
			}},
			call:     schemas.ToolCall{Name: "take_screenshot", Args: map[string]any{}},
			wantCode: ErrCodeToolInvocation,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			obs := executeToolCall(ctx, tc.tk, tc.call)
			assert.Equal(t, fmt.Sprintf("ERROR (%s): %v", tc.wantCode, boom), obs)
		})
	}
}

func TestExecuteToolCallUnknownTool(t *testing.T) {
	obs := executeToolCall(context.Background(), &stubToolkit{}, schemas.ToolCall{
		Name: "frobnicate",
		Args: map[string]any{},
	})
	assert.Equal(t, `ERROR (UNKNOWN_ACTION_TYPE): unknown tool "frobnicate"`, obs)
}

func TestExecuteToolCallInvalidParameters(t *testing.T) {
	ctx := context.Background()
	tk := &stubToolkit{}

	testCases := []struct {
		name string
		call schemas.ToolCall
	}{
		{
			name: "missing url",
			call: schemas.ToolCall{Name: "navigate", Args: map[string]any{}},
		},
		{
			name: "url has wrong type",
			call: schemas.ToolCall{Name: "navigate", Args: map[string]any{"url": 42}},
		},
		{
			name: "missing fill value",
			call: schemas.ToolCall{Name: "fill_field", Args: map[string]any{"description": "the field"}},
		},
		{
			name: "empty description",
			call: schemas.ToolCall{Name: "click_element", Args: map[string]any{"description": ""}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			obs := executeToolCall(ctx, tk, tc.call)
			assert.Contains(t, obs, "ERROR (INVALID_PARAMETERS):")
		})
	}
}

func TestIntArg(t *testing.T) {
	assert.Equal(t, 7, intArg(map[string]any{"seconds": float64(7)}, "seconds", 10))
	assert.Equal(t, 5, intArg(map[string]any{"seconds": 5}, "seconds", 10))
	assert.Equal(t, 10, intArg(map[string]any{}, "seconds", 10))
	assert.Equal(t, 10, intArg(map[string]any{"seconds": "soon"}, "seconds", 10))
}
