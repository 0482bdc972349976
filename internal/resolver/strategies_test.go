package resolver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	testCases := []struct {
		name        string
		description string
		expected    []string
	}{
		{
			name:        "lowercases and drops short words",
			description: "Click the Submit Order button",
			expected:    []string{"click", "the", "submit", "order", "button"},
		},
		{
			name:        "strips punctuation",
			description: `"Save" (and close).`,
			expected:    []string{"save", "and", "close"},
		},
		{
			name:        "short words removed",
			description: "go to it",
			expected:    nil,
		},
		{
			name:        "empty input",
			description: "",
			expected:    nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tokenize(tc.description))
		})
	}
}

func TestBuildStrategiesOrdering(t *testing.T) {
	strategies := buildStrategies("Submit Order button", ElementTypeButton)
	require.NotEmpty(t, strategies)

	assert.Equal(t, "accessibility-name", strategies[0].Name)
	assert.Equal(t, 1, strategies[0].Priority)
	assert.Equal(t, "generic-fallback", strategies[len(strategies)-1].Name)

	for i := 1; i < len(strategies); i++ {
		assert.Greater(t, strategies[i].Priority, strategies[i-1].Priority,
			"strategy %q must come after %q", strategies[i].Name, strategies[i-1].Name)
	}
	for _, s := range strategies {
		assert.NotEmpty(t, s.Selectors, "strategy %q has no selectors", s.Name)
		for _, sel := range s.Selectors {
			assert.NotEmpty(t, sel)
		}
	}
}

func TestBuildStrategiesTypeScoping(t *testing.T) {
	t.Run("input type generates placeholder selectors", func(t *testing.T) {
		strategies := buildStrategies("Email address", ElementTypeInput)
		typed := findStrategy(t, strategies, "typed-text")
		assert.Contains(t, typed.Selectors, "[placeholder='Email address']")
		assert.Contains(t, typed.Selectors, "[placeholder*='email']")
	})

	t.Run("button type generates button xpath", func(t *testing.T) {
		strategies := buildStrategies("Save changes", ElementTypeButton)
		typed := findStrategy(t, strategies, "typed-text")
		assert.Contains(t, typed.Selectors, "//button[contains(normalize-space(.),'Save changes')]")
	})

	t.Run("file type targets file inputs", func(t *testing.T) {
		strategies := buildStrategies("Upload avatar", ElementTypeFile)
		typed := findStrategy(t, strategies, "typed-text")
		assert.Contains(t, typed.Selectors, "input[type='file']")
	})

	t.Run("any type keeps generic interactive text search", func(t *testing.T) {
		strategies := buildStrategies("Learn more", ElementTypeAny)
		typed := findStrategy(t, strategies, "typed-text")
		assert.Contains(t, typed.Selectors, "//a[contains(normalize-space(.),'Learn more')]")
	})
}

func TestDataAttributeStrategy(t *testing.T) {
	strategies := buildStrategies("Submit Order", ElementTypeAny)
	data := findStrategy(t, strategies, "data-attribute")

	assert.Contains(t, data.Selectors, "[data-testid='submit-order']")
	assert.Contains(t, data.Selectors, "[name='submit_order']")
	assert.Contains(t, data.Selectors, "[id*='submit']")
	assert.Contains(t, data.Selectors, "[data-testid*='order']")
}

func TestKeywordStrategy(t *testing.T) {
	t.Run("button keyword expands to button patterns", func(t *testing.T) {
		strategies := buildStrategies("the big red button", ElementTypeAny)
		kw := findStrategy(t, strategies, "keyword-pattern")
		assert.Contains(t, kw.Selectors, "button")
		assert.Contains(t, kw.Selectors, ".btn")
		assert.Contains(t, kw.Selectors, "input[type='submit']")
	})

	t.Run("no keyword drops the strategy entirely", func(t *testing.T) {
		strategies := buildStrategies("something nondescript", ElementTypeAny)
		for _, s := range strategies {
			assert.NotEqual(t, "keyword-pattern", s.Name)
		}
	})

	t.Run("duplicate selectors collapse", func(t *testing.T) {
		strategies := buildStrategies("select dropdown", ElementTypeAny)
		kw := findStrategy(t, strategies, "keyword-pattern")
		count := 0
		for _, sel := range kw.Selectors {
			if sel == "select" {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})
}

func TestGenericFallback(t *testing.T) {
	strategies := buildStrategies("x", ElementTypeAny)
	generic := findStrategy(t, strategies, "generic-fallback")
	assert.Equal(t, []string{"button", "input", "a", "[role='button']"}, generic.Selectors)
	assert.Equal(t, 7, generic.Priority)
}

func TestXPathLiteral(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "Submit", "'Submit'"},
		{"apostrophe", "Don't stop", `"Don't stop"`},
		{"double quote", `Say "hi"`, `'Say "hi"'`},
		{"both quotes", `Don't say "hi"`, `concat('Don',"'",'t say "hi"')`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, xpathLiteral(tc.input))
		})
	}
}

func TestCSSString(t *testing.T) {
	assert.Equal(t, "'Save'", cssString("Save"))
	assert.Equal(t, `'Don\'t'`, cssString("Don't"))
	assert.Equal(t, `'a\\b'`, cssString(`a\b`))
}

func TestScoreConfidence(t *testing.T) {
	t.Run("top tier with word overlap clamps at 100", func(t *testing.T) {
		words := tokenize("Submit Order")
		assert.Equal(t, 100, scoreConfidence(1, "[aria-label='Submit Order']", words))
	})

	t.Run("each tier costs ten points", func(t *testing.T) {
		assert.Equal(t, 90, scoreConfidence(2, "//*[text()]", nil))
		assert.Equal(t, 70, scoreConfidence(4, "[data-x]", nil))
	})

	t.Run("word matches add five each", func(t *testing.T) {
		words := []string{"submit", "order"}
		assert.Equal(t, 75, scoreConfidence(4, "[data-testid='submit']", words))
		assert.Equal(t, 80, scoreConfidence(4, "[data-testid='submit-order']", words))
	})

	t.Run("bare generic tag penalized", func(t *testing.T) {
		assert.Equal(t, 20, scoreConfidence(7, "button", nil))
		assert.Equal(t, 20, scoreConfidence(7, "input", nil))
	})

	t.Run("attribute form of generic tag not penalized", func(t *testing.T) {
		assert.Equal(t, 45, scoreConfidence(7, "[role='button']", []string{"button"}))
	})

	t.Run("always within bounds", func(t *testing.T) {
		for priority := 1; priority <= 7; priority++ {
			for _, sel := range []string{"button", "[aria-label='save order item now']"} {
				got := scoreConfidence(priority, sel, []string{"save", "order", "item", "now"})
				assert.GreaterOrEqual(t, got, 0)
				assert.LessOrEqual(t, got, 100)
			}
		}
	})
}

func findStrategy(t *testing.T, strategies []Strategy, name string) Strategy {
	t.Helper()
	for _, s := range strategies {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("strategy %q not generated; got %v", name, strategyNames(strategies))
	return Strategy{}
}

func strategyNames(strategies []Strategy) string {
	names := make([]string, 0, len(strategies))
	for _, s := range strategies {
		names = append(names, s.Name)
	}
	return strings.Join(names, ", ")
}
