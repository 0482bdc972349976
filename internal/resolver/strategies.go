package resolver

import (
	"fmt"
	"strings"
)

// Element type hints used to scope selector generation. ElementTypeAny
// disables type scoping.
const (
	ElementTypeAny    = "any"
	ElementTypeButton = "button"
	ElementTypeInput  = "input"
	ElementTypeSelect = "select"
	ElementTypeFile   = "file"
)

// Strategy is a named, prioritized generator of candidate selectors.
// Lower priority numbers are tried first.
type Strategy struct {
	Name      string
	Priority  int
	Selectors []string
	Rationale string
}

const (
	upperAlpha = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerAlpha = "abcdefghijklmnopqrstuvwxyz"
)

// tokenize splits a description into lowercase words longer than two
// characters, stripping surrounding punctuation.
func tokenize(description string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(description)) {
		w = strings.Trim(w, `.,:;!?"'()[]{}<>`)
		if len(w) > 2 {
			words = append(words, w)
		}
	}
	return words
}

// CandidateStrategies exposes the full ordered strategy list for callers
// that brute-force beyond first-match-wins, such as the engine's exhaustive
// tier.
func CandidateStrategies(description, elementType string) []Strategy {
	if elementType == "" {
		elementType = ElementTypeAny
	}
	return buildStrategies(description, elementType)
}

// buildStrategies generates every candidate strategy for a description in
// fixed ascending priority order. Strategies with no selectors are dropped.
func buildStrategies(description, elementType string) []Strategy {
	desc := strings.TrimSpace(description)
	lower := strings.ToLower(desc)
	words := tokenize(desc)

	all := []Strategy{
		accessibilityNameStrategy(desc, words),
		textStrategy(desc, lower),
		typedTextStrategy(desc, elementType, words),
		dataAttributeStrategy(words),
		ariaAttributeStrategy(words),
		keywordStrategy(lower),
		genericFallbackStrategy(),
	}

	strategies := all[:0]
	for _, s := range all {
		if len(s.Selectors) > 0 {
			strategies = append(strategies, s)
		}
	}
	return strategies
}

func accessibilityNameStrategy(desc string, words []string) Strategy {
	sels := []string{
		fmt.Sprintf("[aria-label=%s]", cssString(desc)),
		fmt.Sprintf("[aria-label*=%s]", cssString(desc)),
	}
	for _, w := range words {
		sels = append(sels, fmt.Sprintf("[aria-label*=%s]", cssString(w)))
	}
	return Strategy{
		Name:      "accessibility-name",
		Priority:  1,
		Selectors: sels,
		Rationale: "accessible names are the most stable human-facing identifiers",
	}
}

func textStrategy(desc, lower string) Strategy {
	return Strategy{
		Name:     "text",
		Priority: 2,
		Selectors: []string{
			fmt.Sprintf("//*[normalize-space(text())=%s]", xpathLiteral(desc)),
			fmt.Sprintf("//*[contains(text(),%s)]", xpathLiteral(desc)),
			fmt.Sprintf("//*[contains(translate(text(),'%s','%s'),%s)]",
				upperAlpha, lowerAlpha, xpathLiteral(lower)),
		},
		Rationale: "visible text matches what the author of the step was reading",
	}
}

func typedTextStrategy(desc, elementType string, words []string) Strategy {
	var sels []string
	switch elementType {
	case ElementTypeButton:
		sels = []string{
			fmt.Sprintf("//button[contains(normalize-space(.),%s)]", xpathLiteral(desc)),
			fmt.Sprintf("//input[@type='submit'][contains(@value,%s)]", xpathLiteral(desc)),
			fmt.Sprintf("//*[@role='button'][contains(normalize-space(.),%s)]", xpathLiteral(desc)),
		}
	case ElementTypeInput:
		sels = []string{fmt.Sprintf("[placeholder=%s]", cssString(desc))}
		for _, w := range words {
			sels = append(sels, fmt.Sprintf("[placeholder*=%s]", cssString(w)))
		}
		sels = append(sels,
			fmt.Sprintf("//label[contains(normalize-space(.),%s)]/following::input[1]", xpathLiteral(desc)),
		)
	case ElementTypeSelect:
		sels = []string{
			fmt.Sprintf("//label[contains(normalize-space(.),%s)]/following::select[1]", xpathLiteral(desc)),
		}
		for _, w := range words {
			sels = append(sels, fmt.Sprintf("//select[contains(@name,%s)]", xpathLiteral(w)))
		}
	case ElementTypeFile:
		sels = []string{
			fmt.Sprintf("//label[contains(normalize-space(.),%s)]/following::input[@type='file'][1]", xpathLiteral(desc)),
			"input[type='file']",
		}
	default:
		sels = []string{
			fmt.Sprintf("//button[contains(normalize-space(.),%s)]", xpathLiteral(desc)),
			fmt.Sprintf("//a[contains(normalize-space(.),%s)]", xpathLiteral(desc)),
		}
	}
	return Strategy{
		Name:      "typed-text",
		Priority:  3,
		Selectors: sels,
		Rationale: "text match narrowed to the element kind the action needs",
	}
}

func dataAttributeStrategy(words []string) Strategy {
	if len(words) == 0 {
		return Strategy{Name: "data-attribute", Priority: 4}
	}
	kebab := strings.Join(words, "-")
	snake := strings.Join(words, "_")

	sels := []string{
		fmt.Sprintf("[data-testid=%s]", cssString(kebab)),
		fmt.Sprintf("[data-test=%s]", cssString(kebab)),
		fmt.Sprintf("[data-cy=%s]", cssString(kebab)),
		fmt.Sprintf("[name=%s]", cssString(snake)),
		fmt.Sprintf("[id=%s]", cssString(kebab)),
	}
	for _, w := range words {
		sels = append(sels,
			fmt.Sprintf("[data-testid*=%s]", cssString(w)),
			fmt.Sprintf("[name*=%s]", cssString(w)),
			fmt.Sprintf("[id*=%s]", cssString(w)),
		)
	}
	return Strategy{
		Name:      "data-attribute",
		Priority:  4,
		Selectors: sels,
		Rationale: "test hooks and form names survive styling changes",
	}
}

func ariaAttributeStrategy(words []string) Strategy {
	var sels []string
	for _, w := range words {
		sels = append(sels,
			fmt.Sprintf("[aria-labelledby*=%s]", cssString(w)),
			fmt.Sprintf("[aria-describedby*=%s]", cssString(w)),
			fmt.Sprintf("[title*=%s]", cssString(w)),
			fmt.Sprintf("[alt*=%s]", cssString(w)),
		)
	}
	return Strategy{
		Name:      "aria-attribute",
		Priority:  5,
		Selectors: sels,
		Rationale: "secondary ARIA wiring still names the element indirectly",
	}
}

// keywordPatterns maps descriptive words to the selectors they conventionally
// imply. Ordered so generation stays deterministic.
var keywordPatterns = []struct {
	keyword   string
	selectors []string
}{
	{"button", []string{"button", "[role='button']", ".btn", "input[type='submit']", "input[type='button']"}},
	{"link", []string{"a", "[role='link']"}},
	{"search", []string{"input[type='search']", "[role='searchbox']"}},
	{"checkbox", []string{"input[type='checkbox']", "[role='checkbox']"}},
	{"radio", []string{"input[type='radio']", "[role='radio']"}},
	{"dropdown", []string{"select", "[role='listbox']", "[role='combobox']"}},
	{"select", []string{"select", "[role='listbox']"}},
	{"input", []string{"input", "textarea", "input[type='text']"}},
	{"field", []string{"input", "textarea"}},
	{"password", []string{"input[type='password']"}},
	{"email", []string{"input[type='email']"}},
}

func keywordStrategy(lower string) Strategy {
	var sels []string
	seen := make(map[string]bool)
	for _, p := range keywordPatterns {
		if !strings.Contains(lower, p.keyword) {
			continue
		}
		for _, sel := range p.selectors {
			if !seen[sel] {
				seen[sel] = true
				sels = append(sels, sel)
			}
		}
	}
	return Strategy{
		Name:      "keyword-pattern",
		Priority:  6,
		Selectors: sels,
		Rationale: "the description names the control kind outright",
	}
}

func genericFallbackStrategy() Strategy {
	return Strategy{
		Name:      "generic-fallback",
		Priority:  7,
		Selectors: []string{"button", "input", "a", "[role='button']"},
		Rationale: "last resort: any interactive element at all",
	}
}

// genericTags are bare tag selectors that carry a confidence penalty when
// they win.
var genericTags = map[string]bool{
	"button":   true,
	"input":    true,
	"a":        true,
	"select":   true,
	"textarea": true,
}

// cssString quotes s as a CSS attribute-selector string literal.
func cssString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// xpathLiteral renders s as an XPath string literal. XPath 1.0 has no escape
// syntax, so a value holding both quote kinds becomes a concat() expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	var b strings.Builder
	b.WriteString("concat(")
	for i, part := range strings.Split(s, "'") {
		if i > 0 {
			b.WriteString(`,"'",`)
		}
		b.WriteString("'" + part + "'")
	}
	b.WriteString(")")
	return b.String()
}
