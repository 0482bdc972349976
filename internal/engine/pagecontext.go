package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/resolver"
)

// PageClass is the coarse classification of the current page, used only to
// prune or augment candidate selectors in the exhaustive tier.
type PageClass string

const (
	PageLogin     PageClass = "login"
	PageSecure    PageClass = "secure"
	PageDashboard PageClass = "dashboard"
	PageUnknown   PageClass = "unknown"
)

// PageContext is what the exhaustive tier knows about the current page.
type PageContext struct {
	Class    PageClass
	Loading  bool
	HasError bool
}

// classifyPage derives a page context from the URL and the page source.
// The classification is a heuristic hint: misclassification only changes
// selector ordering, never reachability, because the generic fallback tier
// is exempt from pruning.
func classifyPage(rawURL, source string) PageContext {
	pc := PageContext{Class: PageUnknown}

	lowerURL := strings.ToLower(rawURL)
	switch {
	case containsAny(lowerURL, "login", "signin", "sign-in", "auth"):
		pc.Class = PageLogin
	case containsAny(lowerURL, "dashboard", "overview"):
		pc.Class = PageDashboard
	case containsAny(lowerURL, "secure", "account", "admin", "profile"):
		pc.Class = PageSecure
	}

	if strings.TrimSpace(source) == "" {
		return pc
	}
	root, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return pc
	}
	doc := goquery.NewDocumentFromNode(root)

	pc.Loading = doc.Find(".loading, .spinner, [aria-busy='true']").Length() > 0
	pc.HasError = doc.Find(".error, .alert-danger, [role='alert']").Length() > 0

	// The DOM can contradict the URL: a login form on any path means the
	// user is not authenticated yet.
	if pc.Class == PageUnknown && doc.Find("input[type='password']").Length() > 0 {
		pc.Class = PageLogin
	}
	return pc
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// exhaustiveTier is the last resort: it sweeps every candidate selector of
// every strategy, pruned and augmented by page context, and dispatches the
// action on the first element any of them finds.
func (e *Engine) exhaustiveTier(ctx context.Context, step schemas.Step) (bool, error) {
	switch step.Action {
	case schemas.ActionNavigate, schemas.ActionScreenshot, schemas.ActionWait, schemas.ActionSmartWait:
		return false, nil
	}

	pageURL, _ := e.driver.URL(ctx)
	source, _ := e.driver.PageSource(ctx)
	pc := classifyPage(pageURL, source)

	strategies := adjustStrategies(
		resolver.CandidateStrategies(step.Target, inferElementType(step.Action)),
		pc, step.Action,
	)

	e.logger.Debug("Exhaustive sweep starting.",
		zap.String("target", step.Target),
		zap.String("page_class", string(pc.Class)),
		zap.Int("strategies", len(strategies)))

	var lastErr error
	for _, strat := range strategies {
		for _, sel := range strat.Selectors {
			if err := ctx.Err(); err != nil {
				return true, err
			}
			el, found, err := e.driver.Query(ctx, sel)
			if err != nil || !found {
				continue
			}
			if step.Action == schemas.ActionVerify {
				if err := e.verifyResolved(ctx, step, el); err != nil {
					lastErr = err
					continue
				}
				return true, nil
			}
			if err := e.performAction(ctx, step, el); err != nil {
				lastErr = err
				continue
			}
			return true, nil
		}
	}

	if lastErr != nil {
		return true, fmt.Errorf("exhaustive sweep failed: %w", lastErr)
	}
	return true, fmt.Errorf("exhaustive sweep found no element for %q: %w", step.Target, resolver.ErrNoMatch)
}

// verifyResolved applies the displayed/text checks to an element the sweep
// already located, bypassing the resolver.
func (e *Engine) verifyResolved(ctx context.Context, step schemas.Step, el *schemas.Element) error {
	expected := extractExpected(step)
	if strings.Contains(strings.ToLower(step.Target), "title") {
		return e.verifyTitle(ctx, expected)
	}
	displayed, err := e.driver.IsDisplayed(ctx, el)
	if err != nil {
		return err
	}
	if !displayed {
		return &VerificationError{Aspect: "visibility", Expected: "element visible", Actual: "element hidden"}
	}
	if expected == "" {
		return nil
	}
	actual, err := e.driver.GetText(ctx, el)
	if err != nil {
		return err
	}
	if !strings.Contains(strings.ToLower(actual), strings.ToLower(expected)) {
		return &VerificationError{Aspect: "text", Expected: expected, Actual: actual}
	}
	return nil
}

// adjustStrategies applies page-context pruning and augmentation. The
// generic fallback strategy is never pruned, so every element stays
// reachable regardless of classification.
func adjustStrategies(strategies []resolver.Strategy, pc PageContext, action schemas.ActionKind) []resolver.Strategy {
	out := make([]resolver.Strategy, 0, len(strategies)+1)
	postLogin := pc.Class == PageSecure || pc.Class == PageDashboard
	for _, strat := range strategies {
		if strat.Name != "generic-fallback" && postLogin {
			strat = pruneSelectors(strat, isPasswordSelector)
		}
		if len(strat.Selectors) > 0 {
			out = append(out, strat)
		}
	}

	// Post-login pages surface their state in flash banners; give verify
	// steps a direct path to them before the generic sweep.
	if action == schemas.ActionVerify && (pc.Class == PageSecure || pc.Class == PageDashboard) {
		out = append(out, resolver.Strategy{
			Name:      "context-flash",
			Priority:  6,
			Selectors: []string{".flash.success", ".alert-success", "#flash", "[role='status']"},
			Rationale: "secure pages report outcomes via flash banners",
		})
	}
	return out
}

func pruneSelectors(strat resolver.Strategy, drop func(string) bool) resolver.Strategy {
	kept := make([]string, 0, len(strat.Selectors))
	for _, sel := range strat.Selectors {
		if !drop(sel) {
			kept = append(kept, sel)
		}
	}
	strat.Selectors = kept
	return strat
}

func isPasswordSelector(sel string) bool {
	return strings.Contains(strings.ToLower(sel), "password")
}
