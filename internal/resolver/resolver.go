// Package resolver turns natural-language element descriptions into live
// browser elements without any model calls. It generates candidate selectors
// from a fixed set of prioritized strategies, probes them in order against
// the page, and scores the first hit.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/observability"
)

// ErrNoMatch is returned when every strategy has been exhausted without a hit.
var ErrNoMatch = errors.New("no element matched any strategy")

// Resolver probes strategy-generated selectors against a driver and caches
// what it finds. One resolver serves one browser session.
type Resolver struct {
	driver schemas.Driver
	cache  *matchCache
	logger *zap.Logger
}

// New builds a resolver bound to a single driver instance.
func New(driver schemas.Driver) (*Resolver, error) {
	if driver == nil {
		return nil, errors.New("resolver requires a driver")
	}
	return &Resolver{
		driver: driver,
		cache:  newMatchCache(),
		logger: observability.GetLogger().Named("resolver"),
	}, nil
}

// Detect resolves a described element to a live match. Strategies are tried
// in ascending priority order and the first selector that locates an element
// wins. elementType scopes generation; pass "" or ElementTypeAny for no
// scoping. Results are cached per (description, elementType) until
// ClearCache is called.
func (r *Resolver) Detect(ctx context.Context, description, elementType string) (*schemas.ElementMatch, error) {
	if strings.TrimSpace(description) == "" {
		return nil, errors.New("element description is empty")
	}
	if elementType == "" {
		elementType = ElementTypeAny
	}

	if m, ok := r.cache.get(description, elementType); ok {
		r.logger.Debug("Cache hit for element description.",
			zap.String("description", description),
			zap.String("selector", m.Selector))
		return m, nil
	}

	words := tokenize(description)
	for _, strat := range buildStrategies(description, elementType) {
		for _, sel := range strat.Selectors {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			el, found, err := r.driver.Query(ctx, sel)
			if err != nil {
				r.logger.Debug("Selector probe failed.",
					zap.String("strategy", strat.Name),
					zap.String("selector", sel),
					zap.Error(err))
				continue
			}
			if !found {
				continue
			}
			match := &schemas.ElementMatch{
				Element:    el,
				Confidence: scoreConfidence(strat.Priority, sel, words),
				Strategy:   strat.Name,
				Selector:   sel,
			}
			r.cache.put(description, elementType, match)
			r.logger.Debug("Element resolved.",
				zap.String("description", description),
				zap.String("strategy", strat.Name),
				zap.String("selector", sel),
				zap.Int("confidence", match.Confidence))
			return match, nil
		}
	}

	return nil, fmt.Errorf("%w: %q (type %s)", ErrNoMatch, description, elementType)
}

// ClearCache drops every cached match. Call after navigation or any DOM
// rebuild that invalidates node identity.
func (r *Resolver) ClearCache() {
	r.cache.clear()
	r.logger.Debug("Resolver cache cleared.")
}

// CacheStats reports cache size and hit counters.
func (r *Resolver) CacheStats() CacheStats {
	return r.cache.stats()
}

// scoreConfidence rates a winning selector. The base score falls 10 points
// per priority tier, each description word appearing in the selector adds 5,
// and a bare generic tag loses 20. The result is clamped to [0,100].
func scoreConfidence(priority int, selector string, words []string) int {
	score := 100 - (priority-1)*10
	lowerSel := strings.ToLower(selector)
	for _, w := range words {
		if strings.Contains(lowerSel, w) {
			score += 5
		}
	}
	if genericTags[selector] {
		score -= 20
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}
