package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
)

// EngineFactory builds one fully wired engine for one test, plus a cleanup
// function that releases its browser session. Each concurrent test gets its
// own engine so no resolver cache, agent conversation, or session log is
// ever shared.
type EngineFactory func(ctx context.Context) (*Engine, func(), error)

// Suite runs a batch of test intents concurrently, one engine per intent,
// bounded by the configured parallelism.
type Suite struct {
	factory     EngineFactory
	concurrency int
	logger      *zap.Logger
}

// NewSuite validates dependencies and builds a suite runner.
func NewSuite(factory EngineFactory, concurrency int, logger *zap.Logger) (*Suite, error) {
	if factory == nil {
		return nil, errors.New("engine factory cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Suite{
		factory:     factory,
		concurrency: concurrency,
		logger:      logger.With(zap.String("component", "suite")),
	}, nil
}

// Run executes every intent and returns the sessions in intent order. A
// test failure is recorded in its session, not returned as an error; the
// error return covers engine construction and context cancellation only.
func (s *Suite) Run(ctx context.Context, intents []schemas.TestIntent) ([]*schemas.TestSession, error) {
	sessions := make([]*schemas.TestSession, len(intents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	s.logger.Info("Suite starting.",
		zap.Int("tests", len(intents)),
		zap.Int("concurrency", s.concurrency))

	for i, intent := range intents {
		g.Go(func() error {
			eng, cleanup, err := s.factory(gctx)
			if err != nil {
				return fmt.Errorf("could not build engine for %q: %w", intent.Name, err)
			}
			defer cleanup()

			session, err := eng.ExecuteTest(gctx, intent)
			if err != nil {
				return fmt.Errorf("test %q could not run: %w", intent.Name, err)
			}
			sessions[i] = session
			return nil
		})
	}

	err := g.Wait()
	return sessions, err
}
