package engine

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/mocks"
)

func TestNewSuite_Validation(t *testing.T) {
	_, err := NewSuite(nil, 2, zap.NewNop())
	assert.Error(t, err)

	factory := func(ctx context.Context) (*Engine, func(), error) { return nil, nil, nil }
	_, err = NewSuite(factory, 2, nil)
	assert.Error(t, err)

	s, err := NewSuite(factory, 0, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, s.concurrency, "non-positive concurrency collapses to serial")
}

// Each intent gets its own engine; sessions come back in intent order even
// when tests run concurrently.
func TestSuiteRun_OneEnginePerIntent(t *testing.T) {
	var built atomic.Int32

	factory := func(ctx context.Context) (*Engine, func(), error) {
		driver := new(mocks.MockDriver)
		res := new(mocks.MockResolver)
		driver.On("Screenshot", mock.Anything).Return([]byte{0x01}, nil)

		cfg := testEngineConfig(t)
		cfg.UseAgent = false
		eng, err := New(driver, res, nil, nil, nil, cfg, zap.NewNop())
		if err != nil {
			return nil, nil, err
		}
		built.Add(1)
		return eng, func() {}, nil
	}

	suite, err := NewSuite(factory, 2, zap.NewNop())
	require.NoError(t, err)

	intents := []schemas.TestIntent{
		{Name: "shot-a", Steps: []schemas.Step{{Action: schemas.ActionScreenshot, Target: "a"}}},
		{Name: "shot-b", Steps: []schemas.Step{{Action: schemas.ActionScreenshot, Target: "b"}}},
		{Name: "shot-c", Steps: []schemas.Step{{Action: schemas.ActionScreenshot, Target: "c"}}},
	}

	sessions, err := suite.Run(context.Background(), intents)
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	assert.Equal(t, int32(3), built.Load(), "one engine per intent")
	for i, session := range sessions {
		require.NotNil(t, session)
		assert.Equal(t, intents[i].Name, session.Name, "session order follows intent order")
		assert.Equal(t, schemas.SessionPassed, session.Status)
	}
}

func TestSuiteRun_FactoryFailureSurfacesError(t *testing.T) {
	factory := func(ctx context.Context) (*Engine, func(), error) {
		return nil, nil, assert.AnError
	}
	suite, err := NewSuite(factory, 1, zap.NewNop())
	require.NoError(t, err)

	_, err = suite.Run(context.Background(), []schemas.TestIntent{{Name: "x"}})
	assert.Error(t, err)
}
