// Package mocks holds testify mocks for the interfaces shared across
// packages, so every test suite drives the same fakes.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/agent"
)

// -- Driver Mock --

// MockDriver mocks schemas.Driver.
type MockDriver struct {
	mock.Mock
}

var _ schemas.Driver = (*MockDriver)(nil)

func (m *MockDriver) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockDriver) Query(ctx context.Context, selector string) (*schemas.Element, bool, error) {
	args := m.Called(ctx, selector)
	var el *schemas.Element
	if args.Get(0) != nil {
		el = args.Get(0).(*schemas.Element)
	}
	return el, args.Bool(1), args.Error(2)
}

func (m *MockDriver) Click(ctx context.Context, el *schemas.Element) error {
	args := m.Called(ctx, el)
	return args.Error(0)
}

func (m *MockDriver) SetValue(ctx context.Context, el *schemas.Element, value string) error {
	args := m.Called(ctx, el, value)
	return args.Error(0)
}

func (m *MockDriver) ClearValue(ctx context.Context, el *schemas.Element) error {
	args := m.Called(ctx, el)
	return args.Error(0)
}

func (m *MockDriver) GetText(ctx context.Context, el *schemas.Element) (string, error) {
	args := m.Called(ctx, el)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) GetAttribute(ctx context.Context, el *schemas.Element, name string) (string, error) {
	args := m.Called(ctx, el, name)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) IsDisplayed(ctx context.Context, el *schemas.Element) (bool, error) {
	args := m.Called(ctx, el)
	return args.Bool(0), args.Error(1)
}

func (m *MockDriver) IsExisting(ctx context.Context, el *schemas.Element) (bool, error) {
	args := m.Called(ctx, el)
	return args.Bool(0), args.Error(1)
}

func (m *MockDriver) IsClickable(ctx context.Context, el *schemas.Element) (bool, error) {
	args := m.Called(ctx, el)
	return args.Bool(0), args.Error(1)
}

func (m *MockDriver) ScrollIntoView(ctx context.Context, el *schemas.Element) error {
	args := m.Called(ctx, el)
	return args.Error(0)
}

func (m *MockDriver) WaitForDisplayed(ctx context.Context, el *schemas.Element, timeout time.Duration) error {
	args := m.Called(ctx, el, timeout)
	return args.Error(0)
}

func (m *MockDriver) SelectByText(ctx context.Context, el *schemas.Element, text string) error {
	args := m.Called(ctx, el, text)
	return args.Error(0)
}

func (m *MockDriver) SelectByIndex(ctx context.Context, el *schemas.Element, index int) error {
	args := m.Called(ctx, el, index)
	return args.Error(0)
}

func (m *MockDriver) SetFiles(ctx context.Context, el *schemas.Element, paths []string) error {
	args := m.Called(ctx, el, paths)
	return args.Error(0)
}

func (m *MockDriver) Screenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockDriver) URL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) Title(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) PageSource(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) ExecuteScript(ctx context.Context, script string, result any) error {
	args := m.Called(ctx, script, result)
	return args.Error(0)
}

func (m *MockDriver) Refresh(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDriver) Pause(ctx context.Context, d time.Duration) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

// -- LLM Client Mock --

// MockLLMClient mocks schemas.LLMClient.
type MockLLMClient struct {
	mock.Mock
}

var _ schemas.LLMClient = (*MockLLMClient)(nil)

func (m *MockLLMClient) Invoke(ctx context.Context, messages []schemas.Message, tools []schemas.ToolSpec) (*schemas.Completion, error) {
	args := m.Called(ctx, messages, tools)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.Completion), args.Error(1)
}

func (m *MockLLMClient) Model() string {
	args := m.Called()
	return args.String(0)
}

// -- Toolkit Mock --

// MockToolkit mocks agent.Toolkit.
type MockToolkit struct {
	mock.Mock
}

var _ agent.Toolkit = (*MockToolkit)(nil)

func (m *MockToolkit) Navigate(ctx context.Context, url string) (string, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Error(1)
}

func (m *MockToolkit) ClickElement(ctx context.Context, description string) (string, error) {
	args := m.Called(ctx, description)
	return args.String(0), args.Error(1)
}

func (m *MockToolkit) FillField(ctx context.Context, description, value string) (string, error) {
	args := m.Called(ctx, description, value)
	return args.String(0), args.Error(1)
}

func (m *MockToolkit) VerifyElement(ctx context.Context, description, expected string) (string, error) {
	args := m.Called(ctx, description, expected)
	return args.String(0), args.Error(1)
}

func (m *MockToolkit) WaitForElement(ctx context.Context, description string, seconds int) (string, error) {
	args := m.Called(ctx, description, seconds)
	return args.String(0), args.Error(1)
}

func (m *MockToolkit) TakeScreenshot(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

// -- Resolver Mock --

// MockResolver mocks the engine's ElementResolver dependency.
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Detect(ctx context.Context, description, elementType string) (*schemas.ElementMatch, error) {
	args := m.Called(ctx, description, elementType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.ElementMatch), args.Error(1)
}

func (m *MockResolver) ClearCache() {
	m.Called()
}

// -- Task Runner Mock --

// MockTaskRunner mocks the engine's TaskRunner dependency.
type MockTaskRunner struct {
	mock.Mock
}

func (m *MockTaskRunner) RunTask(ctx context.Context, task string) (*agent.Result, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*agent.Result), args.Error(1)
}

func (m *MockTaskRunner) TotalUsage() schemas.TokenUsage {
	args := m.Called()
	return args.Get(0).(schemas.TokenUsage)
}

func (m *MockTaskRunner) Calls() []schemas.AgentCall {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]schemas.AgentCall)
}

func (m *MockTaskRunner) ClearSession() {
	m.Called()
}
