package schemas

import "time"

// ActionKind identifies the kind of browser action a test step performs.
type ActionKind string

const (
	ActionNavigate   ActionKind = "navigate"
	ActionClick      ActionKind = "click"
	ActionFill       ActionKind = "fill"
	ActionType       ActionKind = "type"
	ActionClear      ActionKind = "clear"
	ActionSelect     ActionKind = "select"
	ActionUpload     ActionKind = "upload"
	ActionVerify     ActionKind = "verify"
	ActionWait       ActionKind = "wait"
	ActionSmartWait  ActionKind = "smart_wait"
	ActionScreenshot ActionKind = "screenshot"
)

// Step is a single instruction within a test intent. Target is the
// human-readable description of the element (or the URL for navigate).
type Step struct {
	Action         ActionKind `json:"action"`
	Target         string     `json:"target"`
	Value          string     `json:"value,omitempty"`
	ExpectedResult string     `json:"expected_result,omitempty"`
}

// TestIntent is the input to a test run: either an ordered list of steps,
// or a free-text task when Steps is empty.
type TestIntent struct {
	ID       string            `json:"id,omitempty"`
	Name     string            `json:"name"`
	Task     string            `json:"task,omitempty"`
	URL      string            `json:"url"`
	Steps    []Step            `json:"steps,omitempty"`
	TestData map[string]string `json:"test_data,omitempty"`
}

// StepStatus is the outcome of one executed step.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepPending StepStatus = "pending"
)

// ExecutionStep is one entry in a session's step log.
type ExecutionStep struct {
	Description string     `json:"description"`
	Result      string     `json:"result,omitempty"`
	Status      StepStatus `json:"status"`
	Timestamp   time.Time  `json:"timestamp"`
}

// SessionStatus is the lifecycle state of a test session.
type SessionStatus string

const (
	SessionRunning SessionStatus = "running"
	SessionPassed  SessionStatus = "passed"
	SessionFailed  SessionStatus = "failed"
	SessionAborted SessionStatus = "aborted"
)

// TestSession records everything that happened during one test run. It is
// created when the run starts, mutated only by the engine that owns it, and
// persisted read-only once finalized.
type TestSession struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	URL         string          `json:"url,omitempty"`
	Status      SessionStatus   `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at,omitempty"`
	Steps       []ExecutionStep `json:"steps"`
	Screenshots []string        `json:"screenshots,omitempty"`
	Errors      []string        `json:"errors,omitempty"`
	Cost        *CostMetrics    `json:"cost,omitempty"`
}

// ModelPricing is the cost per 1000 input and output tokens for one model.
type ModelPricing struct {
	InputPerK  float64 `json:"input_per_k"`
	OutputPerK float64 `json:"output_per_k"`
	Currency   string  `json:"currency"`
}

// CostMetrics is token usage priced against the active model's rates.
type CostMetrics struct {
	TokenUsage
	EstimatedCost float64      `json:"estimated_cost"`
	Currency      string       `json:"currency"`
	Pricing       ModelPricing `json:"pricing"`
}

// AgentCall is an observability record of a single language-model exchange.
// It is never replayed into future prompts.
type AgentCall struct {
	Index           int        `json:"index"`
	Timestamp       time.Time  `json:"timestamp"`
	PromptExcerpt   string     `json:"prompt_excerpt"`
	ResponseExcerpt string     `json:"response_excerpt"`
	Usage           TokenUsage `json:"usage"`
	Duration        float64    `json:"duration_seconds"`
	Classification  string     `json:"classification,omitempty"`
}
