// Package agent runs the bounded conversation loop that turns a natural
// language task into browser tool calls. The loop is fenced on every side:
// a recursion limit, a task deadline, duplicate-response detection, and
// tool-repetition detection all end it, so a confused model cannot burn
// tokens indefinitely.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/config"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/observability"
)

const excerptLimit = 200

// Result is the outcome of one task run.
type Result struct {
	Success      bool
	FinalMessage string
	Reason       StopReason
	Code         ErrorCode // set when the loop was cut short
	Calls        []schemas.AgentCall
	Usage        schemas.TokenUsage
}

// Controller drives the agentic conversation loop over an LLM client and a
// browser toolkit. One controller serves one browser session; each RunTask
// starts a fresh conversation, while call records accumulate until
// ClearSession.
type Controller struct {
	client  schemas.LLMClient
	toolkit Toolkit
	cfg     config.AgentConfig
	logger  *zap.Logger

	mu      sync.Mutex
	history []schemas.Message
	calls   []schemas.AgentCall
}

// NewController validates dependencies and builds a controller.
func NewController(client schemas.LLMClient, toolkit Toolkit, cfg config.AgentConfig) (*Controller, error) {
	if client == nil {
		return nil, errors.New("controller requires an LLM client")
	}
	if toolkit == nil {
		return nil, errors.New("controller requires a toolkit")
	}
	return &Controller{
		client:  client,
		toolkit: toolkit,
		cfg:     cfg,
		logger:  observability.GetLogger().Named("agent"),
	}, nil
}

// RunTask drives the conversation until a stop condition fires or the task
// deadline passes. Tool failures are fed back to the model as observations;
// only infrastructure failures surface as errors.
func (c *Controller) RunTask(ctx context.Context, task string) (*Result, error) {
	if strings.TrimSpace(task) == "" {
		return nil, errors.New("task is empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	taskCtx := ctx
	if c.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, c.cfg.TaskTimeout)
		defer cancel()
	}

	// One conversation per task: re-seed system prompt and task so the
	// recursion limit always bounds the conversation length.
	c.history = c.history[:0]
	c.history = append(c.history,
		schemas.Message{Role: schemas.RoleSystem, Content: c.systemPrompt()},
		schemas.Message{Role: schemas.RoleUser, Content: task})

	c.logger.Info("Agent task starting.", zap.String("task", excerpt(task)))

	specs := toolSpecs()
	var assistantTexts []string
	var toolNames []string

	for iteration := 1; ; iteration++ {
		promptTail := c.history[len(c.history)-1].Content

		startTime := time.Now()
		completion, err := c.client.Invoke(taskCtx, c.history, specs)
		duration := time.Since(startTime)

		if err != nil {
			if taskCtx.Err() != nil {
				c.logger.Warn("Task deadline reached; aborting agent loop.",
					zap.Int("iteration", iteration))
				return c.finishLocked(StopTimeout, "task deadline exceeded"), nil
			}
			return nil, fmt.Errorf("model invocation failed on iteration %d: %w", iteration, err)
		}

		c.recordCall(promptTail, completion, duration)
		c.history = append(c.history, schemas.Message{
			Role:      schemas.RoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})
		if completion.Content != "" {
			assistantTexts = append(assistantTexts, completion.Content)
		}

		reason, stop := shouldStop(c.cfg, loopState{
			iteration:      iteration,
			assistantTexts: assistantTexts,
			toolNames:      toolNames,
			lastContent:    completion.Content,
		})
		if stop {
			return c.finishLocked(reason, completion.Content), nil
		}

		if len(completion.ToolCalls) == 0 {
			// A response without tool calls is the model's conclusion.
			return c.finishLocked(StopConclusion, completion.Content), nil
		}

		for _, call := range completion.ToolCalls {
			observation := executeToolCall(taskCtx, c.toolkit, call)
			toolNames = append(toolNames, call.Name)
			c.logger.Debug("Tool executed.",
				zap.String("tool", call.Name),
				zap.String("observation", excerpt(observation)))
			c.history = append(c.history, schemas.Message{
				Role:       schemas.RoleTool,
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    observation,
			})
			if taskCtx.Err() != nil {
				return c.finishLocked(StopTimeout, "task deadline exceeded"), nil
			}
		}
	}
}

// finishLocked assembles the result for a stop reason. Callers hold c.mu.
func (c *Controller) finishLocked(reason StopReason, finalMessage string) *Result {
	result := &Result{
		Reason:       reason,
		FinalMessage: finalMessage,
		Calls:        append([]schemas.AgentCall(nil), c.calls...),
		Usage:        c.totalUsageLocked(),
	}

	switch reason {
	case StopPhrase:
		matched := matchStopPhrase(c.cfg.StopPhrases, finalMessage)
		result.Success = strings.Contains(strings.ToLower(matched), "success")
	case StopConclusion:
		result.Success = strings.Contains(strings.ToLower(finalMessage), "success")
	case StopRecursionLimit:
		result.Code = ErrCodeRecursionLimit
	case StopLoopDetected, StopToolRepetition:
		result.Code = ErrCodeAgentStuck
	case StopTimeout:
		result.Code = ErrCodeAgentTimeout
	}

	c.logger.Info("Agent task finished.",
		zap.String("reason", string(reason)),
		zap.Bool("success", result.Success),
		zap.Int("model_calls", len(result.Calls)),
		zap.Int("total_tokens", result.Usage.TotalTokens))
	return result
}

func (c *Controller) recordCall(promptTail string, completion *schemas.Completion, duration time.Duration) {
	classification := "message"
	summary := completion.Content
	if len(completion.ToolCalls) > 0 {
		classification = "tool_call"
		names := make([]string, 0, len(completion.ToolCalls))
		for _, tc := range completion.ToolCalls {
			names = append(names, tc.Name)
		}
		if summary == "" {
			summary = "tools: " + strings.Join(names, ", ")
		}
	}

	call := schemas.AgentCall{
		Index:           len(c.calls) + 1,
		Timestamp:       time.Now().UTC(),
		PromptExcerpt:   excerpt(promptTail),
		ResponseExcerpt: excerpt(summary),
		Duration:        duration.Seconds(),
		Classification:  classification,
	}
	if completion.Usage != nil {
		call.Usage = *completion.Usage
	}
	c.calls = append(c.calls, call)
}

func (c *Controller) totalUsageLocked() schemas.TokenUsage {
	total := schemas.TokenUsage{
		Model:     c.client.Model(),
		Timestamp: time.Now().UTC(),
	}
	for _, call := range c.calls {
		total.PromptTokens += call.Usage.PromptTokens
		total.CompletionTokens += call.Usage.CompletionTokens
		total.TotalTokens += call.Usage.TotalTokens
	}
	return total
}

// TotalUsage sums token usage across every call in the current session.
func (c *Controller) TotalUsage() schemas.TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalUsageLocked()
}

// Calls returns a snapshot of the session's model-call records.
func (c *Controller) Calls() []schemas.AgentCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]schemas.AgentCall(nil), c.calls...)
}

// ClearSession drops conversation history and call records, returning the
// controller to a fresh state for the next test.
func (c *Controller) ClearSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
	c.calls = nil
	c.logger.Debug("Agent session cleared.")
}

func (c *Controller) systemPrompt() string {
	basePrompt := `You are the controller of an automated browser test session.
Your goal is to complete the given test task by driving the browser through the provided tools.
Work one step at a time: call a tool, read its observation, then decide the next move.`

	rules := `

Rules:
1. Describe elements the way a human tester would ("the login button", "the email field").
2. Verify outcomes after important actions. A verification that keeps failing means the task cannot proceed.
3. Never invent URLs, credentials, or data. Use only what the task provides.
4. When every part of the task is done and verified, respond with "Test completed successfully" followed by a one-line summary.
5. If the task cannot be completed, respond with "Unable to proceed" and explain what blocked you.`

	errorHandling := `

Error handling:
- ERROR (ELEMENT_NOT_FOUND): the description matched nothing. Reword it, or check whether a navigation or wait must happen first.
- ERROR (VERIFICATION_MISMATCH): the page differs from what the task expects. Re-read the task and confirm you are on the right page.
- ERROR (NAVIGATION_FAILURE): the URL could not be loaded. Check it and retry once.
- ERROR (TIMEOUT_ERROR): the element did not appear in time. Wait again or take a different path.
- ERROR (INVALID_PARAMETERS): your tool call was missing an argument. Repeat it with every required argument filled.`

	return basePrompt + rules + errorHandling
}

// excerpt truncates s for logs and call records.
func excerpt(s string) string {
	runes := []rune(s)
	if len(runes) <= excerptLimit {
		return s
	}
	return string(runes[:excerptLimit]) + "..."
}
