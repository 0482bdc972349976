package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/config"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/observability"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient talks to the OpenAI chat completions endpoint, or any
// compatible server selected via base_url.
type OpenAIClient struct {
	cfg            config.LLMConfig
	endpoint       string
	httpClient     *http.Client
	limiter        *rate.Limiter
	logger         *zap.Logger
	backoffFactory func() backoff.BackOff
}

var _ schemas.LLMClient = (*OpenAIClient)(nil)

// -- Chat completions wire format --

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatTool struct {
	Type     string            `json:"type"`
	Function chatToolModelSpec `json:"function"`
}

type chatToolModelSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools,omitempty"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      chatMessage `json:"message"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage,omitempty"`
}

type chatErrorPayload struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewOpenAIClient initializes the client.
func NewOpenAIClient(cfg config.LLMConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("OpenAI model is required")
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultOpenAIBaseURL
	}

	return &OpenAIClient{
		cfg:      cfg,
		endpoint: base + "/chat/completions",
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		limiter: newLimiter(cfg.RequestsPerMinute),
		logger:  observability.GetLogger().Named("llm_client.openai"),
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = cfg.MaxRetryElapsed
			b.MaxInterval = 30 * time.Second
			return b
		},
	}, nil
}

// Model reports the configured model identifier.
func (c *OpenAIClient) Model() string {
	return c.cfg.Model
}

// Invoke sends the conversation to the chat completions API and returns the
// model's next message, retrying transient failures with backoff.
func (c *OpenAIClient) Invoke(ctx context.Context, messages []schemas.Message, tools []schemas.ToolSpec) (*schemas.Completion, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait aborted: %w", err)
	}

	payload := chatRequest{
		Model:       c.cfg.Model,
		Messages:    toChatMessages(messages),
		Tools:       toChatTools(tools),
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	var completion *schemas.Completion

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		startTime := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		duration := time.Since(startTime)

		if err != nil {
			c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var parsed chatResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}
		if len(parsed.Choices) == 0 {
			return backoff.Permanent(errors.New("openai API returned no choices"))
		}

		choice := parsed.Choices[0]
		completion = &schemas.Completion{
			Content:   choice.Message.Content,
			ToolCalls: c.parseToolCalls(choice.Message.ToolCalls),
		}
		completion.Usage = c.buildUsage(&parsed, messages, completion.Content)

		c.logger.Debug("LLM generation complete (OpenAI).",
			zap.Duration("duration", duration),
			zap.String("finish_reason", choice.FinishReason),
			zap.Int("prompt_tokens", completion.Usage.PromptTokens),
			zap.Int("completion_tokens", completion.Usage.CompletionTokens),
		)
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.backoffFactory(), ctx)); err != nil {
		return nil, err
	}
	return completion, nil
}

func (c *OpenAIClient) handleAPIError(statusCode int, body []byte) error {
	message := string(body)
	var payload chatErrorPayload
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		message = payload.Error.Message
	}

	c.logger.Error("OpenAI API returned error status",
		zap.Int("status", statusCode),
		zap.String("message", message))
	err := fmt.Errorf("openai API error: status %d: %s", statusCode, message)

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return err // Transient errors, retry.
	default:
		return backoff.Permanent(err)
	}
}

// parseToolCalls decodes each call's argument blob. A malformed blob is not
// fatal: the call survives with empty arguments and the tool layer reports
// what was missing back to the model.
func (c *OpenAIClient) parseToolCalls(calls []chatToolCall) []schemas.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]schemas.ToolCall, 0, len(calls))
	for _, tc := range calls {
		args := make(map[string]any)
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				c.logger.Warn("Tool call arguments are not valid JSON.",
					zap.String("tool", tc.Function.Name),
					zap.Error(err))
				args = make(map[string]any)
			}
		}
		out = append(out, schemas.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}
	return out
}

func (c *OpenAIClient) buildUsage(parsed *chatResponse, messages []schemas.Message, content string) *schemas.TokenUsage {
	model := parsed.Model
	if model == "" {
		model = c.cfg.Model
	}
	if parsed.Usage == nil {
		c.logger.Debug("Provider omitted token usage; estimating.", zap.String("model", model))
		usage := estimateUsage(model, messages, content)
		return usage
	}
	return &schemas.TokenUsage{
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
		Model:            model,
		Timestamp:        time.Now().UTC(),
	}
}

func toChatMessages(messages []schemas.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		cm := chatMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			args, err := json.Marshal(tc.Args)
			if err != nil {
				args = []byte("{}")
			}
			cm.ToolCalls = append(cm.ToolCalls, chatToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: chatFunction{
					Name:      tc.Name,
					Arguments: string(args),
				},
			})
		}
		out = append(out, cm)
	}
	return out
}

func toChatTools(tools []schemas.ToolSpec) []chatTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]chatTool, 0, len(tools))
	for _, t := range tools {
		properties := make(map[string]any, len(t.Params))
		for name, p := range t.Params {
			prop := map[string]any{
				"type":        p.Type,
				"description": p.Description,
			}
			if len(p.Enum) > 0 {
				prop["enum"] = p.Enum
			}
			properties[name] = prop
		}
		parameters := map[string]any{
			"type":       "object",
			"properties": properties,
		}
		if len(t.Required) > 0 {
			parameters["required"] = t.Required
		}
		out = append(out, chatTool{
			Type: "function",
			Function: chatToolModelSpec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  parameters,
			},
		})
	}
	return out
}
