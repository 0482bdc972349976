package schemas

import (
	"context"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in an agent conversation. Tool results reference the
// call they answer via ToolCallID.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a model-requested invocation of a named tool.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolParam describes a single parameter of a tool.
type ToolParam struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

// ToolSpec declares a tool to the model: its name, what it does, and the
// parameters it accepts. Providers render this into their own schema format.
type ToolSpec struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Params      map[string]ToolParam `json:"params"`
	Required    []string             `json:"required,omitempty"`
}

// TokenUsage is the token consumption of one language-model call.
type TokenUsage struct {
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	Model            string    `json:"model"`
	Timestamp        time.Time `json:"timestamp"`
}

// Completion is the model's reply to one Invoke call. Clients always fill
// Usage, estimating token counts when the provider omits them.
type Completion struct {
	Content   string      `json:"content"`
	ToolCalls []ToolCall  `json:"tool_calls,omitempty"`
	Usage     *TokenUsage `json:"usage,omitempty"`
}

// LLMClient is a synchronous language-model service.
type LLMClient interface {
	// Invoke sends the full message history plus the available tools and
	// returns the model's next message.
	Invoke(ctx context.Context, messages []Message, tools []ToolSpec) (*Completion, error)
	// Model reports the model identifier used for pricing.
	Model() string
}
