package llmclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/config"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/observability"
)

// GeminiClient drives Google Gemini models through the official genai SDK.
type GeminiClient struct {
	cfg     config.LLMConfig
	client  *genai.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ schemas.LLMClient = (*GeminiClient)(nil)

// NewGeminiClient initializes the SDK client.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Gemini API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("Gemini model is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClient{
		cfg:     cfg,
		client:  client,
		limiter: newLimiter(cfg.RequestsPerMinute),
		logger:  observability.GetLogger().Named("llm_client.gemini"),
	}, nil
}

// Model reports the configured model identifier.
func (c *GeminiClient) Model() string {
	return c.cfg.Model
}

// Invoke sends the conversation to Gemini and returns the model's next
// message. Transient failures surface to the caller; the engine's retry
// ladder owns recovery at that level.
func (c *GeminiClient) Invoke(ctx context.Context, messages []schemas.Message, tools []schemas.ToolSpec) (*schemas.Completion, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait aborted: %w", err)
	}

	contents, system := toGeminiContents(messages)

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(c.cfg.Temperature)),
	}
	if system != "" {
		genCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}
	if c.cfg.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(c.cfg.MaxTokens)
	}
	if decls := toGeminiTools(tools); len(decls) > 0 {
		genCfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	startTime := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, genCfg)
	duration := time.Since(startTime)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("gemini API returned no candidates")
	}

	completion := &schemas.Completion{}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			id := part.FunctionCall.ID
			if id == "" {
				id = uuid.NewString()
			}
			completion.ToolCalls = append(completion.ToolCalls, schemas.ToolCall{
				ID:   id,
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
	}
	completion.Content = text.String()

	if meta := resp.UsageMetadata; meta != nil {
		total := int(meta.TotalTokenCount)
		if total == 0 {
			total = int(meta.PromptTokenCount) + int(meta.CandidatesTokenCount)
		}
		completion.Usage = &schemas.TokenUsage{
			PromptTokens:     int(meta.PromptTokenCount),
			CompletionTokens: int(meta.CandidatesTokenCount),
			TotalTokens:      total,
			Model:            c.cfg.Model,
			Timestamp:        time.Now().UTC(),
		}
	} else {
		c.logger.Debug("Provider omitted token usage; estimating.", zap.String("model", c.cfg.Model))
		completion.Usage = estimateUsage(c.cfg.Model, messages, completion.Content)
	}

	c.logger.Debug("LLM generation complete (Gemini).",
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", completion.Usage.PromptTokens),
		zap.Int("completion_tokens", completion.Usage.CompletionTokens),
		zap.Int("tool_calls", len(completion.ToolCalls)),
	)
	return completion, nil
}

// toGeminiContents converts conversation history to SDK contents. System
// messages concatenate into the system instruction; tool results travel as
// function-response parts on user turns.
func toGeminiContents(messages []schemas.Message) ([]*genai.Content, string) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case schemas.RoleSystem:
			system = append(system, m.Content)
		case schemas.RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   tc.ID,
						Name: tc.Name,
						Args: tc.Args,
					},
				})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})
		case schemas.RoleTool:
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       m.ToolCallID,
						Name:     m.Name,
						Response: map[string]any{"output": m.Content},
					},
				}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}
	return contents, strings.Join(system, "\n\n")
}

func toGeminiTools(tools []schemas.ToolSpec) []*genai.FunctionDeclaration {
	if len(tools) == 0 {
		return nil
	}
	out := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		properties := make(map[string]*genai.Schema, len(t.Params))
		for name, p := range t.Params {
			properties[name] = &genai.Schema{
				Type:        geminiSchemaType(p.Type),
				Description: p.Description,
				Enum:        p.Enum,
			}
		}
		out = append(out, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: properties,
				Required:   t.Required,
			},
		})
	}
	return out
}

func geminiSchemaType(t string) genai.Type {
	switch t {
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}
