// Package llm defines the provider contract the runtime consumes and a
// client wrapper exposing the ask/askTool operations agents use. The
// provider itself is an external collaborator; only its contract and the
// resilience around it (retry, rate limit, cache) live here.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/openloop-ai/openloop/types"
)

// ErrEmptyResponse indicates the provider returned no choices at all.
var ErrEmptyResponse = errors.New("empty response from llm")

// ToolChoice controls how the model may use the offered tools.
type ToolChoice string

const (
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
)

// ChatRequest is a single completion request.
type ChatRequest struct {
	Model       string             `json:"model"`
	Messages    []types.Message    `json:"messages"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Temperature float32            `json:"temperature,omitempty"`
	Stop        []string           `json:"stop,omitempty"`
	Tools       []types.ToolSchema `json:"tools,omitempty"`
	ToolChoice  ToolChoice         `json:"tool_choice,omitempty"`
	Timeout     time.Duration      `json:"timeout,omitempty"`
}

// ChatUsage reports token accounting for a completion.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ChatChoice is one completion alternative.
type ChatChoice struct {
	Index        int           `json:"index"`
	FinishReason string        `json:"finish_reason,omitempty"`
	Message      types.Message `json:"message"`
}

// ChatResponse is the provider's answer to a ChatRequest.
type ChatResponse struct {
	ID        string       `json:"id,omitempty"`
	Provider  string       `json:"provider,omitempty"`
	Model     string       `json:"model"`
	Choices   []ChatChoice `json:"choices"`
	Usage     ChatUsage    `json:"usage,omitempty"`
	CreatedAt time.Time    `json:"created_at,omitempty"`
}

// Provider is the minimal LLM capability the runtime depends on.
type Provider interface {
	// Name returns the provider's identifier.
	Name() string
	// Completion performs a non-streaming chat completion.
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}
