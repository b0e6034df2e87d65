package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openloop-ai/openloop/types"
)

// OpenAIConfig configures an OpenAI-compatible provider.
type OpenAIConfig struct {
	ProviderName string
	APIKey       string
	BaseURL      string
	EndpointPath string        // defaults to "/v1/chat/completions"
	Timeout      time.Duration // defaults to 60s
}

// OpenAIProvider speaks the OpenAI chat-completions wire format, which
// most hosted LLM APIs accept.
type OpenAIProvider struct {
	config OpenAIConfig
	client *http.Client
	logger *zap.Logger
}

// NewOpenAIProvider creates an OpenAI-compatible provider.
func NewOpenAIProvider(config OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	if config.ProviderName == "" {
		config.ProviderName = "openai"
	}
	if config.EndpointPath == "" {
		config.EndpointPath = "/v1/chat/completions"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIProvider{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With(zap.String("provider", config.ProviderName)),
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string { return p.config.ProviderName }

// The wire format carries function arguments as a JSON-encoded string,
// not an embedded object.
type oaFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

type oaToolCall struct {
	ID       string     `json:"id"`
	Type     string     `json:"type"`
	Function oaFunction `json:"function"`
}

type oaMessage struct {
	Role       string       `json:"role"`
	Content    string       `json:"content,omitempty"`
	Name       string       `json:"name,omitempty"`
	ToolCalls  []oaToolCall `json:"tool_calls,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
}

type oaTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

type oaRequest struct {
	Model       string      `json:"model"`
	Messages    []oaMessage `json:"messages"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
	Temperature float32     `json:"temperature,omitempty"`
	Stop        []string    `json:"stop,omitempty"`
	Tools       []oaTool    `json:"tools,omitempty"`
	ToolChoice  string      `json:"tool_choice,omitempty"`
}

type oaResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Choices []struct {
		Index        int       `json:"index"`
		FinishReason string    `json:"finish_reason"`
		Message      oaMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Completion performs a non-streaming chat completion.
func (p *OpenAIProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	body := oaRequest{
		Model:       req.Model,
		Messages:    toOAMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stop:        req.Stop,
		Tools:       toOATools(req.Tools),
	}
	if len(body.Tools) > 0 && req.ToolChoice != "" {
		body.ToolChoice = string(req.ToolChoice)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(p.config.BaseURL, "/") + p.config.EndpointPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, err.Error()).
			WithRetryable(true).WithProvider(p.Name()).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, p.mapHTTPError(resp.StatusCode, resp.Body)
	}

	var oa oaResponse
	if err := json.NewDecoder(resp.Body).Decode(&oa); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "decode response").
			WithRetryable(true).WithProvider(p.Name()).WithCause(err)
	}
	if oa.Error != nil {
		return nil, types.NewError(types.ErrUpstreamError, oa.Error.Message).WithProvider(p.Name())
	}

	out := &ChatResponse{
		ID:       oa.ID,
		Provider: p.Name(),
		Model:    oa.Model,
		Usage: ChatUsage{
			PromptTokens:     oa.Usage.PromptTokens,
			CompletionTokens: oa.Usage.CompletionTokens,
			TotalTokens:      oa.Usage.TotalTokens,
		},
	}
	if oa.Created != 0 {
		out.CreatedAt = time.Unix(oa.Created, 0)
	}
	for _, ch := range oa.Choices {
		out.Choices = append(out.Choices, ChatChoice{
			Index:        ch.Index,
			FinishReason: ch.FinishReason,
			Message:      fromOAMessage(ch.Message),
		})
	}
	return out, nil
}

func (p *OpenAIProvider) mapHTTPError(status int, body io.Reader) error {
	msg := readErrorMessage(body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.NewError(types.ErrUnauthorized, msg).WithProvider(p.Name())
	case status == http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimited, msg).WithRetryable(true).WithProvider(p.Name())
	case status == http.StatusRequestEntityTooLarge:
		return types.NewError(types.ErrContextTooLong, msg).WithProvider(p.Name())
	case status >= 500:
		return types.NewError(types.ErrUpstreamError, msg).WithRetryable(true).WithProvider(p.Name())
	default:
		return types.NewError(types.ErrInvalidRequest, msg).WithProvider(p.Name())
	}
}

func readErrorMessage(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 4096))
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return strings.TrimSpace(string(data))
}

func toOAMessages(msgs []types.Message) []oaMessage {
	out := make([]oaMessage, 0, len(msgs))
	for _, m := range msgs {
		om := oaMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, oaToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: oaFunction{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		out = append(out, om)
	}
	return out
}

func toOATools(schemas []types.ToolSchema) []oaTool {
	out := make([]oaTool, 0, len(schemas))
	for _, s := range schemas {
		var t oaTool
		t.Type = "function"
		t.Function.Name = s.Name
		t.Function.Description = s.Description
		t.Function.Parameters = s.Parameters
		out = append(out, t)
	}
	return out
}

func fromOAMessage(m oaMessage) types.Message {
	msg := types.Message{
		Role:    types.Role(m.Role),
		Content: m.Content,
	}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, types.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return msg
}
