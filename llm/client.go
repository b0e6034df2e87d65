package llm

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/openloop-ai/openloop/internal/metrics"
	"github.com/openloop-ai/openloop/types"
)

// AskRequest asks the model for a free-text answer.
type AskRequest struct {
	Messages       []types.Message
	SystemMessages []types.Message
	Temperature    float32
	Model          string
}

// AskToolRequest asks the model for a tool-use decision.
type AskToolRequest struct {
	Messages       []types.Message
	SystemMessages []types.Message
	Tools          []types.ToolSchema
	ToolChoice     ToolChoice
	Temperature    float32
	Model          string
}

// ToolDecision is the model's decision for one think phase: free-text
// content, requested tool calls, or both.
type ToolDecision struct {
	Content   string
	ToolCalls []types.ToolCall
}

// ClientConfig configures the client's resilience behavior.
type ClientConfig struct {
	Model             string
	MaxTokens         int
	Temperature       float32
	MaxRetries        int           // retries on retryable provider errors
	RetryBackoff      time.Duration // initial backoff, doubled per attempt
	RequestsPerMinute int           // 0 disables client-side rate limiting
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		MaxRetries:   3,
		RetryBackoff: time.Second,
	}
}

// Client wraps a Provider with retry, rate limiting and an optional
// completion cache, and exposes the ask operations agents consume.
type Client struct {
	provider  Provider
	config    ClientConfig
	limiter   *rate.Limiter
	cache     *Cache
	collector *metrics.Collector
	logger    *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCache attaches a completion cache. Only tool-free requests are
// cached; tool decisions must always reach the provider.
func WithCache(c *Cache) ClientOption {
	return func(cl *Client) { cl.cache = c }
}

// WithMetrics attaches a metrics collector; every provider request is
// recorded with its status, duration and usage tokens.
func WithMetrics(c *metrics.Collector) ClientOption {
	return func(cl *Client) { cl.collector = c }
}

// NewClient creates a client around the given provider.
func NewClient(provider Provider, config ClientConfig, logger *zap.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = time.Second
	}
	c := &Client{
		provider: provider,
		config:   config,
		logger:   logger.With(zap.String("provider", provider.Name())),
	}
	if config.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(float64(config.RequestsPerMinute)/60.0), config.RequestsPerMinute)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ask requests a free-text completion and returns the assistant content.
func (c *Client) Ask(ctx context.Context, req AskRequest) (string, error) {
	resp, err := c.complete(ctx, c.buildRequest(req.SystemMessages, req.Messages, nil, "", req.Temperature, req.Model))
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}

// AskTool requests a tool-use decision against the offered schemas.
func (c *Client) AskTool(ctx context.Context, req AskToolRequest) (*ToolDecision, error) {
	choice := req.ToolChoice
	if choice == "" {
		choice = ToolChoiceAuto
	}
	resp, err := c.complete(ctx, c.buildRequest(req.SystemMessages, req.Messages, req.Tools, choice, req.Temperature, req.Model))
	if err != nil {
		return nil, err
	}
	msg := resp.Choices[0].Message
	return &ToolDecision{
		Content:   msg.Content,
		ToolCalls: msg.ToolCalls,
	}, nil
}

func (c *Client) buildRequest(system, messages []types.Message, tools []types.ToolSchema, choice ToolChoice, temperature float32, model string) *ChatRequest {
	all := make([]types.Message, 0, len(system)+len(messages))
	all = append(all, system...)
	all = append(all, messages...)

	if model == "" {
		model = c.config.Model
	}
	if temperature == 0 {
		temperature = c.config.Temperature
	}
	return &ChatRequest{
		Model:       model,
		Messages:    all,
		MaxTokens:   c.config.MaxTokens,
		Temperature: temperature,
		Tools:       tools,
		ToolChoice:  choice,
	}
}

// complete runs one request through rate limit, cache and retry, and
// guarantees a response with at least one choice on success.
func (c *Client) complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	cacheable := c.cache != nil && len(req.Tools) == 0
	if cacheable {
		if resp, ok := c.cache.Get(ctx, req); ok {
			c.logger.Debug("completion cache hit", zap.String("model", req.Model))
			return resp, nil
		}
	}

	var lastErr error
	backoff := c.config.RetryBackoff
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying llm request",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		resp, err := c.provider.Completion(ctx, req)
		elapsed := time.Since(start)
		if err != nil {
			c.recordRequest("error", elapsed, ChatUsage{})
			lastErr = err
			if types.IsRetryable(err) {
				continue
			}
			return nil, err
		}
		if resp == nil || len(resp.Choices) == 0 {
			c.recordRequest("empty", elapsed, ChatUsage{})
			return nil, ErrEmptyResponse
		}
		c.recordRequest("ok", elapsed, resp.Usage)
		if cacheable {
			c.cache.Set(ctx, req, resp)
		}
		return resp, nil
	}
	return nil, lastErr
}

func (c *Client) recordRequest(status string, duration time.Duration, usage ChatUsage) {
	if c.collector == nil {
		return
	}
	c.collector.RecordLLMRequest(c.provider.Name(), status, duration,
		usage.PromptTokens, usage.CompletionTokens)
}

// Provider returns the wrapped provider.
func (c *Client) Provider() Provider { return c.provider }

// Model returns the configured default model.
func (c *Client) Model() string { return strings.TrimSpace(c.config.Model) }
