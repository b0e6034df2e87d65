package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/openloop-ai/openloop/internal/metrics"
	"github.com/openloop-ai/openloop/llm"
	"github.com/openloop-ai/openloop/memory"
	"github.com/openloop-ai/openloop/tool"
	"github.com/openloop-ai/openloop/types"
)

// ToolCallConfig configures the tool-calling step policy.
type ToolCallConfig struct {
	// ToolChoice controls whether the model may, must, or must not call
	// tools. Defaults to auto.
	ToolChoice llm.ToolChoice

	// SpecialTools end the run when they execute successfully. Matched
	// case-insensitively; defaults to the terminate tool.
	SpecialTools []string

	// MaxObserve truncates each tool observation to this many bytes.
	// Zero disables truncation.
	MaxObserve int

	// TokenCounter, when set, adds token counts to truncation logs so
	// prompt-growth savings are observable.
	TokenCounter *memory.TokenCounter
}

// ToolCallPolicy implements the think/act protocol with LLM-selected
// tool calls. Think records the model's decision; Act dispatches the
// selected calls sequentially and feeds results back into memory.
type ToolCallPolicy struct {
	client *llm.Client
	tools  *tool.Collection
	config ToolCallConfig

	collector *metrics.Collector

	pendingCalls   []types.ToolCall
	pendingContent string
}

// ToolCallOption configures a ToolCallPolicy.
type ToolCallOption func(*ToolCallPolicy)

// WithToolMetrics attaches a metrics collector to the policy.
func WithToolMetrics(c *metrics.Collector) ToolCallOption {
	return func(p *ToolCallPolicy) { p.collector = c }
}

// NewToolCallPolicy creates the tool-calling policy.
func NewToolCallPolicy(client *llm.Client, tools *tool.Collection, config ToolCallConfig, opts ...ToolCallOption) *ToolCallPolicy {
	if config.ToolChoice == "" {
		config.ToolChoice = llm.ToolChoiceAuto
	}
	if config.SpecialTools == nil {
		config.SpecialTools = []string{tool.TerminateName}
	}
	p := &ToolCallPolicy{
		client: client,
		tools:  tools,
		config: config,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Think asks the model for a tool-use decision over the full
// conversation and records it in memory.
func (p *ToolCallPolicy) Think(ctx context.Context, a *Agent) (bool, error) {
	if prompt := a.NextStepPrompt(); prompt != "" {
		a.Memory().AddMessage(types.NewUserMessage(prompt))
	}

	var system []types.Message
	if sp := a.SystemPrompt(); sp != "" {
		system = []types.Message{types.NewSystemMessage(sp)}
	}

	decision, err := p.client.AskTool(ctx, llm.AskToolRequest{
		Messages:       a.Memory().Messages(),
		SystemMessages: system,
		Tools:          p.tools.Schemas(),
		ToolChoice:     p.config.ToolChoice,
	})
	if err != nil {
		// LLM failures degrade into the conversation instead of
		// aborting the run.
		a.Logger().Error("think phase failed", zap.Error(err))
		a.Memory().AddMessage(types.NewAssistantMessage(
			fmt.Sprintf("Error encountered while processing: %s", err)))
		return false, nil
	}

	p.pendingCalls = decision.ToolCalls
	p.pendingContent = decision.Content

	a.Logger().Info("model decision",
		zap.Int("tool_calls", len(decision.ToolCalls)),
		zap.Bool("has_content", decision.Content != ""))

	if p.config.ToolChoice == llm.ToolChoiceNone {
		if len(decision.ToolCalls) > 0 {
			a.Logger().Warn("model proposed tool calls under tool_choice none, ignoring",
				zap.Int("dropped", len(decision.ToolCalls)))
			p.pendingCalls = nil
		}
		if decision.Content != "" {
			a.Memory().AddMessage(types.NewAssistantMessage(decision.Content))
			return true, nil
		}
		return false, nil
	}

	msg := types.NewAssistantMessage(decision.Content)
	if len(decision.ToolCalls) > 0 {
		msg = msg.WithToolCalls(decision.ToolCalls)
	}
	a.Memory().AddMessage(msg)

	if p.config.ToolChoice == llm.ToolChoiceRequired {
		return true, nil
	}
	return len(decision.ToolCalls) > 0 || decision.Content != "", nil
}

// Act dispatches the pending tool calls sequentially, in the order the
// model requested them, and returns the joined observations.
func (p *ToolCallPolicy) Act(ctx context.Context, a *Agent) (string, error) {
	calls := p.pendingCalls
	p.pendingCalls = nil

	if len(calls) == 0 {
		if p.config.ToolChoice == llm.ToolChoiceRequired {
			return "", ErrToolCallRequired
		}
		if p.pendingContent != "" {
			return p.pendingContent, nil
		}
		return "No content or commands to execute", nil
	}

	observations := make([]string, 0, len(calls))
	for _, call := range calls {
		res := p.executeCall(ctx, a, call)
		if p.config.MaxObserve > 0 && len(res.Output) > p.config.MaxObserve {
			res.Output = p.truncateObservation(a, res.Name, res.Output)
		}
		a.Memory().AddMessage(res.ToMessage())

		observation := res.Output
		if res.IsError() {
			observation = "Error: " + res.Error
		}
		observations = append(observations, observation)
	}
	return strings.Join(observations, "\n\n"), nil
}

// executeCall runs one tool call, degrading every failure into the
// result's error string so a bad call never aborts the run.
func (p *ToolCallPolicy) executeCall(ctx context.Context, a *Agent, call types.ToolCall) types.ToolResult {
	res := types.ToolResult{ToolCallID: call.ID, Name: call.Name}

	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if !json.Valid(args) {
		a.Logger().Warn("invalid tool arguments",
			zap.String("tool", call.Name),
			zap.String("arguments", string(call.Arguments)))
		p.record(call.Name, "invalid_args", 0)
		res.Error = fmt.Sprintf("parsing arguments for %s: invalid JSON", call.Name)
		return res
	}

	start := time.Now()
	result, err := p.tools.Execute(ctx, call.Name, args)
	res.Duration = time.Since(start)
	if err != nil {
		a.Logger().Warn("tool execution failed",
			zap.String("tool", call.Name),
			zap.Error(err))
		p.record(call.Name, "error", res.Duration)
		res.Error = err.Error()
		return res
	}
	p.record(call.Name, "ok", res.Duration)

	if p.isSpecial(call.Name) && (result == nil || result.Error == "") {
		a.Logger().Info("special tool completed, finishing run",
			zap.String("tool", call.Name))
		a.Finish()
	}

	if result != nil {
		res.Base64Image = result.Base64Image
		if result.Error != "" {
			res.Error = result.Error
			return res
		}
	}
	switch out := result.String(); out {
	case "":
		res.Output = fmt.Sprintf("Cmd `%s` completed with no output", call.Name)
	default:
		res.Output = fmt.Sprintf("Observed output of cmd `%s` executed:\n%s", call.Name, out)
	}
	return res
}

// truncateObservation trims output to MaxObserve bytes, backing off to
// a rune boundary so the model never sees invalid UTF-8.
func (p *ToolCallPolicy) truncateObservation(a *Agent, name, output string) string {
	cut := p.config.MaxObserve
	for cut > 0 && !utf8.RuneStart(output[cut]) {
		cut--
	}
	trimmed := output[:cut]

	fields := []zap.Field{
		zap.String("tool", name),
		zap.Int("bytes_before", len(output)),
		zap.Int("bytes_after", len(trimmed)),
	}
	if p.config.TokenCounter != nil {
		fields = append(fields,
			zap.Int("tokens_before", p.config.TokenCounter.Count(output)),
			zap.Int("tokens_after", p.config.TokenCounter.Count(trimmed)))
	}
	a.Logger().Debug("observation truncated", fields...)
	return trimmed
}

func (p *ToolCallPolicy) record(name, status string, duration time.Duration) {
	if p.collector != nil {
		p.collector.RecordToolExecution(name, status, duration)
	}
}

func (p *ToolCallPolicy) isSpecial(name string) bool {
	for _, s := range p.config.SpecialTools {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// Cleanup releases tool resources after a run.
func (p *ToolCallPolicy) Cleanup(ctx context.Context) {
	p.tools.CleanupAll(ctx)
}
