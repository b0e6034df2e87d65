// Package agent implements the bounded step loop that turns LLM
// decisions into tool executions. A single concrete Agent drives the
// loop; the think/act behavior is a StepPolicy value injected at
// construction, so agent kinds compose instead of inheriting.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/openloop-ai/openloop/internal/metrics"
	"github.com/openloop-ai/openloop/memory"
	"github.com/openloop-ai/openloop/types"
)

const (
	defaultMaxSteps           = 10
	defaultDuplicateThreshold = 2

	// stuckPrompt is prepended to the next-step prompt when repetition
	// is detected.
	stuckPrompt = "Observed duplicate responses. Consider new strategies and avoid repeating ineffective paths already attempted."
)

// StepPolicy supplies the think/act behavior for one agent kind.
// Think consults the LLM and reports whether the agent should act; Act
// executes the decision and returns a human-readable observation.
type StepPolicy interface {
	Think(ctx context.Context, a *Agent) (bool, error)
	Act(ctx context.Context, a *Agent) (string, error)
}

// cleaner is an optional policy capability invoked after every run.
type cleaner interface {
	Cleanup(ctx context.Context)
}

// Config configures an Agent.
type Config struct {
	Name               string
	SystemPrompt       string
	NextStepPrompt     string
	MaxSteps           int
	DuplicateThreshold int
}

// Agent is the state machine driving a bounded think/act loop. It
// exclusively owns its memory and state; Run is single-flight.
type Agent struct {
	config Config
	policy StepPolicy
	memory *memory.Memory
	logger *zap.Logger

	stateMu sync.RWMutex
	state   State

	execMu      sync.Mutex
	currentStep int
	stuckPrefix string
	finished    bool

	collector *metrics.Collector
	tracer    trace.Tracer
}

// Option configures an Agent.
type Option func(*Agent)

// WithMetrics attaches a metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(a *Agent) { a.collector = c }
}

// New creates an agent around the given memory and step policy.
func New(config Config, mem *memory.Memory, policy StepPolicy, logger *zap.Logger, opts ...Option) *Agent {
	if config.MaxSteps <= 0 {
		config.MaxSteps = defaultMaxSteps
	}
	if config.DuplicateThreshold <= 0 {
		config.DuplicateThreshold = defaultDuplicateThreshold
	}
	if mem == nil {
		mem = memory.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Agent{
		config: config,
		policy: policy,
		memory: mem,
		logger: logger.With(zap.String("agent", config.Name)),
		state:  StateIdle,
		tracer: otel.Tracer("openloop/agent"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.config.Name }

// State returns the current lifecycle state.
func (a *Agent) State() State {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.state
}

// Terminated reports whether the last run ended through a special tool.
// The flag persists after Run restores the idle state, so an
// orchestrator can observe termination.
func (a *Agent) Terminated() bool {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.finished
}

// Memory returns the agent's conversation memory.
func (a *Agent) Memory() *memory.Memory { return a.memory }

// Logger returns the agent's logger.
func (a *Agent) Logger() *zap.Logger { return a.logger }

// SystemPrompt returns the configured system prompt.
func (a *Agent) SystemPrompt() string { return a.config.SystemPrompt }

// NextStepPrompt returns the next-step prompt with any corrective
// stuck prefix applied.
func (a *Agent) NextStepPrompt() string {
	if a.stuckPrefix == "" {
		return a.config.NextStepPrompt
	}
	return a.stuckPrefix + a.config.NextStepPrompt
}

// Finish transitions the running agent to finished; the loop stops
// before the next step.
func (a *Agent) Finish() {
	a.setState(StateFinished)
	a.stateMu.Lock()
	a.finished = true
	a.stateMu.Unlock()
}

// setState records a state change unconditionally. The run loop owns
// all transitions; restoration paths must not fail.
func (a *Agent) setState(to State) {
	a.stateMu.Lock()
	from := a.state
	a.state = to
	a.stateMu.Unlock()
	if from == to {
		return
	}
	a.logger.Debug("state transition", zap.String("from", string(from)), zap.String("to", string(to)))
	if a.collector != nil {
		a.collector.RecordStateTransition(a.config.Name, string(from), string(to))
	}
}

// Run drives the think/act loop until the policy signals completion or
// the step budget is exhausted, returning the joined per-step records.
// Run may only be called while the agent is idle.
func (a *Agent) Run(ctx context.Context, request string) (string, error) {
	if cur := a.State(); cur != StateIdle {
		return "", &ErrInvalidTransition{From: cur, To: StateRunning}
	}
	if !a.execMu.TryLock() {
		return "", ErrBusy
	}
	defer a.execMu.Unlock()

	// Re-check under the execution lock: a concurrent run may have won
	// the race between the state check and the lock.
	prev := a.State()
	if prev != StateIdle {
		return "", &ErrInvalidTransition{From: prev, To: StateRunning}
	}

	a.stateMu.Lock()
	a.finished = false
	a.stateMu.Unlock()

	if request != "" {
		a.memory.AddMessage(types.NewUserMessage(request))
	}

	ctx, span := a.tracer.Start(ctx, "agent.run",
		trace.WithAttributes(attribute.String("agent.name", a.config.Name)))
	defer span.End()

	a.setState(StateRunning)

	var runErr error
	// Scoped state restoration: runs on every exit. A step failure
	// forces the error state instead of restoring.
	defer func() {
		if runErr != nil {
			a.setState(StateError)
			return
		}
		a.setState(prev)
	}()
	defer func() {
		if c, ok := a.policy.(cleaner); ok {
			c.Cleanup(ctx)
		}
	}()

	var records []string
	for a.currentStep < a.config.MaxSteps && a.State() != StateFinished {
		a.currentStep++
		stepNum := a.currentStep
		a.logger.Info("executing step",
			zap.Int("step", stepNum),
			zap.Int("max_steps", a.config.MaxSteps),
			zap.Int("memory_messages", a.memory.Len()),
			zap.Int("memory_tokens", a.memory.TokenCount()))

		start := time.Now()
		result, err := a.step(ctx)
		if err != nil {
			if a.collector != nil {
				a.collector.RecordStep(a.config.Name, "error", time.Since(start))
			}
			runErr = fmt.Errorf("step %d: %w", stepNum, err)
			return "", runErr
		}
		if a.collector != nil {
			a.collector.RecordStep(a.config.Name, "ok", time.Since(start))
		}

		if a.isStuck() {
			a.handleStuck()
		} else {
			a.stuckPrefix = ""
		}

		records = append(records, fmt.Sprintf("Step %d: %s", stepNum, result))
	}

	if a.currentStep >= a.config.MaxSteps && a.State() != StateFinished {
		records = append(records, fmt.Sprintf("Terminated: reached max steps (%d)", a.config.MaxSteps))
	}
	// The step counter and stuck prefix reset on every exit, including
	// the finished path, so a terminated agent re-runs with a full
	// budget.
	a.currentStep = 0
	a.stuckPrefix = ""

	if len(records) == 0 {
		return "No steps executed", nil
	}
	return strings.Join(records, "\n"), nil
}

// step runs one think/act iteration. Every tool invocation in a step
// is decided before any of them execute.
func (a *Agent) step(ctx context.Context) (string, error) {
	ctx, span := a.tracer.Start(ctx, "agent.step",
		trace.WithAttributes(attribute.Int("agent.step", a.currentStep)))
	defer span.End()

	shouldAct, err := a.policy.Think(ctx, a)
	if err != nil {
		return "", err
	}
	if !shouldAct {
		return "Thinking complete - no action needed", nil
	}
	return a.policy.Act(ctx, a)
}

// isStuck reports whether the last message's content duplicates enough
// prior assistant messages to suggest a loop.
func (a *Agent) isStuck() bool {
	msgs := a.memory.Messages()
	if len(msgs) < 2 {
		return false
	}
	last := msgs[len(msgs)-1]
	if last.Content == "" {
		return false
	}
	count := 0
	for i := len(msgs) - 2; i >= 0; i-- {
		if msgs[i].Role == types.RoleAssistant && msgs[i].Content == last.Content {
			count++
		}
	}
	return count >= a.config.DuplicateThreshold
}

// handleStuck prepends the corrective directive to the next-step
// prompt. The prefix accumulates across consecutive detections and
// resets once a step is no longer stuck.
func (a *Agent) handleStuck() {
	a.stuckPrefix = stuckPrompt + "\n" + a.stuckPrefix
	a.logger.Warn("agent detected stuck state, adding corrective prompt")
	if a.collector != nil {
		a.collector.RecordStuck(a.config.Name)
	}
}

// Reset returns the agent to a pristine idle state, clearing memory.
func (a *Agent) Reset() {
	a.execMu.Lock()
	defer a.execMu.Unlock()
	a.stateMu.Lock()
	a.state = StateIdle
	a.finished = false
	a.stateMu.Unlock()
	a.currentStep = 0
	a.stuckPrefix = ""
	a.memory.Clear()
}
