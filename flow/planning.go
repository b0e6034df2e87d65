// Package flow orchestrates agents against a plan: an ordered checklist
// of steps executed strictly in sequence, each delegated to an agent
// selected by a routing table, with progress tracked through the
// planning tool.
package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/openloop-ai/openloop/agent"
	"github.com/openloop-ai/openloop/llm"
	"github.com/openloop-ai/openloop/tool"
	"github.com/openloop-ai/openloop/types"
)

// stepTypeTag matches a bracketed executor tag embedded in a step's
// text, e.g. "[SEARCH] find the docs".
var stepTypeTag = regexp.MustCompile(`\[([A-Z_]+)\]`)

// defaultPlanSteps is the deterministic fallback used when the model
// fails to call the planning tool during plan creation.
var defaultPlanSteps = []string{"Analyze request", "Execute task", "Verify results"}

const planningSystemPrompt = "You are a planning assistant. Create a concise, actionable plan with clear steps. " +
	"Focus on key milestones rather than detailed sub-steps. Optimize for clarity and efficiency."

// PlanningFlow drives one or more agents through a plan. Steps execute
// one at a time, earliest incomplete first; later steps may depend on
// earlier ones' side effects.
type PlanningFlow struct {
	client   *llm.Client
	planning *tool.Planning
	agents   map[string]*agent.Agent
	primary  string
	keys     []string
	planID   string
	store    *PlanStore
	logger   *zap.Logger
	tracer   trace.Tracer
}

// FlowOption configures a PlanningFlow.
type FlowOption func(*PlanningFlow)

// WithExecutors sets the ordered executor keys consulted when a step
// carries no type tag. Keys must name registered agents.
func WithExecutors(keys ...string) FlowOption {
	return func(f *PlanningFlow) { f.keys = keys }
}

// WithPlanID fixes the plan id instead of generating one.
func WithPlanID(id string) FlowOption {
	return func(f *PlanningFlow) { f.planID = id }
}

// WithStore attaches a persistent plan store; every plan mutation is
// written through best-effort.
func WithStore(s *PlanStore) FlowOption {
	return func(f *PlanningFlow) { f.store = s }
}

// NewPlanningFlow creates a flow over the given agents. The primary key
// names the default executor and the summary fallback agent.
func NewPlanningFlow(client *llm.Client, planning *tool.Planning, agents map[string]*agent.Agent, primary string, logger *zap.Logger, opts ...FlowOption) (*PlanningFlow, error) {
	if planning == nil {
		return nil, fmt.Errorf("planning tool is required")
	}
	if len(agents) == 0 {
		return nil, fmt.Errorf("at least one agent is required")
	}
	if _, ok := agents[primary]; !ok {
		return nil, fmt.Errorf("primary agent %q is not registered", primary)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &PlanningFlow{
		client:   client,
		planning: planning,
		agents:   agents,
		primary:  primary,
		logger:   logger.With(zap.String("flow", "planning")),
		tracer:   otel.Tracer("openloop/flow"),
	}
	for _, opt := range opts {
		opt(f)
	}
	for _, key := range f.keys {
		if _, ok := agents[key]; !ok {
			return nil, fmt.Errorf("executor %q is not registered", key)
		}
	}
	if f.planID == "" {
		f.planID = "plan_" + uuid.NewString()[:8]
	}
	return f, nil
}

// PlanID returns the flow's plan identifier.
func (f *PlanningFlow) PlanID() string { return f.planID }

// Execute creates a plan for the goal and runs it to completion,
// returning the accumulated per-step results plus a final summary.
func (f *PlanningFlow) Execute(ctx context.Context, goal string) (string, error) {
	ctx, span := f.tracer.Start(ctx, "flow.execute",
		trace.WithAttributes(attribute.String("plan.id", f.planID)))
	defer span.End()

	if goal != "" && !f.planStarted() {
		if err := f.createInitialPlan(ctx, goal); err != nil {
			return "", fmt.Errorf("create plan: %w", err)
		}
	}

	var results []string
	for {
		plan, ok := f.planning.Plan(f.planID)
		if !ok {
			return "", fmt.Errorf("plan %s not found", f.planID)
		}

		idx, stepText := nextStep(plan)
		if idx < 0 {
			summary := f.finalize(ctx)
			results = append(results, summary)
			break
		}

		f.markStep(ctx, idx, tool.StepInProgress)

		executor := f.selectExecutor(stepText)
		f.logger.Info("executing plan step",
			zap.Int("index", idx),
			zap.String("step", stepText),
			zap.String("executor", executor.Name()))

		stepCtx, stepSpan := f.tracer.Start(ctx, "flow.step",
			trace.WithAttributes(
				attribute.Int("step.index", idx),
				attribute.String("step.executor", executor.Name())))
		stepResult, err := executor.Run(stepCtx, f.stepPrompt(plan, stepText))
		stepSpan.End()
		if err != nil {
			f.markStep(ctx, idx, tool.StepBlocked)
			return strings.Join(results, "\n\n"), fmt.Errorf("step %d (%s): %w", idx, stepText, err)
		}
		f.markStep(ctx, idx, tool.StepCompleted)
		results = append(results, stepResult)

		if executor.Terminated() {
			f.logger.Info("executor terminated, ending plan early",
				zap.String("executor", executor.Name()))
			summary := f.finalize(ctx)
			results = append(results, summary)
			break
		}
	}
	return strings.Join(results, "\n\n"), nil
}

// planStarted reports whether the flow's plan exists with any step past
// not_started. Once work has begun, re-executing resumes the existing
// plan instead of failing on a duplicate plan id.
func (f *PlanningFlow) planStarted() bool {
	plan, ok := f.planning.Plan(f.planID)
	if !ok {
		return false
	}
	for _, status := range plan.StepStatuses {
		if status != tool.StepNotStarted {
			return true
		}
	}
	return false
}

// createInitialPlan asks the model to shape the goal into a plan via
// the planning tool, falling back to a deterministic default plan. An
// existing plan whose steps are all untouched is replaced.
func (f *PlanningFlow) createInitialPlan(ctx context.Context, goal string) error {
	decision, err := f.client.AskTool(ctx, llm.AskToolRequest{
		SystemMessages: []types.Message{types.NewSystemMessage(planningSystemPrompt)},
		Messages: []types.Message{types.NewUserMessage(
			fmt.Sprintf("Create a reasonable plan with clear steps to accomplish the task: %s", goal))},
		Tools:      []types.ToolSchema{tool.Schema(f.planning)},
		ToolChoice: llm.ToolChoiceRequired,
	})

	title, steps := "", []string(nil)
	if err != nil {
		f.logger.Warn("plan generation failed, using default plan", zap.Error(err))
	} else {
		title, steps = parsePlanDecision(decision)
	}
	if len(steps) == 0 {
		title = fmt.Sprintf("Plan for: %s", truncate(goal, 50))
		steps = defaultPlanSteps
	}

	if _, ok := f.planning.Plan(f.planID); ok {
		delArgs, _ := json.Marshal(map[string]any{
			"command": "delete",
			"plan_id": f.planID,
		})
		if _, err := f.planning.Execute(ctx, delArgs); err != nil {
			f.logger.Warn("replacing unstarted plan failed", zap.Error(err))
		}
	}

	args, _ := json.Marshal(map[string]any{
		"command": "create",
		"plan_id": f.planID,
		"title":   title,
		"steps":   steps,
	})
	if _, err := f.planning.Execute(ctx, args); err != nil {
		return err
	}
	f.persist(ctx)
	return nil
}

// parsePlanDecision extracts title and steps from the model's planning
// tool call, if it made one.
func parsePlanDecision(decision *llm.ToolDecision) (string, []string) {
	for _, call := range decision.ToolCalls {
		if !strings.EqualFold(call.Name, tool.PlanningName) {
			continue
		}
		var args struct {
			Title string   `json:"title"`
			Steps []string `json:"steps"`
		}
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			continue
		}
		if len(args.Steps) > 0 {
			return args.Title, args.Steps
		}
	}
	return "", nil
}

// nextStep returns the index and text of the first incomplete step, or
// -1 when the plan is exhausted.
func nextStep(plan *tool.Plan) (int, string) {
	for i, status := range plan.StepStatuses {
		if status == tool.StepNotStarted || status == tool.StepInProgress {
			return i, plan.Steps[i]
		}
	}
	return -1, ""
}

// selectExecutor routes a step to an agent: a bracketed type tag wins,
// then the first configured executor key, then the primary agent.
func (f *PlanningFlow) selectExecutor(stepText string) *agent.Agent {
	if m := stepTypeTag.FindStringSubmatch(stepText); m != nil {
		if a, ok := f.agents[strings.ToLower(m[1])]; ok {
			return a
		}
	}
	if len(f.keys) > 0 {
		return f.agents[f.keys[0]]
	}
	return f.agents[f.primary]
}

func (f *PlanningFlow) stepPrompt(plan *tool.Plan, stepText string) string {
	return fmt.Sprintf(
		"CURRENT PLAN STATUS:\n%s\n\nYOUR CURRENT TASK:\nYou are now working on step: %s\n\n"+
			"Please execute this step using the appropriate tools. When you're done, provide a summary of what you accomplished.",
		plan.Format(), stepText)
}

// markStep updates a step's status best-effort: if the planning command
// fails the in-memory plan is patched directly, so completion is never
// lost.
func (f *PlanningFlow) markStep(ctx context.Context, idx int, status string) {
	args, _ := json.Marshal(map[string]any{
		"command":     "mark_step",
		"plan_id":     f.planID,
		"step_index":  idx,
		"step_status": status,
	})
	if _, err := f.planning.Execute(ctx, args); err != nil {
		f.logger.Warn("mark_step failed, patching plan directly",
			zap.Int("index", idx),
			zap.String("status", status),
			zap.Error(err))
		if plan, ok := f.planning.Plan(f.planID); ok && idx >= 0 && idx < len(plan.StepStatuses) {
			plan.StepStatuses[idx] = status
		}
	}
	f.persist(ctx)
}

// finalize renders the finished plan and asks the model to summarize
// the outcome, delegating to the primary agent when the direct call
// fails. Summary failures degrade to the plan text alone.
func (f *PlanningFlow) finalize(ctx context.Context) string {
	plan, ok := f.planning.Plan(f.planID)
	if !ok {
		return "Plan completed."
	}
	planText := plan.Format()

	prompt := fmt.Sprintf(
		"The plan has been completed. Here is the final plan status:\n\n%s\n\n"+
			"Please provide a summary of what was accomplished and any final thoughts.",
		planText)

	summary, err := f.client.Ask(ctx, llm.AskRequest{
		SystemMessages: []types.Message{types.NewSystemMessage(planningSystemPrompt)},
		Messages:       []types.Message{types.NewUserMessage(prompt)},
	})
	if err != nil {
		f.logger.Warn("summary request failed, delegating to primary agent", zap.Error(err))
		if out, aerr := f.agents[f.primary].Run(ctx, prompt); aerr == nil {
			summary = out
		} else {
			f.logger.Warn("primary agent summary failed", zap.Error(aerr))
			return "Plan completed:\n\n" + planText
		}
	}
	return "Plan completed:\n\n" + planText + "\n\nSummary: " + summary
}

// persist writes the current plan through to the store, if configured.
func (f *PlanningFlow) persist(ctx context.Context) {
	if f.store == nil {
		return
	}
	plan, ok := f.planning.Plan(f.planID)
	if !ok {
		return
	}
	if err := f.store.Save(ctx, plan); err != nil {
		f.logger.Warn("plan persistence failed", zap.Error(err))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
