package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// PlanningName is the name of the planning tool.
const PlanningName = "planning"

// Step statuses.
const (
	StepNotStarted = "not_started"
	StepInProgress = "in_progress"
	StepCompleted  = "completed"
	StepBlocked    = "blocked"
)

var stepStatusMarks = map[string]string{
	StepNotStarted: "[ ]",
	StepInProgress: "[→]",
	StepCompleted:  "[✓]",
	StepBlocked:    "[!]",
}

// Plan is an ordered, stateful checklist of steps tracked independently
// of any single agent's memory. The three step arrays always have equal
// length.
type Plan struct {
	ID           string   `json:"plan_id"`
	Title        string   `json:"title"`
	Steps        []string `json:"steps"`
	StepStatuses []string `json:"step_statuses"`
	StepNotes    []string `json:"step_notes"`
}

// Progress returns completed and total step counts.
func (p *Plan) Progress() (completed, total int) {
	for _, s := range p.StepStatuses {
		if s == StepCompleted {
			completed++
		}
	}
	return completed, len(p.Steps)
}

// Format renders the plan with progress and per-step status marks.
func (p *Plan) Format() string {
	var b strings.Builder
	header := fmt.Sprintf("Plan: %s (ID: %s)", p.Title, p.ID)
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("=", len(header)) + "\n\n")

	completed, total := p.Progress()
	pct := 0.0
	if total > 0 {
		pct = float64(completed) / float64(total) * 100
	}
	fmt.Fprintf(&b, "Progress: %d/%d steps completed (%.1f%%)\n", completed, total, pct)

	counts := map[string]int{}
	for _, s := range p.StepStatuses {
		counts[s]++
	}
	fmt.Fprintf(&b, "Status: %d completed, %d in progress, %d blocked, %d not started\n\n",
		counts[StepCompleted], counts[StepInProgress], counts[StepBlocked], counts[StepNotStarted])

	b.WriteString("Steps:\n")
	for i, step := range p.Steps {
		mark := stepStatusMarks[p.StepStatuses[i]]
		fmt.Fprintf(&b, "%d. %s %s\n", i, mark, step)
		if p.StepNotes[i] != "" {
			fmt.Fprintf(&b, "   Notes: %s\n", p.StepNotes[i])
		}
	}
	return b.String()
}

// planningArgs is the argument shape shared by all planning commands.
type planningArgs struct {
	Command    string   `json:"command"`
	PlanID     string   `json:"plan_id,omitempty"`
	Title      string   `json:"title,omitempty"`
	Steps      []string `json:"steps,omitempty"`
	StepIndex  *int     `json:"step_index,omitempty"`
	StepStatus string   `json:"step_status,omitempty"`
	StepNotes  string   `json:"step_notes,omitempty"`
}

// Planning manages plans through create/update/list/get/set_active/
// mark_step/delete commands. Plans live for the process lifetime; the
// flow may snapshot them elsewhere.
type Planning struct {
	mu     sync.Mutex
	plans  map[string]*Plan
	active string
}

// NewPlanning creates an empty planning tool.
func NewPlanning() *Planning {
	return &Planning{plans: make(map[string]*Plan)}
}

func (p *Planning) Name() string { return PlanningName }

func (p *Planning) Description() string {
	return "A planning tool that lets the agent create and manage plans for solving complex tasks. " +
		"Commands: create, update, list, get, set_active, mark_step, delete."
}

func (p *Planning) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {
				"type": "string",
				"description": "The command to execute.",
				"enum": ["create", "update", "list", "get", "set_active", "mark_step", "delete"]
			},
			"plan_id": {"type": "string", "description": "Unique plan identifier."},
			"title": {"type": "string", "description": "Plan title."},
			"steps": {"type": "array", "items": {"type": "string"}, "description": "Ordered list of plan steps."},
			"step_index": {"type": "integer", "description": "Index of the step to update (0-based)."},
			"step_status": {
				"type": "string",
				"enum": ["not_started", "in_progress", "completed", "blocked"],
				"description": "New status for the step."
			},
			"step_notes": {"type": "string", "description": "Notes to attach to the step."}
		},
		"required": ["command"]
	}`)
}

func (p *Planning) Execute(_ context.Context, args json.RawMessage) (*Result, error) {
	var a planningArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("parse planning arguments: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch a.Command {
	case "create":
		return p.create(a)
	case "update":
		return p.update(a)
	case "list":
		return p.list()
	case "get":
		return p.get(a)
	case "set_active":
		return p.setActive(a)
	case "mark_step":
		return p.markStep(a)
	case "delete":
		return p.deletePlan(a)
	default:
		return nil, fmt.Errorf("unknown planning command %q", a.Command)
	}
}

func (p *Planning) create(a planningArgs) (*Result, error) {
	if a.PlanID == "" {
		return nil, fmt.Errorf("plan_id is required for command: create")
	}
	if _, exists := p.plans[a.PlanID]; exists {
		return nil, fmt.Errorf("plan with id %s already exists", a.PlanID)
	}
	if a.Title == "" {
		return nil, fmt.Errorf("title is required for command: create")
	}
	if len(a.Steps) == 0 {
		return nil, fmt.Errorf("steps are required for command: create")
	}

	plan := &Plan{
		ID:           a.PlanID,
		Title:        a.Title,
		Steps:        append([]string(nil), a.Steps...),
		StepStatuses: make([]string, len(a.Steps)),
		StepNotes:    make([]string, len(a.Steps)),
	}
	for i := range plan.StepStatuses {
		plan.StepStatuses[i] = StepNotStarted
	}
	p.plans[a.PlanID] = plan
	p.active = a.PlanID
	return &Result{Output: "Plan created successfully with ID: " + a.PlanID + "\n\n" + plan.Format()}, nil
}

// update replaces the step list; statuses and notes for steps whose
// text is unchanged at the same index are preserved, others reset.
func (p *Planning) update(a planningArgs) (*Result, error) {
	plan, err := p.resolve(a.PlanID)
	if err != nil {
		return nil, err
	}
	if a.Title != "" {
		plan.Title = a.Title
	}
	if a.Steps != nil {
		statuses := make([]string, len(a.Steps))
		notes := make([]string, len(a.Steps))
		for i, step := range a.Steps {
			if i < len(plan.Steps) && plan.Steps[i] == step {
				statuses[i] = plan.StepStatuses[i]
				notes[i] = plan.StepNotes[i]
			} else {
				statuses[i] = StepNotStarted
			}
		}
		plan.Steps = append([]string(nil), a.Steps...)
		plan.StepStatuses = statuses
		plan.StepNotes = notes
	}
	return &Result{Output: "Plan updated successfully: " + plan.ID + "\n\n" + plan.Format()}, nil
}

func (p *Planning) list() (*Result, error) {
	if len(p.plans) == 0 {
		return &Result{Output: "No plans available. Create a plan with the 'create' command."}, nil
	}
	ids := make([]string, 0, len(p.plans))
	for id := range p.plans {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("Available plans:\n")
	for _, id := range ids {
		plan := p.plans[id]
		completed, total := plan.Progress()
		marker := ""
		if id == p.active {
			marker = " (active)"
		}
		fmt.Fprintf(&b, "• %s%s: %s - %d/%d steps completed\n", id, marker, plan.Title, completed, total)
	}
	return &Result{Output: b.String()}, nil
}

func (p *Planning) get(a planningArgs) (*Result, error) {
	plan, err := p.resolve(a.PlanID)
	if err != nil {
		return nil, err
	}
	return &Result{Output: plan.Format()}, nil
}

func (p *Planning) setActive(a planningArgs) (*Result, error) {
	if a.PlanID == "" {
		return nil, fmt.Errorf("plan_id is required for command: set_active")
	}
	plan, ok := p.plans[a.PlanID]
	if !ok {
		return nil, fmt.Errorf("no plan found with id %s", a.PlanID)
	}
	p.active = a.PlanID
	return &Result{Output: "Plan " + a.PlanID + " is now the active plan.\n\n" + plan.Format()}, nil
}

func (p *Planning) markStep(a planningArgs) (*Result, error) {
	plan, err := p.resolve(a.PlanID)
	if err != nil {
		return nil, err
	}
	if a.StepIndex == nil {
		return nil, fmt.Errorf("step_index is required for command: mark_step")
	}
	idx := *a.StepIndex
	if idx < 0 || idx >= len(plan.Steps) {
		return nil, fmt.Errorf("step_index %d out of range [0, %d)", idx, len(plan.Steps))
	}
	if a.StepStatus != "" {
		if _, ok := stepStatusMarks[a.StepStatus]; !ok {
			return nil, fmt.Errorf("invalid step_status %q", a.StepStatus)
		}
		plan.StepStatuses[idx] = a.StepStatus
	}
	if a.StepNotes != "" {
		plan.StepNotes[idx] = a.StepNotes
	}
	return &Result{Output: fmt.Sprintf("Step %d updated in plan %s.\n\n%s", idx, plan.ID, plan.Format())}, nil
}

func (p *Planning) deletePlan(a planningArgs) (*Result, error) {
	if a.PlanID == "" {
		return nil, fmt.Errorf("plan_id is required for command: delete")
	}
	if _, ok := p.plans[a.PlanID]; !ok {
		return nil, fmt.Errorf("no plan found with id %s", a.PlanID)
	}
	delete(p.plans, a.PlanID)
	if p.active == a.PlanID {
		p.active = ""
	}
	return &Result{Output: "Plan " + a.PlanID + " has been deleted."}, nil
}

// resolve returns the plan for id, falling back to the active plan.
// Caller holds mu.
func (p *Planning) resolve(id string) (*Plan, error) {
	if id == "" {
		id = p.active
	}
	if id == "" {
		return nil, fmt.Errorf("no active plan; specify plan_id or create a plan first")
	}
	plan, ok := p.plans[id]
	if !ok {
		return nil, fmt.Errorf("no plan found with id %s", id)
	}
	return plan, nil
}

// Plan returns the live plan for id (or the active plan when id is
// empty). The flow uses this for its direct-patch fallback when a
// mark_step command fails.
func (p *Planning) Plan(id string) (*Plan, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	plan, err := p.resolve(id)
	if err != nil {
		return nil, false
	}
	return plan, true
}

// ActiveID returns the id of the active plan, if any.
func (p *Planning) ActiveID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}
