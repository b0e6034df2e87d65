package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planningExec(t *testing.T, p *Planning, args string) *Result {
	t.Helper()
	res, err := p.Execute(context.Background(), json.RawMessage(args))
	require.NoError(t, err)
	return res
}

func TestPlanning_CreateAndGet(t *testing.T) {
	p := NewPlanning()

	res := planningExec(t, p, `{"command":"create","plan_id":"plan_1","title":"Ship it","steps":["build","test"]}`)
	assert.Contains(t, res.Output, "plan_1")
	assert.Equal(t, "plan_1", p.ActiveID())

	plan, ok := p.Plan("")
	require.True(t, ok)
	assert.Equal(t, []string{StepNotStarted, StepNotStarted}, plan.StepStatuses)
	assert.Len(t, plan.StepNotes, 2)

	res = planningExec(t, p, `{"command":"get"}`)
	assert.Contains(t, res.Output, "Plan: Ship it (ID: plan_1)")
	assert.Contains(t, res.Output, "0/2 steps completed")
}

func TestPlanning_Create_Validation(t *testing.T) {
	p := NewPlanning()

	_, err := p.Execute(context.Background(), json.RawMessage(`{"command":"create","title":"t","steps":["a"]}`))
	assert.ErrorContains(t, err, "plan_id is required")

	_, err = p.Execute(context.Background(), json.RawMessage(`{"command":"create","plan_id":"p","steps":["a"]}`))
	assert.ErrorContains(t, err, "title is required")

	_, err = p.Execute(context.Background(), json.RawMessage(`{"command":"create","plan_id":"p","title":"t"}`))
	assert.ErrorContains(t, err, "steps are required")

	planningExec(t, p, `{"command":"create","plan_id":"p","title":"t","steps":["a"]}`)
	_, err = p.Execute(context.Background(), json.RawMessage(`{"command":"create","plan_id":"p","title":"t","steps":["a"]}`))
	assert.ErrorContains(t, err, "already exists")
}

func TestPlanning_MarkStep(t *testing.T) {
	p := NewPlanning()
	planningExec(t, p, `{"command":"create","plan_id":"p","title":"t","steps":["a","b"]}`)

	planningExec(t, p, `{"command":"mark_step","step_index":0,"step_status":"completed","step_notes":"done"}`)
	plan, _ := p.Plan("p")
	assert.Equal(t, StepCompleted, plan.StepStatuses[0])
	assert.Equal(t, "done", plan.StepNotes[0])

	_, err := p.Execute(context.Background(), json.RawMessage(`{"command":"mark_step","step_index":9,"step_status":"completed"}`))
	assert.ErrorContains(t, err, "out of range")

	_, err = p.Execute(context.Background(), json.RawMessage(`{"command":"mark_step","step_index":0,"step_status":"finished"}`))
	assert.ErrorContains(t, err, "invalid step_status")
}

// Updating the step list preserves status and notes at indices whose
// text is unchanged, and resets the rest.
func TestPlanning_Update_PreservesUnchangedSteps(t *testing.T) {
	p := NewPlanning()
	planningExec(t, p, `{"command":"create","plan_id":"p","title":"t","steps":["keep","change","drop"]}`)
	planningExec(t, p, `{"command":"mark_step","step_index":0,"step_status":"completed","step_notes":"kept note"}`)
	planningExec(t, p, `{"command":"mark_step","step_index":1,"step_status":"in_progress","step_notes":"old note"}`)

	planningExec(t, p, `{"command":"update","plan_id":"p","steps":["keep","changed","added"]}`)

	plan, _ := p.Plan("p")
	require.Equal(t, []string{"keep", "changed", "added"}, plan.Steps)
	require.Len(t, plan.StepStatuses, 3)
	require.Len(t, plan.StepNotes, 3)

	assert.Equal(t, StepCompleted, plan.StepStatuses[0])
	assert.Equal(t, "kept note", plan.StepNotes[0])
	assert.Equal(t, StepNotStarted, plan.StepStatuses[1])
	assert.Empty(t, plan.StepNotes[1])
	assert.Equal(t, StepNotStarted, plan.StepStatuses[2])
	assert.Empty(t, plan.StepNotes[2])
}

func TestPlanning_ListAndDelete(t *testing.T) {
	p := NewPlanning()
	res := planningExec(t, p, `{"command":"list"}`)
	assert.Contains(t, res.Output, "No plans available")

	planningExec(t, p, `{"command":"create","plan_id":"p1","title":"one","steps":["a"]}`)
	planningExec(t, p, `{"command":"create","plan_id":"p2","title":"two","steps":["b"]}`)

	res = planningExec(t, p, `{"command":"list"}`)
	assert.Contains(t, res.Output, "p1")
	assert.Contains(t, res.Output, "p2 (active)")

	planningExec(t, p, `{"command":"set_active","plan_id":"p1"}`)
	assert.Equal(t, "p1", p.ActiveID())

	planningExec(t, p, `{"command":"delete","plan_id":"p1"}`)
	assert.Empty(t, p.ActiveID())
	_, ok := p.Plan("p1")
	assert.False(t, ok)
}

func TestPlanning_UnknownCommand(t *testing.T) {
	p := NewPlanning()
	_, err := p.Execute(context.Background(), json.RawMessage(`{"command":"explode"}`))
	assert.ErrorContains(t, err, "unknown planning command")
}

func TestPlan_FormatProgress(t *testing.T) {
	plan := &Plan{
		ID:           "p",
		Title:        "t",
		Steps:        []string{"a", "b"},
		StepStatuses: []string{StepCompleted, StepInProgress},
		StepNotes:    []string{"", "note"},
	}
	out := plan.Format()
	assert.Contains(t, out, "1/2 steps completed (50.0%)")
	assert.Contains(t, out, fmt.Sprintf("0. %s a", stepStatusMarks[StepCompleted]))
	assert.Contains(t, out, "Notes: note")
}
