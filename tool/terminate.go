package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// TerminateName is the canonical name of the termination tool. Agents
// treat it as special: a successful call finishes the run.
const TerminateName = "terminate"

// Terminate ends the interaction when the task is complete or when the
// model cannot proceed.
type Terminate struct{}

// NewTerminate creates the termination tool.
func NewTerminate() *Terminate { return &Terminate{} }

func (t *Terminate) Name() string { return TerminateName }

func (t *Terminate) Description() string {
	return "Terminate the interaction when the request is met or when the assistant cannot proceed further with the task."
}

func (t *Terminate) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"status": {
				"type": "string",
				"description": "The finish status of the interaction.",
				"enum": ["success", "failure"]
			}
		},
		"required": ["status"]
	}`)
}

func (t *Terminate) Execute(_ context.Context, args json.RawMessage) (*Result, error) {
	var params struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("parse terminate arguments: %w", err)
	}
	if params.Status != "success" && params.Status != "failure" {
		return nil, fmt.Errorf("invalid terminate status %q", params.Status)
	}
	return &Result{
		Output: "The interaction has been completed with status: " + params.Status,
	}, nil
}
