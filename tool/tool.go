// Package tool defines the tool contract exposed to the LLM and the
// name-keyed collection used to dispatch tool calls. Registration-time
// validation replaces per-call shape checks: a tool that registers
// successfully can always be dispatched.
package tool

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/openloop-ai/openloop/types"
)

// ErrNotFound indicates a dispatch against an unregistered tool name.
var ErrNotFound = errors.New("tool not found")

// Result is the outcome of a single tool execution.
type Result struct {
	Output      string `json:"output,omitempty"`
	Error       string `json:"error,omitempty"`
	Base64Image string `json:"base64_image,omitempty"`
	System      string `json:"system,omitempty"`
}

// String renders the result for inclusion in a tool-result message.
func (r *Result) String() string {
	if r == nil {
		return ""
	}
	if r.Error != "" {
		return "Error: " + r.Error
	}
	return r.Output
}

// Tool is a named capability invocable by the LLM with structured
// parameters.
type Tool interface {
	// Name returns the tool's unique name.
	Name() string
	// Description explains the tool to the model.
	Description() string
	// Parameters returns the JSON-schema description of the arguments.
	Parameters() json.RawMessage
	// Execute runs the tool with raw JSON arguments.
	Execute(ctx context.Context, args json.RawMessage) (*Result, error)
}

// Cleaner is an optional interface for tools holding live resources
// (shell session, browser) that must be released after a run.
type Cleaner interface {
	Cleanup(ctx context.Context) error
}

// Schema builds the LLM-facing schema for a tool.
func Schema(t Tool) types.ToolSchema {
	return types.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
	}
}
