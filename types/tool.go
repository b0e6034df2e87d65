package types

import (
	"encoding/json"
	"time"
)

// ToolSchema defines a tool's interface for LLM function calling.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolResult represents the result of a single tool execution.
type ToolResult struct {
	ToolCallID string        `json:"tool_call_id"`
	Name       string        `json:"name"`
	Output     string        `json:"output,omitempty"`
	Error      string        `json:"error,omitempty"`
	Base64Image string       `json:"base64_image,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// ToMessage converts the result into a tool-role message carrying the
// observation, correlated via the originating call's id.
func (tr ToolResult) ToMessage() Message {
	content := tr.Output
	if tr.Error != "" {
		content = "Error: " + tr.Error
	}
	msg := Message{
		Role:       RoleTool,
		Content:    content,
		Name:       tr.Name,
		ToolCallID: tr.ToolCallID,
		Timestamp:  time.Now(),
	}
	if tr.Base64Image != "" {
		msg.Images = []ImageContent{{Type: "base64", Data: tr.Base64Image}}
	}
	return msg
}

// IsError returns true if the tool execution failed.
func (tr ToolResult) IsError() bool {
	return tr.Error != ""
}
