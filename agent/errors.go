package agent

import "errors"

var (
	// ErrBusy indicates a run was attempted while another is in flight.
	ErrBusy = errors.New("agent is busy")

	// ErrToolCallRequired indicates tool choice was required but the
	// model returned no tool calls.
	ErrToolCallRequired = errors.New("tool calls required but none provided")
)
