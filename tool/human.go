package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// HumanInputName is the name of the human-in-the-loop tool.
const HumanInputName = "human_input"

// HumanInput asks the human operator a question and returns their
// answer. The reader and writer are injected so tests can script the
// exchange.
type HumanInput struct {
	in  *bufio.Reader
	out io.Writer
}

// NewHumanInput creates the tool around the given streams.
func NewHumanInput(in io.Reader, out io.Writer) *HumanInput {
	return &HumanInput{
		in:  bufio.NewReader(in),
		out: out,
	}
}

func (h *HumanInput) Name() string { return HumanInputName }

func (h *HumanInput) Description() string {
	return "Ask the human operator a question when input, confirmation or a decision is needed to proceed."
}

func (h *HumanInput) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"question": {"type": "string", "description": "The question to ask the human."}
		},
		"required": ["question"]
	}`)
}

func (h *HumanInput) Execute(_ context.Context, args json.RawMessage) (*Result, error) {
	var params struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("parse human_input arguments: %w", err)
	}
	if strings.TrimSpace(params.Question) == "" {
		return nil, fmt.Errorf("question is required")
	}

	fmt.Fprintf(h.out, "\n%s\n> ", params.Question)
	line, err := h.in.ReadString('\n')
	if err != nil && line == "" {
		return nil, fmt.Errorf("read human input: %w", err)
	}
	return &Result{Output: strings.TrimSpace(line)}, nil
}
