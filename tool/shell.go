package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ShellName is the name of the shell tool.
const ShellName = "shell"

// Shell executes commands through the system shell. The working
// directory persists across calls so `cd` behaves like a session.
type Shell struct {
	workdir string
	timeout time.Duration
	logger  *zap.Logger
}

// NewShell creates a shell tool rooted at the current directory.
func NewShell(logger *zap.Logger) *Shell {
	if logger == nil {
		logger = zap.NewNop()
	}
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return &Shell{
		workdir: wd,
		timeout: 2 * time.Minute,
		logger:  logger,
	}
}

func (s *Shell) Name() string { return ShellName }

func (s *Shell) Description() string {
	return "Execute a shell command and return its combined output. The working directory persists across calls."
}

func (s *Shell) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {"type": "string", "description": "The shell command to execute."}
		},
		"required": ["command"]
	}`)
}

func (s *Shell) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var params struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("parse shell arguments: %w", err)
	}
	command := strings.TrimSpace(params.Command)
	if command == "" {
		return nil, fmt.Errorf("command is required")
	}

	// A bare `cd` only moves the session's working directory.
	if dir, ok := strings.CutPrefix(command, "cd "); ok && !strings.ContainsAny(dir, ";|&") {
		return s.changeDir(strings.TrimSpace(dir))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Dir = s.workdir
	out, err := cmd.CombinedOutput()

	s.logger.Debug("shell command finished",
		zap.String("command", command),
		zap.Bool("error", err != nil))

	if err != nil {
		return &Result{
			Output: string(out),
			Error:  err.Error(),
		}, nil
	}
	output := string(out)
	if output == "" {
		output = "(no output)"
	}
	return &Result{Output: output}, nil
}

func (s *Shell) changeDir(dir string) (*Result, error) {
	target := dir
	if !strings.HasPrefix(target, "/") {
		target = s.workdir + "/" + target
	}
	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		return &Result{Error: fmt.Sprintf("cd: no such directory: %s", dir)}, nil
	}
	s.workdir = target
	return &Result{Output: "Working directory changed to " + target}, nil
}
