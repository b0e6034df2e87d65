package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openloop-ai/openloop/types"
)

// Collection is a name-keyed registry of tools, validated at
// registration time and exposed to the LLM as callable schemas.
type Collection struct {
	mu     sync.RWMutex
	order  []string
	tools  map[string]Tool
	logger *zap.Logger
}

// NewCollection creates a registry and registers the given tools.
// Registration failures surface immediately; a partially-built
// collection is never returned.
func NewCollection(logger *zap.Logger, tools ...Tool) (*Collection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collection{
		tools:  make(map[string]Tool),
		logger: logger,
	}
	for _, t := range tools {
		if err := c.Register(t); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register adds a tool, validating its name and parameter schema.
func (c *Collection) Register(t Tool) error {
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool has empty name")
	}
	params := t.Parameters()
	if len(params) > 0 && !json.Valid(params) {
		return fmt.Errorf("tool %s: parameter schema is not valid JSON", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	c.tools[name] = t
	c.order = append(c.order, name)
	c.logger.Debug("tool registered", zap.String("name", name))
	return nil
}

// Get returns a registered tool by name.
func (c *Collection) Get(name string) (Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tools[name]
	return t, ok
}

// Has reports whether the named tool is registered.
func (c *Collection) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

// Names returns the registered tool names in registration order.
func (c *Collection) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Schemas returns the LLM-facing schemas in registration order.
func (c *Collection) Schemas() []types.ToolSchema {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.ToolSchema, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, Schema(c.tools[name]))
	}
	return out
}

// Execute dispatches a call by name. Unknown names return ErrNotFound;
// tool failures are returned as errors for the caller to degrade into
// observations.
func (c *Collection) Execute(ctx context.Context, name string, args json.RawMessage) (*Result, error) {
	t, ok := c.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	start := time.Now()
	result, err := t.Execute(ctx, args)
	c.logger.Debug("tool executed",
		zap.String("name", name),
		zap.Duration("duration", time.Since(start)),
		zap.Bool("error", err != nil))
	return result, err
}

// CleanupAll invokes Cleanup on every tool exposing it. Failures are
// logged and do not block cleanup of the remaining tools.
func (c *Collection) CleanupAll(ctx context.Context) {
	c.mu.RLock()
	tools := make([]Tool, 0, len(c.order))
	for _, name := range c.order {
		tools = append(tools, c.tools[name])
	}
	c.mu.RUnlock()

	for _, t := range tools {
		cleaner, ok := t.(Cleaner)
		if !ok {
			continue
		}
		if err := cleaner.Cleanup(ctx); err != nil {
			c.logger.Warn("tool cleanup failed",
				zap.String("name", t.Name()),
				zap.Error(err))
		}
	}
}
