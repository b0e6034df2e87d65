// Package mocks provides builder-style test doubles for the runtime's
// external collaborators.
package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/openloop-ai/openloop/llm"
	"github.com/openloop-ai/openloop/types"
)

type scriptEntry struct {
	resp *llm.ChatResponse
	err  error
}

// Provider is a scripted llm.Provider: it replays queued responses and
// errors in order and records every request it receives.
type Provider struct {
	mu       sync.Mutex
	name     string
	script   []scriptEntry
	requests []*llm.ChatRequest
}

// NewProvider creates an empty scripted provider.
func NewProvider() *Provider {
	return &Provider{name: "mock"}
}

// WithName sets the provider name.
func (p *Provider) WithName(name string) *Provider {
	p.name = name
	return p
}

// WillReturn queues a successful response.
func (p *Provider) WillReturn(resp *llm.ChatResponse) *Provider {
	p.script = append(p.script, scriptEntry{resp: resp})
	return p
}

// WillFail queues an error.
func (p *Provider) WillFail(err error) *Provider {
	p.script = append(p.script, scriptEntry{err: err})
	return p
}

func (p *Provider) Name() string { return p.name }

// Completion pops the next scripted entry. An exhausted script is an
// error so tests fail loudly on unexpected extra calls.
func (p *Provider) Completion(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := len(p.requests)
	p.requests = append(p.requests, req)
	if i >= len(p.script) {
		return nil, fmt.Errorf("mock provider script exhausted at call %d", i)
	}
	entry := p.script[i]
	if entry.err != nil {
		return nil, entry.err
	}
	return entry.resp, nil
}

// Calls returns how many completions were requested.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Requests returns the recorded requests in call order.
func (p *Provider) Requests() []*llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*llm.ChatRequest(nil), p.requests...)
}

// TextResponse builds a single-choice response with assistant content.
func TextResponse(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Model:   "mock-model",
		Choices: []llm.ChatChoice{{Message: types.NewAssistantMessage(content)}},
	}
}

// ToolCallResponse builds a single-choice response carrying tool calls.
func ToolCallResponse(content string, calls ...types.ToolCall) *llm.ChatResponse {
	msg := types.NewAssistantMessage(content)
	if len(calls) > 0 {
		msg = msg.WithToolCalls(calls)
	}
	return &llm.ChatResponse{
		Model:   "mock-model",
		Choices: []llm.ChatChoice{{Message: msg}},
	}
}
