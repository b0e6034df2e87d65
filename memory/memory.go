// Package memory provides the bounded conversation log owned by a single
// agent. Insertion order is conversation chronological order; when the
// message cap is exceeded the oldest messages are evicted first.
package memory

import (
	"sync"

	"github.com/openloop-ai/openloop/types"
)

// DefaultMaxMessages is the default message cap.
const DefaultMaxMessages = 100

// Memory is an append-only bounded log of role-tagged messages.
// All operations are total; there are no error conditions.
type Memory struct {
	mu          sync.RWMutex
	messages    []types.Message
	maxMessages int
	counter     *TokenCounter
}

// Option configures a Memory.
type Option func(*Memory)

// WithMaxMessages sets the message cap.
func WithMaxMessages(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.maxMessages = n
		}
	}
}

// WithTokenCounter sets the token counter used by TokenCount.
func WithTokenCounter(c *TokenCounter) Option {
	return func(m *Memory) { m.counter = c }
}

// New creates an empty Memory with the default cap.
func New(opts ...Option) *Memory {
	m := &Memory{maxMessages: DefaultMaxMessages}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddMessage appends a message, evicting from the front if the cap is
// exceeded.
func (m *Memory) AddMessage(msg types.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	m.trim()
}

// AddMessages appends messages in order, then enforces the cap once.
func (m *Memory) AddMessages(msgs []types.Message) {
	if len(msgs) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msgs...)
	m.trim()
}

// trim drops the oldest messages until len == cap. Caller holds mu.
func (m *Memory) trim() {
	if over := len(m.messages) - m.maxMessages; over > 0 {
		m.messages = append([]types.Message(nil), m.messages[over:]...)
	}
}

// Messages returns a snapshot of all retained messages in order.
func (m *Memory) Messages() []types.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Recent returns the last n messages (or fewer if memory is shorter).
func (m *Memory) Recent(n int) []types.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	if n > len(m.messages) {
		n = len(m.messages)
	}
	out := make([]types.Message, n)
	copy(out, m.messages[len(m.messages)-n:])
	return out
}

// Len returns the number of retained messages.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// Clear empties memory. Used on reset, not on normal step execution.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}

// TokenCount returns the approximate token total across retained message
// content. Zero if no token counter is configured.
func (m *Memory) TokenCount() int {
	if m.counter == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, msg := range m.messages {
		total += m.counter.Count(msg.Content)
	}
	return total
}
