package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/openloop-ai/openloop/types"
)

func TestMemory_AddMessage_PreservesOrder(t *testing.T) {
	m := New()
	m.AddMessage(types.NewUserMessage("first"))
	m.AddMessage(types.NewAssistantMessage("second"))
	m.AddMessage(types.NewUserMessage("third"))

	msgs := m.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
	assert.Equal(t, "third", msgs[2].Content)
}

func TestMemory_Eviction_DropsOldestFirst(t *testing.T) {
	m := New(WithMaxMessages(3))
	for i := 0; i < 5; i++ {
		m.AddMessage(types.NewUserMessage(fmt.Sprintf("msg-%d", i)))
	}

	msgs := m.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "msg-2", msgs[0].Content)
	assert.Equal(t, "msg-4", msgs[2].Content)
}

func TestMemory_AddMessages_BulkAppendRespectsCap(t *testing.T) {
	m := New(WithMaxMessages(2))
	m.AddMessages([]types.Message{
		types.NewUserMessage("a"),
		types.NewAssistantMessage("b"),
		types.NewUserMessage("c"),
	})

	msgs := m.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "b", msgs[0].Content)
	assert.Equal(t, "c", msgs[1].Content)
}

func TestMemory_Recent(t *testing.T) {
	m := New()
	m.AddMessage(types.NewUserMessage("a"))
	m.AddMessage(types.NewAssistantMessage("b"))

	assert.Len(t, m.Recent(1), 1)
	assert.Equal(t, "b", m.Recent(1)[0].Content)
	assert.Len(t, m.Recent(10), 2)
	assert.Nil(t, m.Recent(0))
}

func TestMemory_Clear(t *testing.T) {
	m := New()
	m.AddMessage(types.NewUserMessage("a"))
	m.Clear()
	assert.Zero(t, m.Len())
}

func TestMemory_Snapshot_DoesNotAliasInternalSlice(t *testing.T) {
	m := New()
	m.AddMessage(types.NewUserMessage("a"))

	snap := m.Messages()
	snap[0].Content = "mutated"
	assert.Equal(t, "a", m.Messages()[0].Content)
}

// Property: after every append, len <= cap and the retained messages are
// exactly the most recent cap messages in original order.
func TestMemory_BoundProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxN := rapid.IntRange(1, 20).Draw(t, "cap")
		m := New(WithMaxMessages(maxN))

		var all []string
		n := rapid.IntRange(0, 100).Draw(t, "n")
		for i := 0; i < n; i++ {
			content := fmt.Sprintf("m%d", i)
			all = append(all, content)
			m.AddMessage(types.NewUserMessage(content))

			if m.Len() > maxN {
				t.Fatalf("memory length %d exceeds cap %d", m.Len(), maxN)
			}
			msgs := m.Messages()
			expect := all
			if len(all) > maxN {
				expect = all[len(all)-maxN:]
			}
			if len(msgs) != len(expect) {
				t.Fatalf("retained %d messages, want %d", len(msgs), len(expect))
			}
			for j, want := range expect {
				if msgs[j].Content != want {
					t.Fatalf("message %d = %q, want %q", j, msgs[j].Content, want)
				}
			}
		}
	})
}

func TestTokenCounter_FallbackEstimate(t *testing.T) {
	c := NewTokenCounter()
	assert.Zero(t, c.Count(""))
	assert.Positive(t, c.Count("hello world"))
}
