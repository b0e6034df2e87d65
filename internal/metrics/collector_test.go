package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordsAgentMetrics(t *testing.T) {
	c := NewCollector("test", nil)

	c.RecordStep("worker", "ok", 250*time.Millisecond)
	c.RecordStep("worker", "ok", 100*time.Millisecond)
	c.RecordStep("worker", "error", time.Second)
	c.RecordStateTransition("worker", "idle", "running")
	c.RecordStuck("worker")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.agentStepsTotal.WithLabelValues("worker", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.agentStepsTotal.WithLabelValues("worker", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.agentStateTransitions.WithLabelValues("worker", "idle", "running")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.agentStuckDetections.WithLabelValues("worker")))
}

func TestCollector_RecordsToolAndLLMMetrics(t *testing.T) {
	c := NewCollector("test", nil)

	c.RecordToolExecution("shell", "ok", 50*time.Millisecond)
	c.RecordLLMRequest("openai", "ok", time.Second, 120, 40)
	c.RecordLLMRequest("openai", "error", time.Second, 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.toolExecutionsTotal.WithLabelValues("shell", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.llmRequestsTotal.WithLabelValues("openai", "ok")))
	assert.Equal(t, 120.0, testutil.ToFloat64(c.llmTokensUsed.WithLabelValues("openai", "prompt")))
	assert.Equal(t, 40.0, testutil.ToFloat64(c.llmTokensUsed.WithLabelValues("openai", "completion")))
}

func TestCollector_IsolatedRegistries(t *testing.T) {
	// Two collectors must not collide; each owns its registry.
	a := NewCollector("test", nil)
	b := NewCollector("test", nil)
	require.NotSame(t, a.Registry(), b.Registry())

	a.RecordStuck("worker")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.agentStuckDetections.WithLabelValues("worker")))
}
