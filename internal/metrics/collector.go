// Package metrics provides internal prometheus collectors for the
// runtime. This package is internal and should not be imported by
// external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector bundles the runtime's prometheus metrics.
type Collector struct {
	agentStepsTotal       *prometheus.CounterVec
	agentStepDuration     *prometheus.HistogramVec
	agentStateTransitions *prometheus.CounterVec
	agentStuckDetections  *prometheus.CounterVec

	toolExecutionsTotal   *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec

	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewCollector creates a collector registered against its own registry.
// Pass nil to create a fresh registry; expose Registry() to a scrape
// handler.
func NewCollector(namespace string, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)
	c := &Collector{registry: registry}

	c.agentStepsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_steps_total",
			Help:      "Total number of agent steps executed",
		},
		[]string{"agent", "status"},
	)
	c.agentStepDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_step_duration_seconds",
			Help:      "Agent step duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"agent"},
	)
	c.agentStateTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_state_transitions_total",
			Help:      "Total number of agent state transitions",
		},
		[]string{"agent", "from", "to"},
	)
	c.agentStuckDetections = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_stuck_detections_total",
			Help:      "Total number of stuck-state detections",
		},
		[]string{"agent"},
	)

	c.toolExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_executions_total",
			Help:      "Total number of tool executions",
		},
		[]string{"tool", "status"},
	)
	c.toolExecutionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_execution_duration_seconds",
			Help:      "Tool execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	c.llmRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"provider", "status"},
	)
	c.llmRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)
	c.llmTokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "kind"},
	)

	return c
}

// Registry returns the underlying prometheus registry for scraping.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// RecordStep records one agent step.
func (c *Collector) RecordStep(agent, status string, duration time.Duration) {
	c.agentStepsTotal.WithLabelValues(agent, status).Inc()
	c.agentStepDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// RecordStateTransition records an agent state change.
func (c *Collector) RecordStateTransition(agent, from, to string) {
	c.agentStateTransitions.WithLabelValues(agent, from, to).Inc()
}

// RecordStuck records a stuck-state detection.
func (c *Collector) RecordStuck(agent string) {
	c.agentStuckDetections.WithLabelValues(agent).Inc()
}

// RecordToolExecution records one tool dispatch.
func (c *Collector) RecordToolExecution(tool, status string, duration time.Duration) {
	c.toolExecutionsTotal.WithLabelValues(tool, status).Inc()
	c.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordLLMRequest records one LLM request.
func (c *Collector) RecordLLMRequest(provider, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.llmRequestsTotal.WithLabelValues(provider, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if promptTokens > 0 {
		c.llmTokensUsed.WithLabelValues(provider, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		c.llmTokensUsed.WithLabelValues(provider, "completion").Add(float64(completionTokens))
	}
}
