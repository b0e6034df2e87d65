package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "openloop", cfg.Agent.Name)
	assert.Equal(t, 10, cfg.Agent.MaxSteps)
	assert.Equal(t, 100, cfg.Memory.MaxMessages)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agent:
  name: researcher
  max_steps: 25
llm:
  model: gpt-4o-mini
  retry_backoff: 2s
store:
  enabled: true
  path: /tmp/plans.db
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "researcher", cfg.Agent.Name)
	assert.Equal(t, 25, cfg.Agent.MaxSteps)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 2*time.Second, cfg.LLM.RetryBackoff)
	assert.True(t, cfg.Store.Enabled)
	// Untouched sections keep their defaults.
	assert.Equal(t, 100, cfg.Memory.MaxMessages)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  model: from-file\n"), 0o600))

	t.Setenv("OPENLOOP_LLM_MODEL", "from-env")
	t.Setenv("OPENLOOP_LLM_API_KEY", "sk-test")
	t.Setenv("OPENLOOP_AGENT_MAX_STEPS", "7")
	t.Setenv("OPENLOOP_AGENT_RUN_TIMEOUT", "90s")
	t.Setenv("OPENLOOP_TELEMETRY_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 7, cfg.Agent.MaxSteps)
	assert.Equal(t, 90*time.Second, cfg.Agent.RunTimeout)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestLoad_ValidationRejectsBadValues(t *testing.T) {
	t.Setenv("OPENLOOP_AGENT_MAX_STEPS", "0")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent.max_steps")

	t.Setenv("OPENLOOP_AGENT_MAX_STEPS", "5")
	t.Setenv("OPENLOOP_LLM_TEMPERATURE", "3.5")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.temperature")
}
