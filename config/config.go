// Package config loads runtime configuration from YAML with
// environment-variable overrides. Precedence: defaults, then file, then
// environment.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openloop-ai/openloop/internal/telemetry"
)

// DefaultEnvPrefix is the prefix for environment overrides, e.g.
// OPENLOOP_LLM_API_KEY.
const DefaultEnvPrefix = "OPENLOOP"

// Config is the full runtime configuration.
type Config struct {
	Agent     AgentConfig      `yaml:"agent" env:"AGENT"`
	LLM       LLMConfig        `yaml:"llm" env:"LLM"`
	Memory    MemoryConfig     `yaml:"memory" env:"MEMORY"`
	Cache     CacheConfig      `yaml:"cache" env:"CACHE"`
	Store     StoreConfig      `yaml:"store" env:"STORE"`
	Log       LogConfig        `yaml:"log" env:"LOG"`
	Telemetry telemetry.Config `yaml:"telemetry" env:"TELEMETRY"`
}

// AgentConfig configures the default agent.
type AgentConfig struct {
	Name               string        `yaml:"name" env:"NAME"`
	SystemPrompt       string        `yaml:"system_prompt" env:"SYSTEM_PROMPT"`
	NextStepPrompt     string        `yaml:"next_step_prompt" env:"NEXT_STEP_PROMPT"`
	MaxSteps           int           `yaml:"max_steps" env:"MAX_STEPS"`
	DuplicateThreshold int           `yaml:"duplicate_threshold" env:"DUPLICATE_THRESHOLD"`
	MaxObserve         int           `yaml:"max_observe" env:"MAX_OBSERVE"`
	RunTimeout         time.Duration `yaml:"run_timeout" env:"RUN_TIMEOUT"`
}

// LLMConfig configures the LLM provider and client resilience.
type LLMConfig struct {
	BaseURL           string        `yaml:"base_url" env:"BASE_URL"`
	APIKey            string        `yaml:"api_key" env:"API_KEY"`
	Model             string        `yaml:"model" env:"MODEL"`
	MaxTokens         int           `yaml:"max_tokens" env:"MAX_TOKENS"`
	Temperature       float64       `yaml:"temperature" env:"TEMPERATURE"`
	MaxRetries        int           `yaml:"max_retries" env:"MAX_RETRIES"`
	RetryBackoff      time.Duration `yaml:"retry_backoff" env:"RETRY_BACKOFF"`
	RequestsPerMinute int           `yaml:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
	Timeout           time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// MemoryConfig bounds conversation memory.
type MemoryConfig struct {
	MaxMessages int `yaml:"max_messages" env:"MAX_MESSAGES"`
}

// CacheConfig configures the completion cache tiers.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" env:"ENABLED"`
	LocalSize int           `yaml:"local_size" env:"LOCAL_SIZE"`
	LocalTTL  time.Duration `yaml:"local_ttl" env:"LOCAL_TTL"`
	RedisAddr string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisTTL  time.Duration `yaml:"redis_ttl" env:"REDIS_TTL"`
}

// StoreConfig configures plan persistence.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Path    string `yaml:"path" env:"PATH"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:               "openloop",
			MaxSteps:           10,
			DuplicateThreshold: 2,
			MaxObserve:         10000,
			RunTimeout:         10 * time.Minute,
		},
		LLM: LLMConfig{
			BaseURL:      "https://api.openai.com/v1",
			Model:        "gpt-4o",
			MaxTokens:    4096,
			Temperature:  0.0,
			MaxRetries:   3,
			RetryBackoff: time.Second,
			Timeout:      60 * time.Second,
		},
		Memory: MemoryConfig{
			MaxMessages: 100,
		},
		Cache: CacheConfig{
			LocalSize: 1000,
			LocalTTL:  5 * time.Minute,
			RedisTTL:  time.Hour,
		},
		Store: StoreConfig{
			Path: "openloop.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: telemetry.Config{
			ServiceName: "openloop",
		},
	}
}

// Load reads configuration: defaults, then the YAML file at path (a
// missing file is not an error), then OPENLOOP_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults plus env only.
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := applyEnv(reflect.ValueOf(cfg).Elem(), DefaultEnvPrefix); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the runtime cannot operate with.
func (c *Config) Validate() error {
	var errs []string
	if c.Agent.MaxSteps <= 0 {
		errs = append(errs, "agent.max_steps must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm.temperature must be between 0 and 2")
	}
	if c.Memory.MaxMessages <= 0 {
		errs = append(errs, "memory.max_messages must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config validation: %s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnv walks the config struct, overriding fields from environment
// variables named by joining env tags with underscores.
func applyEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tag := t.Field(i).Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + "_" + tag

		if field.Kind() == reflect.Struct {
			if err := applyEnv(field, key); err != nil {
				return err
			}
			continue
		}
		value := os.Getenv(key)
		if value == "" {
			continue
		}
		if err := setField(field, value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}
