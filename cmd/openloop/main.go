// Command openloop runs a goal through the planning flow: it builds the
// LLM client, the tool set and the executor agent from configuration,
// then races the flow against a wall-clock timeout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openloop-ai/openloop/agent"
	"github.com/openloop-ai/openloop/config"
	"github.com/openloop-ai/openloop/flow"
	"github.com/openloop-ai/openloop/internal/metrics"
	"github.com/openloop-ai/openloop/internal/telemetry"
	"github.com/openloop-ai/openloop/llm"
	"github.com/openloop-ai/openloop/memory"
	"github.com/openloop-ai/openloop/tool"
)

const defaultSystemPrompt = "You are OpenLoop, an autonomous assistant that solves tasks by planning and using tools. " +
	"Work step by step, observe tool results carefully, and call the terminate tool when the task is done or cannot proceed."

const defaultNextStepPrompt = "Based on the current state, select the most appropriate tool for the next step. " +
	"If the task is complete, call the terminate tool."

func main() {
	configPath := flag.String("config", "openloop.yaml", "path to the configuration file")
	planID := flag.String("plan-id", "", "fixed plan id (generated when empty)")
	flag.Parse()

	goal := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if goal == "" {
		fmt.Fprintln(os.Stderr, "usage: openloop [flags] <goal>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger, goal, *planID); err != nil {
		logger.Error("run failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger, goal, planID string) error {
	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	collector := metrics.NewCollector("openloop", nil)
	tokens := memory.NewTokenCounter()

	provider := llm.NewOpenAIProvider(llm.OpenAIConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.Timeout,
	}, logger)

	clientOpts := []llm.ClientOption{llm.WithMetrics(collector)}
	if cfg.Cache.Enabled {
		var rdb *redis.Client
		if cfg.Cache.RedisAddr != "" {
			rdb = redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		}
		cache := llm.NewCache(rdb, llm.CacheConfig{
			LocalMaxSize: cfg.Cache.LocalSize,
			LocalTTL:     cfg.Cache.LocalTTL,
			RedisTTL:     cfg.Cache.RedisTTL,
		}, logger)
		clientOpts = append(clientOpts, llm.WithCache(cache))
	}

	client := llm.NewClient(provider, llm.ClientConfig{
		Model:             cfg.LLM.Model,
		MaxTokens:         cfg.LLM.MaxTokens,
		Temperature:       float32(cfg.LLM.Temperature),
		MaxRetries:        cfg.LLM.MaxRetries,
		RetryBackoff:      cfg.LLM.RetryBackoff,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	}, logger, clientOpts...)

	tools, err := tool.NewCollection(logger,
		tool.NewShell(logger),
		tool.NewWebSearch(tool.NewDuckDuckGo(), logger),
		tool.NewHumanInput(os.Stdin, os.Stdout),
		tool.NewTerminate(),
	)
	if err != nil {
		return fmt.Errorf("build tools: %w", err)
	}

	systemPrompt := cfg.Agent.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	nextStepPrompt := cfg.Agent.NextStepPrompt
	if nextStepPrompt == "" {
		nextStepPrompt = defaultNextStepPrompt
	}

	policy := agent.NewToolCallPolicy(client, tools,
		agent.ToolCallConfig{MaxObserve: cfg.Agent.MaxObserve, TokenCounter: tokens},
		agent.WithToolMetrics(collector))
	executor := agent.New(agent.Config{
		Name:               cfg.Agent.Name,
		SystemPrompt:       systemPrompt,
		NextStepPrompt:     nextStepPrompt,
		MaxSteps:           cfg.Agent.MaxSteps,
		DuplicateThreshold: cfg.Agent.DuplicateThreshold,
	}, memory.New(memory.WithMaxMessages(cfg.Memory.MaxMessages), memory.WithTokenCounter(tokens)),
		policy, logger, agent.WithMetrics(collector))

	flowOpts := []flow.FlowOption{}
	if planID != "" {
		flowOpts = append(flowOpts, flow.WithPlanID(planID))
	}
	if cfg.Store.Enabled {
		store, err := flow.NewPlanStore(cfg.Store.Path, logger)
		if err != nil {
			return fmt.Errorf("open plan store: %w", err)
		}
		flowOpts = append(flowOpts, flow.WithStore(store))
	}

	f, err := flow.NewPlanningFlow(client, tool.NewPlanning(),
		map[string]*agent.Agent{cfg.Agent.Name: executor},
		cfg.Agent.Name, logger, flowOpts...)
	if err != nil {
		return fmt.Errorf("build flow: %w", err)
	}

	logger.Info("starting flow",
		zap.String("goal", goal),
		zap.String("plan_id", f.PlanID()),
		zap.Duration("timeout", cfg.Agent.RunTimeout))

	// The agent loop has no built-in timeout; race it against the wall
	// clock and treat expiry as a terminal failure.
	type outcome struct {
		result string
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := f.Execute(context.Background(), goal)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return o.err
		}
		fmt.Println(o.result)
		return nil
	case <-time.After(cfg.Agent.RunTimeout):
		return fmt.Errorf("run exceeded timeout %s", cfg.Agent.RunTimeout)
	}
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	var zcfg zap.Config
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}
