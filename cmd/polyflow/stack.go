package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/polyflow-ai/polyflow/internal/agent"
	"github.com/polyflow-ai/polyflow/internal/config"
	"github.com/polyflow-ai/polyflow/internal/evaluator"
	"github.com/polyflow-ai/polyflow/internal/llm"
	"github.com/polyflow-ai/polyflow/internal/orchestrator"
	"github.com/polyflow-ai/polyflow/internal/registry"
	"github.com/polyflow-ai/polyflow/internal/router"
	"github.com/polyflow-ai/polyflow/pkg/models"
)

// buildOrchestrator assembles the full pipeline from configuration. The
// returned orchestrator is ready to run; the emitter may be nil when no
// live view is attached.
func buildOrchestrator(ctx context.Context, cfg *config.Config, logger *slog.Logger, emitter *orchestrator.EventEmitter) (*orchestrator.Orchestrator, error) {
	reg, err := buildRegistry(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	invoker, err := buildInvoker(cfg, logger)
	if err != nil {
		return nil, err
	}

	selector := buildSelector(cfg, logger)
	runner := agent.New(reg, invoker, cfg.Inference, selector, logger)
	decomposer := router.NewDecomposer(invoker, reg, cfg.Inference, cfg.Loop.DecomposeAttempts, logger)
	judge := evaluator.New(invoker, cfg.Inference, logger)

	return orchestrator.New(decomposer, runner, judge, cfg.Loop, logger, emitter), nil
}

func buildRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*registry.Registry, error) {
	if cfg.Registry.Path == "" {
		return registry.NewDefault(), nil
	}

	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		return nil, fmt.Errorf("loading domain registry: %w", err)
	}
	if cfg.Registry.Watch {
		go func() {
			if err := reg.Watch(ctx, cfg.Registry.Path, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("registry hot reload unavailable", "error", err)
			}
		}()
	}
	return reg, nil
}

func buildInvoker(cfg *config.Config, logger *slog.Logger) (llm.Invoker, error) {
	switch cfg.Inference.Provider {
	case "", "vllm":
		return llm.NewClient(
			llm.WithTimeout(cfg.Inference.Timeout),
			llm.WithMaxRetries(cfg.Inference.MaxRetries),
			llm.WithLogger(logger),
		), nil
	case "anthropic":
		return llm.NewAnthropicClient(llm.AnthropicConfig{
			APIKey:        cfg.Anthropic.APIKey,
			SmallModel:    cfg.Anthropic.SmallModel,
			LargeModel:    cfg.Anthropic.LargeModel,
			UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
			AWSRegion:     cfg.Anthropic.AWSRegion,
			AWSProfile:    cfg.Anthropic.AWSProfile,
		})
	default:
		return nil, fmt.Errorf("unknown inference provider %q (want vllm or anthropic)", cfg.Inference.Provider)
	}
}

func buildSelector(cfg *config.Config, logger *slog.Logger) agent.Selector {
	if cfg.Selector.Mode == "remote" && cfg.Selector.URL != "" {
		return agent.NewRemoteClassifierSelector(cfg.Selector.URL, cfg.Selector.Timeout, logger)
	}
	return agent.StaticDefaultSelector{Variant: models.Variant(cfg.Selector.Default)}
}
