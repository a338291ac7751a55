package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/polyflow-ai/polyflow/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Display the effective configuration after merging defaults, the user
config (~/.config/polyflow/config.yaml), any .polyflow.yaml found in the
current directory or a parent, and environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		apiKey := "(not set)"
		if cfg.Anthropic.APIKey != "" {
			apiKey = "****"
		}

		fmt.Printf("inference.provider: %s\n", cfg.Inference.Provider)
		fmt.Printf("inference.small_endpoint: %s\n", cfg.Inference.SmallEndpoint)
		fmt.Printf("inference.large_endpoint: %s\n", cfg.Inference.LargeEndpoint)
		fmt.Printf("inference.router_model: %s\n", cfg.Inference.RouterModel)
		fmt.Printf("inference.evaluator_model: %s\n", cfg.Inference.EvaluatorModel)
		for domain, adapter := range cfg.Inference.Adapters {
			fmt.Printf("inference.adapters.%s: %s\n", domain, adapter)
		}
		fmt.Printf("inference.timeout: %s\n", cfg.Inference.Timeout)
		fmt.Printf("inference.max_retries: %d\n", cfg.Inference.MaxRetries)
		fmt.Printf("anthropic.api_key: %s\n", apiKey)
		fmt.Printf("selector.mode: %s\n", cfg.Selector.Mode)
		fmt.Printf("selector.url: %s\n", cfg.Selector.URL)
		fmt.Printf("selector.default: %s\n", cfg.Selector.Default)
		fmt.Printf("loop.max_retry: %d\n", cfg.Loop.MaxRetry)
		fmt.Printf("loop.max_inflight: %d\n", cfg.Loop.MaxInflight)
		fmt.Printf("loop.decompose_attempts: %d\n", cfg.Loop.DecomposeAttempts)
		fmt.Printf("registry.path: %s\n", cfg.Registry.Path)
		fmt.Printf("registry.watch: %t\n", cfg.Registry.Watch)
		fmt.Printf("history.enabled: %t\n", cfg.History.Enabled)
		fmt.Printf("history.path: %s\n", cfg.History.Path)

		if _, err := os.Stat(config.GetUserConfigPath()); err != nil {
			fmt.Fprintf(os.Stderr, "\n(no user config at %s)\n", config.GetUserConfigPath())
		}
		return nil
	},
}
