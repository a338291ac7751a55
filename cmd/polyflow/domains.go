package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/polyflow-ai/polyflow/internal/config"
	"github.com/polyflow-ai/polyflow/internal/registry"
)

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "List the configured task domains",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}

		bold := color.New(color.Bold)
		for _, domain := range reg.Domains() {
			spec, ok := reg.Spec(domain)
			if !ok {
				continue
			}
			bold.Printf("%s\n", domain)
			fmt.Printf("  %s\n", spec.Description)
			if len(spec.Aliases) > 0 {
				fmt.Printf("  aliases: %s\n", strings.Join(spec.Aliases, ", "))
			}
			fmt.Printf("  adapter temperature %.1f, max tokens %d\n", spec.Temperature, spec.MaxTokens)
		}
		return nil
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Show which domain a piece of text maps to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		fmt.Println(reg.DetectDomain(args[0]))
		return nil
	},
}

func loadRegistry() (*registry.Registry, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.Registry.Path == "" {
		return registry.NewDefault(), nil
	}
	return registry.Load(cfg.Registry.Path)
}

func init() {
	domainsCmd.AddCommand(classifyCmd)
}
