package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/polyflow-ai/polyflow/internal/config"
	"github.com/polyflow-ai/polyflow/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.List(historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no runs recorded")
			return nil
		}

		for _, e := range entries {
			marker := color.GreenString("✓")
			if !e.Success {
				marker = color.RedString("✗")
			}
			fmt.Printf("%s %s  %s  %s (%d iterations)\n",
				marker, e.StartedAt.Local().Format("2006-01-02 15:04"),
				e.RunID, e.Reason, e.Iterations)
			fmt.Printf("    %s\n", firstLine(e.Task))
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the stored answer for a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		answer, err := store.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	},
}

func openHistory() (*history.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	path := cfg.History.Path
	if path == "" {
		path = history.DefaultPath()
	}
	return history.Open(path)
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
		if i > 76 {
			return s[:i] + "..."
		}
	}
	return s
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum runs to list")
	historyCmd.AddCommand(historyShowCmd)
}
