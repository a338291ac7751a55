package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/polyflow-ai/polyflow/internal/config"
	"github.com/polyflow-ai/polyflow/internal/history"
	"github.com/polyflow-ai/polyflow/internal/orchestrator"
	"github.com/polyflow-ai/polyflow/internal/tui"
	"github.com/polyflow-ai/polyflow/pkg/models"
)

// sampleTask is executed when no task is given, mirroring a typical
// cross-domain request.
const sampleTask = "Explain whether a patient with sudden chest pain requires emergent CT angiography."

var (
	runFile   string
	runUserID string
	runTUI    bool
)

// taskInput is the JSON shape accepted via --file.
type taskInput struct {
	Task   string `json:"task"`
	UserID string `json:"user_id"`
}

var runCmd = &cobra.Command{
	Use:   "run [task]",
	Short: "Run a task through the orchestration loop",
	Long: `Run a task through decomposition, domain-agent execution, and
iterative refinement.

The task is given as an argument, via --file (JSON with "task" and
optional "user_id" fields), or defaults to a built-in sample. The
command always exits 0; inspect the printed outcome for success.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "Read the task from a JSON file")
	runCmd.Flags().StringVarP(&runUserID, "user", "u", "", "User identifier recorded with the run")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show a live progress view while running")
}

func runTask(cmd *cobra.Command, args []string) error {
	task, userID, err := resolveTask(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()

	var result *models.Result
	if runTUI {
		result, err = runWithTUI(ctx, cfg, logger, task, userID)
	} else {
		result, err = runHeadless(ctx, cfg, logger, task, userID)
	}
	if err != nil {
		return err
	}

	printSummary(result)
	saveHistory(cfg, logger, result)
	return nil
}

func runHeadless(ctx context.Context, cfg *config.Config, logger *slog.Logger, task, userID string) (*models.Result, error) {
	orch, err := buildOrchestrator(ctx, cfg, logger, nil)
	if err != nil {
		return nil, err
	}
	result, _ := orch.Run(ctx, task, userID)
	return result, nil
}

func runWithTUI(ctx context.Context, cfg *config.Config, logger *slog.Logger, task, userID string) (*models.Result, error) {
	// Keep log noise off the TUI's screen.
	logger = slog.New(slog.DiscardHandler)

	emitter := orchestrator.NewEventEmitter(64, logger)
	orch, err := buildOrchestrator(ctx, cfg, logger, emitter)
	if err != nil {
		return nil, err
	}

	resultCh := make(chan *models.Result, 1)
	go func() {
		result, _ := orch.Run(ctx, task, userID)
		resultCh <- result
		emitter.Close()
	}()

	program := tea.NewProgram(tui.NewRunView(task, emitter.Events()))
	if _, err := program.Run(); err != nil {
		return nil, fmt.Errorf("running progress view: %w", err)
	}
	return <-resultCh, nil
}

func resolveTask(args []string) (task, userID string, err error) {
	userID = runUserID

	switch {
	case runFile != "":
		data, err := os.ReadFile(runFile)
		if err != nil {
			return "", "", fmt.Errorf("reading task file: %w", err)
		}
		var input taskInput
		if err := json.Unmarshal(data, &input); err != nil {
			return "", "", fmt.Errorf("parsing task file: %w", err)
		}
		if strings.TrimSpace(input.Task) == "" {
			return "", "", fmt.Errorf("task file %s has no task field", runFile)
		}
		task = input.Task
		if userID == "" {
			userID = input.UserID
		}
	case len(args) > 0 && strings.TrimSpace(args[0]) != "":
		task = args[0]
	default:
		task = sampleTask
	}
	return task, userID, nil
}

func printSummary(result *models.Result) {
	bold := color.New(color.Bold)

	fmt.Println()
	if result.Success {
		color.Green("✓ completed in %d iteration(s)", result.Iterations)
	} else {
		color.Red("✗ did not complete (%s, %d iteration(s))", result.Reason, result.Iterations)
		if result.Err != "" {
			color.Red("  error: %s", result.Err)
		}
	}
	fmt.Printf("run id: %s  duration: %s\n", result.RunID, result.FinishedAt.Sub(result.StartedAt).Round(10 * time.Millisecond))

	if result.FinalAnswer != "" {
		fmt.Println()
		bold.Println("Answer:")
		fmt.Println(result.FinalAnswer)
	}
}

func saveHistory(cfg *config.Config, logger *slog.Logger, result *models.Result) {
	if !cfg.History.Enabled {
		return
	}
	path := cfg.History.Path
	if path == "" {
		path = history.DefaultPath()
	}
	store, err := history.Open(path)
	if err != nil {
		logger.Warn("run history unavailable", "error", err)
		return
	}
	defer store.Close()

	if err := store.Save(result); err != nil {
		logger.Warn("failed to record run history", "error", err)
	}
}
