package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/polyflow-ai/polyflow/internal/config"
	"github.com/polyflow-ai/polyflow/internal/evaluator"
	"github.com/polyflow-ai/polyflow/internal/graph"
	"github.com/polyflow-ai/polyflow/internal/router"
	"github.com/polyflow-ai/polyflow/internal/scheduler"
	"github.com/polyflow-ai/polyflow/pkg/models"
)

// phase is the loop's current state.
type phase int

const (
	phaseDecompose phase = iota
	phaseExecute
	phaseEvaluate
	phaseDone
)

func (p phase) String() string {
	switch p {
	case phaseDecompose:
		return "decompose"
	case phaseExecute:
		return "execute"
	case phaseEvaluate:
		return "evaluate"
	case phaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Decomposer splits a task into a validated subtask graph.
type Decomposer interface {
	Decompose(ctx context.Context, task, feedback, previousResults string) (*graph.DAG, error)
}

// Judge scores a merged answer against the original task.
type Judge interface {
	Evaluate(ctx context.Context, task, merged string) (evaluator.Verdict, error)
}

// IterationRecord captures one pass through the refinement loop.
type IterationRecord struct {
	Iteration      int
	NodeCount      int
	Merged         string
	Complete       bool
	Feedback       string
	PartialFailure bool
	Duration       time.Duration
}

// Orchestrator owns the refinement loop. Each iteration decomposes the
// task, executes the resulting graph, merges the outputs, and evaluates
// whether the merged answer is adequate. Inadequate answers feed their
// evaluation feedback into the next decomposition.
type Orchestrator struct {
	decomposer Decomposer
	runner     scheduler.Runner
	judge      Judge
	loop       config.LoopConfig
	logger     *slog.Logger
	emitter    *EventEmitter
}

// New creates an orchestrator. The emitter may be nil when no subscriber
// wants progress events.
func New(decomposer Decomposer, runner scheduler.Runner, judge Judge, loop config.LoopConfig, logger *slog.Logger, emitter *EventEmitter) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if loop.MaxRetry < 1 {
		loop.MaxRetry = 1
	}
	return &Orchestrator{
		decomposer: decomposer,
		runner:     runner,
		judge:      judge,
		loop:       loop,
		logger:     logger,
		emitter:    emitter,
	}
}

// Run executes the full loop for one task. It never panics and never
// returns an error: every failure mode is folded into the Result so
// callers can report it uniformly. The trace holds one record per
// completed iteration.
func (o *Orchestrator) Run(ctx context.Context, task, userID string) (res *models.Result, trace []IterationRecord) {
	res = &models.Result{
		RunID:     uuid.NewString(),
		Task:      task,
		UserID:    userID,
		StartedAt: time.Now(),
	}

	defer func() {
		res.FinishedAt = time.Now()
		if r := recover(); r != nil {
			o.logger.Error("run panicked", "run_id", res.RunID, "panic", r)
			res.Success = false
			res.Reason = models.ReasonException
			res.Err = fmt.Sprintf("internal error: %v", r)
		}
		o.emit(Event{Type: EventRunDone, RunID: res.RunID, Complete: res.Success, Message: string(res.Reason)})
	}()

	o.logger.Info("starting run", "run_id", res.RunID, "user_id", userID, "max_retry", o.loop.MaxRetry)
	o.emit(Event{Type: EventRunStarted, RunID: res.RunID, Message: task})

	var (
		feedback   string
		lastMerged string
	)

	for iteration := 1; iteration <= o.loop.MaxRetry; iteration++ {
		res.Iterations = iteration
		started := time.Now()
		o.emit(Event{Type: EventIterationStarted, RunID: res.RunID, Iteration: iteration, Message: feedback})

		record, done := o.runIteration(ctx, res, iteration, task, feedback, lastMerged)
		if record != nil {
			record.Duration = time.Since(started)
			trace = append(trace, *record)
			lastMerged = record.Merged
			feedback = record.Feedback
		}
		if done {
			return res, trace
		}
	}

	// Every iteration ran and none was judged adequate.
	res.Success = false
	res.Reason = models.ReasonMaxRetry
	res.FinalAnswer = lastMerged
	o.logger.Warn("retry limit reached", "run_id", res.RunID, "iterations", res.Iterations)
	return res, trace
}

// runIteration performs one decompose, execute, evaluate pass. It
// returns the iteration record (nil when the iteration aborted before
// producing outputs) and whether the run is finished.
func (o *Orchestrator) runIteration(ctx context.Context, res *models.Result, iteration int, task, feedback, lastMerged string) (*IterationRecord, bool) {
	state := phaseDecompose
	o.logger.Debug("iteration phase", "run_id", res.RunID, "iteration", iteration, "phase", state)

	dag, err := o.decomposer.Decompose(ctx, task, feedback, lastMerged)
	if err != nil {
		var derr *router.DecompositionError
		if errors.As(err, &derr) {
			o.logger.Error("decomposition failed", "run_id", res.RunID, "attempts", derr.Attempts, "error", err)
		} else {
			o.logger.Error("decomposition failed", "run_id", res.RunID, "error", err)
		}
		res.Success = false
		res.Reason = models.ReasonException
		res.Err = err.Error()
		res.FinalAnswer = lastMerged
		return nil, true
	}
	o.emit(Event{Type: EventDecomposed, RunID: res.RunID, Iteration: iteration, NodeCount: dag.Size()})

	state = phaseExecute
	o.logger.Debug("iteration phase", "run_id", res.RunID, "iteration", iteration, "phase", state, "nodes", dag.Size())

	sched := scheduler.New(o.runner,
		scheduler.WithMaxInflight(o.loop.MaxInflight),
		scheduler.WithLogger(o.logger),
		scheduler.WithNodeHooks(
			func(node *models.Subtask, _ *models.NodeOutput) {
				o.emit(Event{Type: EventNodeStarted, RunID: res.RunID, Iteration: iteration, NodeID: node.ID, Domain: node.Domain, Message: node.Description})
			},
			func(node *models.Subtask, out *models.NodeOutput) {
				o.emit(Event{Type: EventNodeFinished, RunID: res.RunID, Iteration: iteration, NodeID: node.ID, Domain: node.Domain, Failed: out.IsFailure()})
			},
		),
	)

	execState, err := sched.Execute(ctx, dag)
	if err != nil {
		var gerr *graph.InvalidGraphError
		if errors.As(err, &gerr) {
			// Structurally bad graph counts as a failed iteration; the
			// defect becomes refinement feedback for the next attempt.
			o.logger.Warn("graph rejected at execution", "run_id", res.RunID, "iteration", iteration, "error", err)
			return &IterationRecord{
				Iteration: iteration,
				Merged:    lastMerged,
				Feedback:  fmt.Sprintf("the task breakdown was structurally invalid: %v; produce a corrected breakdown", gerr),
			}, false
		}
		res.Success = false
		res.Reason = models.ReasonException
		res.Err = err.Error()
		res.FinalAnswer = lastMerged
		return nil, true
	}

	state = phaseEvaluate
	merged := evaluator.Merge(execState.Outputs())
	o.logger.Debug("iteration phase", "run_id", res.RunID, "iteration", iteration, "phase", state, "failures", execState.FailureCount())

	verdict, err := o.judge.Evaluate(ctx, task, merged)
	if err != nil {
		res.Success = false
		res.Reason = models.ReasonException
		res.Err = err.Error()
		res.FinalAnswer = merged
		return nil, true
	}
	o.emit(Event{Type: EventEvaluated, RunID: res.RunID, Iteration: iteration, Complete: verdict.Complete, Message: verdict.Feedback})

	record := &IterationRecord{
		Iteration:      iteration,
		NodeCount:      dag.Size(),
		Merged:         merged,
		Complete:       verdict.Complete,
		Feedback:       verdict.Feedback,
		PartialFailure: verdict.PartialFailure,
	}

	if verdict.Complete {
		res.Success = true
		res.Reason = models.ReasonCompleted
		res.FinalAnswer = merged
		o.logger.Info("run completed", "run_id", res.RunID, "iterations", iteration)
		return record, true
	}

	o.logger.Info("result judged incomplete, refining",
		"run_id", res.RunID, "iteration", iteration, "feedback", verdict.Feedback)
	return record, false
}

func (o *Orchestrator) emit(event Event) {
	if o.emitter != nil {
		o.emitter.Emit(event)
	}
}
