package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/viant/overseer"
	"github.com/viant/overseer/internal/idgen"
	"github.com/viant/overseer/model/checkpoint"
	"github.com/viant/overseer/progress"
	"github.com/viant/overseer/service/inspect"
)

var (
	// ErrPaused stops the loop when an operator paused it.
	ErrPaused = errors.New("runtime: paused by operator")
	// ErrAborted stops the loop when an operator aborted it.
	ErrAborted = errors.New("runtime: aborted by operator")
)

// Gate is the part of overseer.Service the loop relies on.
type Gate interface {
	Turn(ctx context.Context, usage *float64) (uint64, error)
	Gate(ctx context.Context, kind checkpoint.Kind, cctx *checkpoint.Context) (*overseer.Outcome, error)
	Resume(ctx context.Context) (*overseer.Outcome, error)
}

// Loop runs the agent turn by turn.
type Loop struct {
	gate     Gate
	agent    Agent
	tasks    TaskContextProvider
	logger   *slog.Logger
	maxTurns int
	worktree string
	progress *progress.Progress
	observe  func(progress.Snapshot)

	task         *Task
	instructions string
}

// Option customises a Loop.
type Option func(*Loop)

// WithTaskProvider sets the source of the current task.
func WithTaskProvider(tasks TaskContextProvider) Option {
	return func(l *Loop) { l.tasks = tasks }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMaxTurns stops the loop after n turns; zero means unbounded.
func WithMaxTurns(n int) Option {
	return func(l *Loop) { l.maxTurns = n }
}

// WithWorktree inspects the git worktree at dir after every turn.
func WithWorktree(dir string) Option {
	return func(l *Loop) { l.worktree = dir }
}

// WithProgress observes the run counters after every change.
func WithProgress(observe func(progress.Snapshot)) Option {
	return func(l *Loop) { l.observe = observe }
}

// New creates a loop.
func New(gate Gate, agent Agent, options ...Option) *Loop {
	ret := &Loop{gate: gate, agent: agent, logger: slog.Default()}
	for _, option := range options {
		option(ret)
	}
	ret.progress = progress.New(idgen.New(), ret.observe)
	return ret
}

// Progress returns the counters of the run.
func (l *Loop) Progress() progress.Snapshot {
	return l.progress.Snapshot()
}

// Run re-offers an outstanding checkpoint, then runs turns until the agent
// reports done, the turn limit is reached, an operator stops it or ctx ends.
func (l *Loop) Run(ctx context.Context) error {
	ctx = progress.WithTracker(ctx, l.progress)
	outcome, err := l.gate.Resume(ctx)
	if err != nil {
		return fmt.Errorf("failed to resume checkpoint: %w", err)
	}
	if outcome != nil {
		if err = l.apply(ctx, outcome); err != nil {
			return err
		}
	}
	for ran := 0; l.maxTurns <= 0 || ran < l.maxTurns; ran++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		done, err := l.step(ctx)
		if err != nil || done {
			return err
		}
	}
	l.logger.Info("runtime_turn_limit", "turns", l.maxTurns)
	return nil
}

func (l *Loop) step(ctx context.Context) (bool, error) {
	task, err := l.currentTask(ctx)
	if err != nil {
		return false, err
	}
	input := &Input{Task: task, Instructions: l.instructions}
	l.instructions = ""
	report, err := l.agent.RunTurn(ctx, input)
	if err != nil {
		return false, fmt.Errorf("agent turn failed: %w", err)
	}
	if report == nil {
		report = &Report{}
	}
	turn, err := l.gate.Turn(ctx, report.ContextUsage)
	if err != nil {
		return false, fmt.Errorf("failed to count turn: %w", err)
	}
	progress.UpdateCtx(ctx, progress.Delta{Turns: 1})

	cctx, kinds, err := l.evaluate(report, task, turn)
	if err != nil {
		return false, err
	}
	for _, kind := range kinds {
		outcome, err := l.gate.Gate(ctx, kind, cctx)
		if err != nil {
			return false, err
		}
		if err = l.apply(ctx, outcome); err != nil {
			return false, err
		}
	}
	if report.NextTask != nil {
		l.task = report.NextTask
	}
	return report.Done, nil
}

func (l *Loop) currentTask(ctx context.Context) (*Task, error) {
	if l.tasks == nil {
		return l.task, nil
	}
	task, err := l.tasks.CurrentTask(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current task: %w", err)
	}
	if task != nil {
		l.task = task
	}
	return l.task, nil
}

// evaluate builds the checkpoint context of a turn and the kinds to offer,
// most urgent first.
func (l *Loop) evaluate(report *Report, task *Task, turn uint64) (*checkpoint.Context, []checkpoint.Kind, error) {
	changes := &inspect.Changes{}
	if report.Diff != "" {
		diffChanges, err := inspect.Diff(report.Diff)
		if err != nil {
			l.logger.Warn("runtime_diff_unreadable", "turn", turn, "error", err.Error())
		} else {
			changes.Merge(diffChanges)
		}
	}
	for _, edit := range report.Edits {
		text, err := inspect.Compare(edit.Path, edit.Before, edit.After, 0)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to compare %s: %w", edit.Path, err)
		}
		editChanges, err := inspect.Diff(text)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to inspect %s: %w", edit.Path, err)
		}
		changes.Merge(editChanges)
	}
	if l.worktree != "" {
		worktreeChanges, err := inspect.Worktree(l.worktree)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to inspect worktree: %w", err)
		}
		changes.Merge(worktreeChanges)
	}

	cctx := &checkpoint.Context{
		Action:        report.Action,
		AffectedFiles: mergeFiles(report.AffectedFiles, changes.Affected),
		Progress:      report.Progress,
		TurnNumber:    turn,
	}
	if task != nil {
		cctx.TaskID = task.ID
		cctx.TaskTitle = task.Title
	}
	if report.ContextUsage != nil {
		cctx.ContextUsage = *report.ContextUsage
	}

	var kinds []checkpoint.Kind
	seen := map[checkpoint.Kind]bool{}
	add := func(candidates ...checkpoint.Kind) {
		for _, kind := range candidates {
			if !seen[kind] {
				seen[kind] = true
				kinds = append(kinds, kind)
			}
		}
	}
	if report.Regression != "" {
		cctx.Error = report.Regression
		add(checkpoint.KindRegressionFailure)
	}
	if report.Blocker != "" {
		if cctx.Error == "" {
			cctx.Error = report.Blocker
		}
		add(checkpoint.KindBlocker)
	}
	if report.Uncertainty != "" {
		cctx.Custom = map[string]interface{}{"question": report.Uncertainty}
		add(checkpoint.KindUncertainty)
	}
	for _, command := range report.Commands {
		add(inspect.Command(command)...)
	}
	add(changes.Kinds()...)
	if report.TaskCompleted {
		add(checkpoint.KindAfterTaskComplete)
	}
	if report.NextTask != nil {
		add(checkpoint.KindBeforeNewTask)
	}
	add(checkpoint.KindContextHigh, checkpoint.KindTurnInterval)
	return cctx, kinds, nil
}

// apply maps a resolved checkpoint to loop control.
func (l *Loop) apply(ctx context.Context, outcome *overseer.Outcome) error {
	if outcome == nil || !outcome.Fired {
		return nil
	}
	progress.UpdateCtx(ctx, progress.ForAction(outcome.Action()))
	id := ""
	if outcome.Checkpoint != nil {
		id = outcome.Checkpoint.ID
	}
	switch outcome.Action() {
	case checkpoint.ActionAbort:
		l.logger.Warn("runtime_aborted", "checkpoint_id", id)
		return fmt.Errorf("%w: checkpoint %s", ErrAborted, id)
	case checkpoint.ActionPause:
		l.logger.Info("runtime_paused", "checkpoint_id", id)
		return fmt.Errorf("%w: checkpoint %s", ErrPaused, id)
	case checkpoint.ActionRedirect:
		if outcome.Response != nil && outcome.Response.RedirectInstructions != "" {
			if l.instructions != "" {
				l.instructions += "\n"
			}
			l.instructions += outcome.Response.RedirectInstructions
		}
		l.logger.Info("runtime_redirected", "checkpoint_id", id)
	case checkpoint.ActionContinue:
	default:
		l.logger.Warn("runtime_paused", "checkpoint_id", id, "action", string(outcome.Action()))
		return fmt.Errorf("%w: checkpoint %s: unknown action %q", ErrPaused, id, outcome.Action())
	}
	return nil
}

func mergeFiles(sets ...[]string) []string {
	var ret []string
	seen := map[string]bool{}
	for _, set := range sets {
		for _, name := range set {
			if name != "" && !seen[name] {
				seen[name] = true
				ret = append(ret, name)
			}
		}
	}
	return ret
}
