package runtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/overseer"
	"github.com/viant/overseer/model/approval"
	"github.com/viant/overseer/model/checkpoint"
	"github.com/viant/overseer/progress"
	"github.com/viant/overseer/runtime"
)

type answer struct {
	action       checkpoint.Action
	instructions string
}

// operator answers prompts in order and records what it was asked.
type operator struct {
	mu      sync.Mutex
	answers []answer
	asked   []checkpoint.Kind
}

func (o *operator) Prompt(ctx context.Context, req *approval.Request) (*approval.Response, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	next := answer{action: checkpoint.ActionContinue}
	if len(o.asked) < len(o.answers) {
		next = o.answers[len(o.asked)]
	}
	o.asked = append(o.asked, req.Kind)
	return &approval.Response{
		Approved:             next.action.Approves(),
		Action:               next.action,
		Channel:              approval.ChannelCLI,
		Responder:            approval.ResponderUser,
		RedirectInstructions: next.instructions,
	}, nil
}

func (o *operator) kinds() []checkpoint.Kind {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]checkpoint.Kind(nil), o.asked...)
}

// script replays reports by turn; turns without a report are plain work.
type script struct {
	reports map[int]*runtime.Report
	inputs  []*runtime.Input
	doneAt  int
}

func (s *script) RunTurn(ctx context.Context, input *runtime.Input) (*runtime.Report, error) {
	s.inputs = append(s.inputs, input)
	turn := len(s.inputs)
	report, ok := s.reports[turn]
	if !ok {
		report = &runtime.Report{Action: "edit"}
	}
	if turn == s.doneAt {
		report.Done = true
	}
	return report, nil
}

func newService(t *testing.T, mode checkpoint.Mode, prompter *operator) *overseer.Service {
	cfg := overseer.DefaultConfig()
	cfg.Store.Driver = overseer.StoreMemory
	cfg.Mode = mode
	cfg.Approval.PollIntervalMs = 10
	srv, err := overseer.New(context.Background(), cfg, overseer.WithPrompter(prompter))
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func usage(v float64) *float64 { return &v }

func TestLoop_Run(t *testing.T) {
	type testCase struct {
		name     string
		mode     checkpoint.Mode
		answers  []answer
		reports  map[int]*runtime.Report
		doneAt   int
		expected []checkpoint.Kind
		turns    int
		err      error
	}
	testCases := []testCase{
		{
			name:     "turn interval",
			mode:     checkpoint.ModeInteractive,
			doneAt:   60,
			turns:    60,
			expected: []checkpoint.Kind{checkpoint.KindTurnInterval, checkpoint.KindTurnInterval},
		},
		{
			name:     "git push approved",
			mode:     checkpoint.ModeInteractive,
			reports:  map[int]*runtime.Report{3: {Action: "publish", Commands: []string{"go test ./...", "git push origin main"}}},
			doneAt:   5,
			turns:    5,
			expected: []checkpoint.Kind{checkpoint.KindGitPush},
		},
		{
			name:     "regression aborted",
			mode:     checkpoint.ModeInteractive,
			answers:  []answer{{action: checkpoint.ActionAbort}},
			reports:  map[int]*runtime.Report{2: {Regression: "TestLogin failed"}},
			doneAt:   10,
			turns:    2,
			expected: []checkpoint.Kind{checkpoint.KindRegressionFailure},
			err:      runtime.ErrAborted,
		},
		{
			name:     "deploy paused",
			mode:     checkpoint.ModeSupervised,
			answers:  []answer{{action: checkpoint.ActionPause}},
			reports:  map[int]*runtime.Report{4: {Commands: []string{"kubectl apply -f k8s/"}}},
			doneAt:   10,
			turns:    4,
			expected: []checkpoint.Kind{checkpoint.KindDeploy},
			err:      runtime.ErrPaused,
		},
		{
			name: "autonomous ignores push and interval",
			mode: checkpoint.ModeAutonomous,
			reports: map[int]*runtime.Report{
				3:  {Commands: []string{"git push"}},
				30: {ContextUsage: usage(0.9)},
			},
			doneAt:   30,
			turns:    30,
			expected: []checkpoint.Kind{checkpoint.KindContextHigh},
		},
		{
			name: "rewritten migration",
			mode: checkpoint.ModeInteractive,
			reports: map[int]*runtime.Report{2: {Edits: []runtime.Edit{
				{Path: "main.go", Before: []byte("package main\n"), After: []byte("package main\n\nfunc main() {}\n")},
				{Path: "db/migrations/002_users.sql", After: []byte("ALTER TABLE users ADD COLUMN email TEXT;\n")},
			}}},
			doneAt:   2,
			turns:    2,
			expected: []checkpoint.Kind{checkpoint.KindSchemaChange},
		},
		{
			name: "task boundaries follow flags",
			mode: checkpoint.ModeInteractive,
			reports: map[int]*runtime.Report{
				2: {TaskCompleted: true, NextTask: &runtime.Task{ID: "OV-2", Title: "add export"}},
				3: {Blocker: "missing credentials"},
			},
			doneAt:   3,
			turns:    3,
			expected: []checkpoint.Kind{checkpoint.KindBlocker},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			prompter := &operator{answers: tc.answers}
			srv := newService(t, tc.mode, prompter)
			agent := &script{reports: tc.reports, doneAt: tc.doneAt}
			err := runtime.New(srv, agent).Run(context.Background())
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.expected, prompter.kinds())
			assert.Len(t, agent.inputs, tc.turns)
			assert.EqualValues(t, tc.turns, srv.Counter().Total())
		})
	}
}

func TestLoop_Redirect(t *testing.T) {
	prompter := &operator{answers: []answer{{action: checkpoint.ActionRedirect, instructions: "run the linter before pushing"}}}
	srv := newService(t, checkpoint.ModeInteractive, prompter)
	agent := &script{
		reports: map[int]*runtime.Report{1: {Commands: []string{"git push"}}},
		doneAt:  3,
	}
	var observed []progress.Snapshot
	loop := runtime.New(srv, agent, runtime.WithProgress(func(s progress.Snapshot) { observed = append(observed, s) }))
	require.NoError(t, loop.Run(context.Background()))
	require.Len(t, agent.inputs, 3)
	snapshot := loop.Progress()
	assert.Equal(t, 3, snapshot.Turns)
	assert.Equal(t, 1, snapshot.Checkpoints)
	assert.Equal(t, 1, snapshot.Redirected)
	assert.Len(t, observed, 4)
	assert.Empty(t, agent.inputs[0].Instructions)
	assert.Equal(t, "run the linter before pushing", agent.inputs[1].Instructions)
	assert.Empty(t, agent.inputs[2].Instructions)
	history := srv.Manager().History()
	require.Len(t, history, 1)
	assert.Equal(t, checkpoint.StatusApproved, history[0].Status)
	assert.Equal(t, "run the linter before pushing", history[0].ResolutionNotes)
}

func TestLoop_ResumeAfterPause(t *testing.T) {
	prompter := &operator{answers: []answer{{action: checkpoint.ActionPause}, {action: checkpoint.ActionContinue}}}
	srv := newService(t, checkpoint.ModeInteractive, prompter)
	agent := &script{
		reports: map[int]*runtime.Report{1: {Diff: deletion}},
		doneAt:  2,
	}
	err := runtime.New(srv, agent).Run(context.Background())
	require.ErrorIs(t, err, runtime.ErrPaused)
	pending := srv.Manager().GetPendingCheckpoint()
	require.NotNil(t, pending)
	assert.Equal(t, checkpoint.StatusPaused, pending.Status)
	assert.Equal(t, []string{"legacy/handler.go"}, pending.Context.AffectedFiles)

	require.NoError(t, runtime.New(srv, agent).Run(context.Background()))
	assert.Equal(t, []checkpoint.Kind{checkpoint.KindFileDelete, checkpoint.KindFileDelete}, prompter.kinds())
	assert.False(t, srv.Manager().HasPendingCheckpoint())
	assert.Len(t, agent.inputs, 2)
}

func TestLoop_TaskProvider(t *testing.T) {
	srv := newService(t, checkpoint.ModeInteractive, &operator{})
	agent := &script{doneAt: 1}
	provider := taskFunc(func(ctx context.Context) (*runtime.Task, error) {
		return &runtime.Task{ID: "OV-7", Title: "fix login"}, nil
	})
	require.NoError(t, runtime.New(srv, agent, runtime.WithTaskProvider(provider)).Run(context.Background()))
	require.Len(t, agent.inputs, 1)
	assert.Equal(t, "OV-7", agent.inputs[0].Task.ID)
}

func TestLoop_Cancelled(t *testing.T) {
	srv := newService(t, checkpoint.ModeInteractive, &operator{})
	ctx, cancel := context.WithCancel(context.Background())
	agent := runtime.AgentFunc(func(ctx context.Context, input *runtime.Input) (*runtime.Report, error) {
		cancel()
		return &runtime.Report{}, nil
	})
	done := make(chan error, 1)
	go func() { done <- runtime.New(srv, agent).Run(ctx) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}

// resumed is a gate whose pending checkpoint was answered out of band.
type resumed struct {
	outcome *overseer.Outcome
}

func (r *resumed) Turn(ctx context.Context, usage *float64) (uint64, error) { return 1, nil }

func (r *resumed) Gate(ctx context.Context, kind checkpoint.Kind, cctx *checkpoint.Context) (*overseer.Outcome, error) {
	return nil, nil
}

func (r *resumed) Resume(ctx context.Context) (*overseer.Outcome, error) { return r.outcome, nil }

func TestLoop_UnknownActionStops(t *testing.T) {
	type testCase struct {
		name     string
		action   checkpoint.Action
		expected error
		turns    int
	}
	testCases := []testCase{
		{name: "unknown", action: checkpoint.Action("bogus"), expected: runtime.ErrPaused},
		{name: "empty", action: checkpoint.Action(""), expected: runtime.ErrPaused},
		{name: "abort", action: checkpoint.ActionAbort, expected: runtime.ErrAborted},
		{name: "continue", action: checkpoint.ActionContinue, turns: 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gate := &resumed{outcome: &overseer.Outcome{
				Fired:      true,
				Checkpoint: &checkpoint.Checkpoint{ID: "cp-1"},
				Response:   &approval.Response{Action: tc.action},
			}}
			agent := &script{doneAt: 1}
			loop := runtime.New(gate, agent)
			err := loop.Run(context.Background())
			if tc.expected != nil {
				require.ErrorIs(t, err, tc.expected)
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, agent.inputs, tc.turns)
			assert.Equal(t, 1, loop.Progress().Checkpoints)
		})
	}
}

type taskFunc func(ctx context.Context) (*runtime.Task, error)

func (f taskFunc) CurrentTask(ctx context.Context) (*runtime.Task, error) { return f(ctx) }

const deletion = `diff --git a/legacy/handler.go b/legacy/handler.go
deleted file mode 100644
--- a/legacy/handler.go
+++ /dev/null
@@ -1,2 +0,0 @@
-package legacy
-func Handler() {}
`
