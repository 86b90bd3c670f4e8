package checkpoint_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/overseer/model/approval"
	"github.com/viant/overseer/model/checkpoint"
	"github.com/viant/overseer/policy"
	manager "github.com/viant/overseer/service/checkpoint"
	"github.com/viant/overseer/service/dao/blob"
	"github.com/viant/overseer/service/turn"
)

func newPolicy(interval int) *policy.Policy {
	cfg := policy.DefaultConfig()
	cfg.TurnInterval = interval
	return policy.New(cfg)
}

func TestManager_TurnIntervalFiresExactly(t *testing.T) {
	ctx := context.Background()
	repo := blob.NewMemory()
	counter := turn.New(ctx, repo)
	m := manager.New(ctx, repo, newPolicy(25), manager.WithTurnTracker(counter))

	var fired []uint64
	for i := 0; i < 100; i++ {
		n, err := counter.Increment(ctx, nil)
		require.NoError(t, err)
		if !m.ShouldCheckpoint(checkpoint.KindTurnInterval, &checkpoint.Context{}) {
			continue
		}
		cp, err := m.CreateCheckpoint(ctx, checkpoint.KindTurnInterval, nil)
		require.NoError(t, err)
		assert.Equal(t, n, cp.Context.TurnNumber)
		require.NoError(t, m.Resolve(ctx, cp, &approval.Response{Approved: true, Action: checkpoint.ActionContinue, Responder: approval.ResponderUser}))
		fired = append(fired, n)
	}
	assert.Equal(t, []uint64{25, 50, 75, 100}, fired)
	assert.Len(t, m.History(), 4)
}

func TestManager_TurnIntervalWithoutTracker(t *testing.T) {
	ctx := context.Background()
	m := manager.New(ctx, blob.NewMemory(), newPolicy(5))
	m.SetTurn(4)
	assert.False(t, m.ShouldCheckpoint(checkpoint.KindTurnInterval, nil))
	assert.True(t, m.ShouldCheckpoint(checkpoint.KindTurnInterval, &checkpoint.Context{TurnNumber: 5}))
	cp, err := m.CreateCheckpoint(ctx, checkpoint.KindTurnInterval, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), cp.Context.TurnNumber)
	assert.Equal(t, uint64(5), m.State().LastCheckpointTurn)
}

func TestManager_SinglePending(t *testing.T) {
	ctx := context.Background()
	m := manager.New(ctx, blob.NewMemory(), newPolicy(25))

	cp, err := m.CreateCheckpoint(ctx, checkpoint.KindDeploy, &checkpoint.Context{TaskID: "T-1"})
	require.NoError(t, err)
	assert.True(t, m.HasPendingCheckpoint())

	_, err = m.CreateCheckpoint(ctx, checkpoint.KindGitPush, nil)
	assert.ErrorIs(t, err, manager.ErrCheckpointPending)

	pending := m.GetPendingCheckpoint()
	require.NotNil(t, pending)
	assert.Equal(t, cp.ID, pending.ID)
	pending.Context.TaskID = "mutated"
	assert.Equal(t, "T-1", m.GetPendingCheckpoint().Context.TaskID)

	_, err = m.CreateCheckpoint(ctx, checkpoint.Kind("bogus"), nil)
	assert.Error(t, err)
}

func TestManager_Resolve(t *testing.T) {
	type testCase struct {
		name        string
		response    *approval.Response
		status      checkpoint.Status
		stillQueued bool
	}
	testCases := []testCase{
		{
			name:     "approved continue",
			response: &approval.Response{Approved: true, Action: checkpoint.ActionContinue, Responder: approval.ResponderUser},
			status:   checkpoint.StatusApproved,
		},
		{
			name:     "redirect counts as approval",
			response: &approval.Response{Approved: true, Action: checkpoint.ActionRedirect, Responder: approval.ResponderUser, RedirectInstructions: "fix tests first"},
			status:   checkpoint.StatusApproved,
		},
		{
			name:     "abort",
			response: &approval.Response{Action: checkpoint.ActionAbort, Responder: approval.ResponderUser},
			status:   checkpoint.StatusRejected,
		},
		{
			name:     "timeout",
			response: &approval.Response{Action: checkpoint.ActionPause, Responder: approval.ResponderTimeout},
			status:   checkpoint.StatusTimedOut,
		},
		{
			name:        "human pause stays pending",
			response:    &approval.Response{Action: checkpoint.ActionPause, Responder: approval.ResponderUser, Notes: "lunch"},
			status:      checkpoint.StatusPaused,
			stillQueued: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			repo := blob.NewMemory()
			m := manager.New(ctx, repo, newPolicy(25))
			cp, err := m.CreateCheckpoint(ctx, checkpoint.KindBlocker, nil)
			require.NoError(t, err)
			tc.response.Timestamp = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			require.NoError(t, m.Resolve(ctx, cp, tc.response))

			assert.Equal(t, tc.stillQueued, m.HasPendingCheckpoint())
			var resolved *checkpoint.Checkpoint
			if tc.stillQueued {
				resolved = m.GetPendingCheckpoint()
				assert.Empty(t, m.History())
			} else {
				history := m.History()
				require.Len(t, history, 1)
				resolved = history[0]
			}
			assert.Equal(t, tc.status, resolved.Status)
			assert.Equal(t, tc.response.Action, resolved.ActionTaken)
			assert.Equal(t, tc.response.Responder, resolved.ResolvedBy)
			require.NotNil(t, resolved.ResolvedAt)
			assert.True(t, tc.response.Timestamp.Equal(*resolved.ResolvedAt))

			reloaded := manager.New(ctx, repo, newPolicy(25))
			assert.Equal(t, tc.stillQueued, reloaded.HasPendingCheckpoint())
		})
	}
}

func TestManager_ResolveUnknown(t *testing.T) {
	ctx := context.Background()
	m := manager.New(ctx, blob.NewMemory(), newPolicy(25))
	err := m.Resolve(ctx, &checkpoint.Checkpoint{ID: "nope"}, &approval.Response{Approved: true})
	assert.ErrorIs(t, err, manager.ErrNotPending)
}

func TestManager_PauseAndResume(t *testing.T) {
	ctx := context.Background()
	repo := blob.NewMemory()
	m := manager.New(ctx, repo, newPolicy(25))
	cp, err := m.CreateCheckpoint(ctx, checkpoint.KindSchemaChange, nil)
	require.NoError(t, err)
	require.NoError(t, m.Resolve(ctx, cp, &approval.Response{Action: checkpoint.ActionPause, Responder: approval.ResponderUser}))

	_, err = m.CreateCheckpoint(ctx, checkpoint.KindDeploy, nil)
	assert.ErrorIs(t, err, manager.ErrCheckpointPending)

	restarted := manager.New(ctx, repo, newPolicy(25))
	resumed, err := restarted.Resume(ctx)
	require.NoError(t, err)
	require.NotNil(t, resumed)
	assert.Equal(t, cp.ID, resumed.ID)
	assert.Equal(t, checkpoint.StatusPending, resumed.Status)
	assert.Nil(t, resumed.ResolvedAt)

	require.NoError(t, restarted.Resolve(ctx, resumed, &approval.Response{Approved: true, Action: checkpoint.ActionContinue, Responder: approval.ResponderUser}))
	assert.False(t, restarted.HasPendingCheckpoint())

	none, err := restarted.Resume(ctx)
	assert.NoError(t, err)
	assert.Nil(t, none)
}

func TestManager_CrashLeavesPendingRecoverable(t *testing.T) {
	ctx := context.Background()
	repo := blob.NewMemory()
	m := manager.New(ctx, repo, newPolicy(25))
	cp, err := m.CreateCheckpoint(ctx, checkpoint.KindFileDelete, &checkpoint.Context{AffectedFiles: []string{"a.go"}})
	require.NoError(t, err)

	recovered := manager.New(ctx, repo, newPolicy(25))
	pending := recovered.GetPendingCheckpoint()
	require.NotNil(t, pending)
	assert.Equal(t, cp.ID, pending.ID)
	assert.Equal(t, []string{"a.go"}, pending.Context.AffectedFiles)
}

func TestManager_HistoryBounded(t *testing.T) {
	ctx := context.Background()
	m := manager.New(ctx, blob.NewMemory(), newPolicy(25))
	var ids []string
	for i := 0; i < manager.HistoryLimit+5; i++ {
		m.SetTurn(uint64(i + 1))
		cp, err := m.CreateCheckpoint(ctx, checkpoint.KindUncertainty, nil)
		require.NoError(t, err)
		ids = append(ids, cp.ID)
		require.NoError(t, m.Resolve(ctx, cp, &approval.Response{Approved: true, Responder: approval.ResponderUser}))
	}
	history := m.History()
	require.Len(t, history, manager.HistoryLimit)
	assert.Equal(t, ids[5], history[0].ID)
	assert.Equal(t, ids[len(ids)-1], history[len(history)-1].ID)
}

func TestManager_CorruptStateIsFresh(t *testing.T) {
	ctx := context.Background()
	repo := blob.NewMemory()
	require.NoError(t, repo.Save(ctx, manager.StateKey, []byte("not json")))
	m := manager.New(ctx, repo, newPolicy(25))
	assert.False(t, m.HasPendingCheckpoint())
	_, err := m.CreateCheckpoint(ctx, checkpoint.KindBlocker, nil)
	assert.NoError(t, err)
}

func TestManager_ContextHigh(t *testing.T) {
	ctx := context.Background()
	m := manager.New(ctx, blob.NewMemory(), newPolicy(25))
	assert.False(t, m.ShouldCheckpoint(checkpoint.KindContextHigh, &checkpoint.Context{ContextUsage: 0.5}))
	assert.True(t, m.ShouldCheckpoint(checkpoint.KindContextHigh, &checkpoint.Context{ContextUsage: 0.9}))
}
