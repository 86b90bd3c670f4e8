package tracker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/overseer/model/checkpoint"
	"github.com/viant/overseer/service/notify"
)

type comments struct {
	taskID string
	body   string
	err    error
}

func (c *comments) Comment(_ context.Context, taskID, body string) error {
	c.taskID, c.body = taskID, body
	return c.err
}

func TestNotifier_Notify(t *testing.T) {
	type testCase struct {
		name    string
		cctx    *checkpoint.Context
		err     error
		wantErr bool
	}
	testCases := []testCase{
		{name: "comments on task", cctx: &checkpoint.Context{TaskID: "ENG-12"}},
		{name: "no task", cctx: &checkpoint.Context{}, wantErr: true},
		{name: "tracker error", cctx: &checkpoint.Context{TaskID: "ENG-12"}, err: errors.New("rate limited"), wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := &comments{err: tc.err}
			err := New(store).Notify(context.Background(), &notify.Message{RequestID: "r", Title: "Checkpoint: Blocker", Context: tc.cctx})
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, "ENG-12", store.taskID)
			assert.Contains(t, store.body, "**Checkpoint: Blocker**")
		})
	}
	assert.Error(t, New(nil).Notify(context.Background(), &notify.Message{}))
}
