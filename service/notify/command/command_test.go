package command

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/overseer/model/checkpoint"
	"github.com/viant/overseer/service/notify"
)

func TestEnvironment(t *testing.T) {
	expires := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	msg := &notify.Message{RequestID: "r-1", Kind: checkpoint.KindDeploy, ApprovalToken: "tok", ExpiresAt: &expires}
	file, err := writeMessage(msg)
	require.NoError(t, err)
	defer os.Remove(file)
	env := Environment(msg, file)
	assert.Equal(t, "r-1", env["OVERSEER_REQUEST_ID"])
	assert.Equal(t, "deploy", env["OVERSEER_KIND"])
	assert.Equal(t, "tok", env["OVERSEER_TOKEN"])
	assert.Equal(t, "2026-05-01T08:00:00Z", env["OVERSEER_EXPIRES_AT"])
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"requestId":"r-1"`)
}

func TestNotifier_Notify(t *testing.T) {
	out := filepath.Join(t.TempDir(), "hook.out")
	type testCase struct {
		name    string
		command string
		wantErr bool
	}
	testCases := []testCase{
		{name: "hook succeeds", command: "echo $OVERSEER_REQUEST_ID > " + out},
		{name: "hook fails", command: "false", wantErr: true},
		{name: "no hook", command: " ", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := New(tc.command, 5*time.Second).Notify(context.Background(), &notify.Message{RequestID: "r-42"})
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			data, err := os.ReadFile(out)
			require.NoError(t, err)
			assert.Equal(t, "r-42\n", string(data))
		})
	}
}
