package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/overseer"
	"github.com/viant/overseer/model/approval"
	"github.com/viant/overseer/model/checkpoint"
)

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigCommand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, defaultConfigName), []byte(`
mode: supervised
approval:
  timeoutMinutes: 5
notifications:
  email:
    enabled: true
    smtpAddr: smtp.example.com:587
    from: agent@example.com
    to: [lead@example.com]
    password: hunter2
`), 0o644))
	t.Setenv("OVERSEER_APPROVAL_TIMEOUT_MINUTES", "7")

	out, err := run(t, "config", "--state-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "mode: supervised")
	assert.Contains(t, out, "timeoutMinutes: 7")
	assert.Contains(t, out, "smtpAddr: smtp.example.com:587")
	assert.Contains(t, out, redacted)
	assert.NotContains(t, out, "hunter2")

	_, err = run(t, "config", "--config", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("OVERSEER_MODE", "reckless")
	_, err = run(t, "config", "--state-dir", dir)
	assert.Error(t, err)
}

func TestApprovalCommands(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := overseer.DefaultConfig()
	cfg.StateDir = dir
	cfg.Approval.PollIntervalMs = 10
	srv, err := overseer.New(ctx, cfg)
	require.NoError(t, err)
	defer srv.Close()

	answered, err := srv.Gateway().RequestApproval(ctx, "cp-1", checkpoint.KindGitPush, &checkpoint.Context{Action: "git push origin main"})
	require.NoError(t, err)
	dropped, err := srv.Gateway().RequestApproval(ctx, "cp-2", checkpoint.KindDeploy, nil)
	require.NoError(t, err)

	out, err := run(t, "pending", "--state-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, answered.ID)
	assert.Contains(t, out, "git push origin main")
	assert.Contains(t, out, dropped.ID)

	type testCase struct {
		name string
		args []string
		out  string
		err  bool
	}
	testCases := []testCase{
		{name: "unknown action", args: []string{"respond", answered.ID, "launch"}, err: true},
		{name: "redirect without instructions", args: []string{"respond", answered.ID, "redirect"}, err: true},
		{name: "unknown request", args: []string{"respond", "missing", "continue"}, err: true},
		{name: "continue", args: []string{"respond", answered.ID, "c", "--notes", "looks fine"}, out: answered.ID + ": continue"},
		{name: "cancel", args: []string{"cancel", dropped.ID}, out: dropped.ID + ": cancelled"},
		{name: "cancel twice", args: []string{"cancel", dropped.ID}, err: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := run(t, append(tc.args, "--state-dir", dir)...)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, tc.out)
		})
	}

	resp, err := srv.Gateway().WaitForApproval(ctx, answered.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, checkpoint.ActionContinue, resp.Action)
	assert.Equal(t, approval.ChannelCLI, resp.Channel)
	assert.Equal(t, "looks fine", resp.Notes)

	out, err = run(t, "pending", "--state-dir", dir, "--json")
	require.NoError(t, err)
	var pending []*approval.Request
	require.NoError(t, json.Unmarshal([]byte(out), &pending))
	assert.Empty(t, pending)
}

func TestStatusCommand(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := overseer.DefaultConfig()
	cfg.StateDir = dir
	srv, err := overseer.New(ctx, cfg)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = srv.Turn(ctx, nil)
		require.NoError(t, err)
	}
	_, err = srv.Manager().CreateCheckpoint(ctx, checkpoint.KindBlocker, &checkpoint.Context{Error: "no credentials"})
	require.NoError(t, err)
	require.NoError(t, srv.Close())

	out, err := run(t, "status", "--state-dir", dir, "--json")
	require.NoError(t, err)
	view := &statusView{}
	require.NoError(t, json.Unmarshal([]byte(out), view))
	assert.EqualValues(t, 3, view.Turns.TotalTurns)
	require.NotNil(t, view.Pending)
	assert.Equal(t, checkpoint.KindBlocker, view.Pending.Kind)

	out, err = run(t, "status", "--state-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Total turns:     3")
	assert.Contains(t, out, "PENDING")
}
