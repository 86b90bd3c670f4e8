// Package command runs an operator-supplied shell hook for each approval
// request, e.g. a desktop notification or a pager script.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"

	"github.com/viant/overseer/model/approval"
	"github.com/viant/overseer/service/notify"
)

// DefaultTimeout bounds a hook run.
const DefaultTimeout = 30 * time.Second

// Notifier executes the hook with request details in the environment:
// OVERSEER_REQUEST_ID, OVERSEER_CHECKPOINT_ID, OVERSEER_KIND, OVERSEER_TOKEN,
// OVERSEER_CALLBACK_URL, OVERSEER_EXPIRES_AT and OVERSEER_MESSAGE_FILE, the
// path of the message rendered as JSON.
type Notifier struct {
	command string
	timeout time.Duration
}

// New creates a notifier; timeout ≤ 0 uses DefaultTimeout.
func New(command string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Notifier{command: command, timeout: timeout}
}

// Channel returns approval.ChannelCommand.
func (n *Notifier) Channel() approval.Channel { return approval.ChannelCommand }

// Environment returns the variables exported to the hook.
func Environment(msg *notify.Message, messageFile string) map[string]string {
	env := map[string]string{
		"OVERSEER_REQUEST_ID":    msg.RequestID,
		"OVERSEER_CHECKPOINT_ID": msg.CheckpointID,
		"OVERSEER_KIND":          string(msg.Kind),
		"OVERSEER_TOKEN":         msg.ApprovalToken,
		"OVERSEER_CALLBACK_URL":  msg.CallbackURL,
		"OVERSEER_MESSAGE_FILE":  messageFile,
	}
	if msg.ExpiresAt != nil {
		env["OVERSEER_EXPIRES_AT"] = msg.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return env
}

func writeMessage(msg *notify.Message) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp("", "overseer-message-*.json")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err = f.Write(data); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// Notify runs the hook and fails on a non-zero exit status.
func (n *Notifier) Notify(ctx context.Context, msg *notify.Message) error {
	if strings.TrimSpace(n.command) == "" {
		return fmt.Errorf("notification command was empty")
	}
	messageFile, err := writeMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to write message file: %w", err)
	}
	defer os.Remove(messageFile)
	service, err := gosh.New(ctx, local.New(runner.WithEnvironment(Environment(msg, messageFile))))
	if err != nil {
		return fmt.Errorf("failed to start shell: %w", err)
	}
	defer service.Close()
	stdout, status, err := service.Run(ctx, n.command, runner.WithTimeout(int(n.timeout.Milliseconds())))
	if err != nil {
		return fmt.Errorf("notification command failed: %w", err)
	}
	if status != 0 {
		return fmt.Errorf("notification command exited with %d: %s", status, strings.TrimSpace(stdout))
	}
	return nil
}
