// Package tracker posts approval requests as comments on the task in the
// external task tracker.
package tracker

import (
	"context"
	"fmt"

	"github.com/viant/overseer/model/approval"
	"github.com/viant/overseer/service/notify"
)

// TaskTracker is the task-store collaborator.
type TaskTracker interface {
	Comment(ctx context.Context, taskID, body string) error
}

// Notifier comments on the task named by the checkpoint context.
type Notifier struct {
	tracker TaskTracker
}

// New creates a notifier.
func New(tracker TaskTracker) *Notifier {
	return &Notifier{tracker: tracker}
}

// Channel returns approval.ChannelLinear.
func (n *Notifier) Channel() approval.Channel { return approval.ChannelLinear }

// Notify posts the comment.
func (n *Notifier) Notify(ctx context.Context, msg *notify.Message) error {
	if n.tracker == nil {
		return fmt.Errorf("task tracker was not configured")
	}
	if msg.Context == nil || msg.Context.TaskID == "" {
		return fmt.Errorf("request %s has no task to comment on", msg.RequestID)
	}
	body := fmt.Sprintf("**%s**\n\n%s", msg.Title, msg.Text())
	if err := n.tracker.Comment(ctx, msg.Context.TaskID, body); err != nil {
		return fmt.Errorf("failed to comment on %s: %w", msg.Context.TaskID, err)
	}
	return nil
}
