package checkpoint

import (
	"fmt"
	"strings"
)

// Action is what the runtime does after a checkpoint is resolved.
type Action string

const (
	ActionContinue Action = "continue"
	ActionPause    Action = "pause"
	ActionAbort    Action = "abort"
	ActionRedirect Action = "redirect"
)

// ParseAction accepts full names and single letter shortcuts (c, p, a, r).
func ParseAction(name string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "c", "continue":
		return ActionContinue, nil
	case "p", "pause":
		return ActionPause, nil
	case "a", "abort":
		return ActionAbort, nil
	case "r", "redirect":
		return ActionRedirect, nil
	}
	return "", fmt.Errorf("unknown action: %q", name)
}

// Approves reports whether the action lets the agent keep working.
func (a Action) Approves() bool {
	return a == ActionContinue || a == ActionRedirect
}
