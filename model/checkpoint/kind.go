package checkpoint

import (
	"fmt"
	"strings"
)

// Kind is the triggering condition of a checkpoint. The string value doubles
// as the configuration flag name.
type Kind string

const (
	KindTurnInterval      Kind = "turn_interval"
	KindBeforeNewTask     Kind = "before_new_issue"
	KindAfterTaskComplete Kind = "after_issue_complete"
	KindRegressionFailure Kind = "regression_failure"
	KindBlocker           Kind = "blocker"
	KindUncertainty       Kind = "uncertainty"
	KindContextHigh       Kind = "context_high"
	KindFileDelete        Kind = "file_delete"
	KindGitPush           Kind = "git_push"
	KindDeploy            Kind = "deploy"
	KindSchemaChange      Kind = "schema_change"
)

// Kinds lists every checkpoint kind in declaration order.
var Kinds = []Kind{
	KindTurnInterval,
	KindBeforeNewTask,
	KindAfterTaskComplete,
	KindRegressionFailure,
	KindBlocker,
	KindUncertainty,
	KindContextHigh,
	KindFileDelete,
	KindGitPush,
	KindDeploy,
	KindSchemaChange,
}

var kindTitles = map[Kind]string{
	KindTurnInterval:      "Turn interval reached",
	KindBeforeNewTask:     "Before starting a new task",
	KindAfterTaskComplete: "Task completed",
	KindRegressionFailure: "Regression failure",
	KindBlocker:           "Blocker encountered",
	KindUncertainty:       "Agent is uncertain",
	KindContextHigh:       "Context window nearly full",
	KindFileDelete:        "File deletion",
	KindGitPush:           "Git push",
	KindDeploy:            "Deployment",
	KindSchemaChange:      "Schema change",
}

// Title returns a human readable label.
func (k Kind) Title() string {
	if title, ok := kindTitles[k]; ok {
		return title
	}
	return string(k)
}

// Valid reports whether k belongs to the closed set of kinds.
func (k Kind) Valid() bool {
	_, ok := kindTitles[k]
	return ok
}

// ParseKind converts a case-insensitive name (dashes allowed) to a Kind.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_"))
	if !k.Valid() {
		return "", fmt.Errorf("unknown checkpoint kind: %q", name)
	}
	return k, nil
}
