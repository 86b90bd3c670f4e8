package runtime

import "context"

// Task identifies the unit of work the agent is on.
type Task struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Input is handed to the agent at the start of a turn.
type Input struct {
	Task *Task
	// Instructions carries the operator's redirect from the last checkpoint;
	// it is delivered once.
	Instructions string
}

// Edit is a whole-file rewrite made by the agent. A nil Before marks a new
// file, a nil After a removed one.
type Edit struct {
	Path   string
	Before []byte
	After  []byte
}

// Report describes what the agent did during a turn.
type Report struct {
	// ContextUsage is the fraction of the context window in use, if known.
	ContextUsage *float64
	// Action summarises the turn, e.g. "refactor session store".
	Action string
	// Commands are the shell commands the agent ran or is about to run.
	Commands []string
	// Diff is a unified diff of the turn's edits.
	Diff string
	// Edits are rewrites reported as file content rather than as a diff.
	Edits         []Edit
	AffectedFiles []string
	Progress      map[string]string
	// Regression names the failing check when tests regressed.
	Regression string
	// Blocker explains why the agent cannot proceed.
	Blocker string
	// Uncertainty is the question the agent could not settle alone.
	Uncertainty   string
	TaskCompleted bool
	// NextTask is the task the agent picks up next.
	NextTask *Task
	// Done ends the loop after the turn is gated.
	Done bool
}

// Agent runs one turn of the autonomous coding agent.
type Agent interface {
	RunTurn(ctx context.Context, input *Input) (*Report, error)
}

// TaskContextProvider resolves the task the agent is working on.
type TaskContextProvider interface {
	CurrentTask(ctx context.Context) (*Task, error)
}

// AgentFunc adapts a function to Agent.
type AgentFunc func(ctx context.Context, input *Input) (*Report, error)

// RunTurn calls f.
func (f AgentFunc) RunTurn(ctx context.Context, input *Input) (*Report, error) {
	return f(ctx, input)
}
