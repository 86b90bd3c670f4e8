package checkpoint

// Context captures what the agent was doing when a checkpoint fired. Once
// attached to a Checkpoint it is treated as immutable; use Clone before
// attaching a caller-owned value.
type Context struct {
	TaskID        string                 `json:"taskId,omitempty"`
	TaskTitle     string                 `json:"taskTitle,omitempty"`
	Action        string                 `json:"action,omitempty"`
	AffectedFiles []string               `json:"affectedFiles,omitempty"`
	Progress      map[string]string      `json:"progress,omitempty"`
	Error         string                 `json:"error,omitempty"`
	TurnNumber    uint64                 `json:"turnNumber"`
	ContextUsage  float64                `json:"contextUsage"`
	Custom        map[string]interface{} `json:"custom,omitempty"`
}

// Clone returns a deep copy of the slices and maps held by c.
func (c *Context) Clone() *Context {
	if c == nil {
		return &Context{}
	}
	ret := *c
	if c.AffectedFiles != nil {
		ret.AffectedFiles = append([]string(nil), c.AffectedFiles...)
	}
	if c.Progress != nil {
		ret.Progress = make(map[string]string, len(c.Progress))
		for k, v := range c.Progress {
			ret.Progress[k] = v
		}
	}
	if c.Custom != nil {
		ret.Custom = make(map[string]interface{}, len(c.Custom))
		for k, v := range c.Custom {
			ret.Custom[k] = v
		}
	}
	return &ret
}
