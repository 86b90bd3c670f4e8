package checkpoint

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a checkpoint.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusTimedOut Status = "timed_out"
	// StatusPaused is a human pause: the checkpoint stays resumable and is
	// not archived as resolved.
	StatusPaused Status = "paused"
)

// Terminal reports whether the status is archived as resolved.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusTimedOut
}

// Label is the status as shown to operators.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusApproved:
		return "APPROVED"
	case StatusRejected:
		return "REJECTED"
	case StatusTimedOut:
		return "TIMED OUT"
	case StatusPaused:
		return "PAUSED (resumable)"
	}
	return string(s)
}

// Checkpoint is a point where execution waits for review.
type Checkpoint struct {
	ID              string     `json:"id"`
	Kind            Kind       `json:"kind"`
	TriggeredAt     time.Time  `json:"triggeredAt"`
	Context         *Context   `json:"context"`
	Status          Status     `json:"status"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy      string     `json:"resolvedBy,omitempty"`
	ResolutionNotes string     `json:"resolutionNotes,omitempty"`
	ActionTaken     Action     `json:"actionTaken,omitempty"`
}

// NewID derives a checkpoint id from its kind and trigger time.
func NewID(kind Kind, at time.Time) string {
	return fmt.Sprintf("%s-%s", kind, at.UTC().Format("20060102T150405.000000000"))
}

// State is the persisted shape of checkpoints.json.
type State struct {
	CurrentTurn        uint64        `json:"currentTurn"`
	LastCheckpointTurn uint64        `json:"lastCheckpointTurn"`
	Pending            *Checkpoint   `json:"pending,omitempty"`
	History            []*Checkpoint `json:"history"`
}

// Clone returns a copy safe to hand to callers.
func (c *Checkpoint) Clone() *Checkpoint {
	if c == nil {
		return nil
	}
	ret := *c
	ret.Context = c.Context.Clone()
	if c.ResolvedAt != nil {
		at := *c.ResolvedAt
		ret.ResolvedAt = &at
	}
	return &ret
}
