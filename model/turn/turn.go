package turn

import "time"

// Session is the active run boundary inside the lifetime turn counter.
type Session struct {
	ID                   string    `json:"id"`
	StartTurn            uint64    `json:"startTurn"`
	StartedAt            time.Time `json:"startedAt"`
	CheckpointsTriggered int       `json:"checkpointsTriggered"`
}

// State is the persisted shape of turn_counter.json.
type State struct {
	TotalTurns         uint64    `json:"totalTurns"`
	LastCheckpointTurn uint64    `json:"lastCheckpointTurn"`
	UpdatedAt          time.Time `json:"updatedAt"`
	ActiveSession      *Session  `json:"activeSession,omitempty"`
}

// Sample is a context-usage observation taken at a turn.
type Sample struct {
	Turn  uint64  `json:"turn"`
	Usage float64 `json:"usage"`
}

// Metrics summarises a session.
type Metrics struct {
	SessionID            string        `json:"sessionId"`
	StartTurn            uint64        `json:"startTurn"`
	EndTurn              uint64        `json:"endTurn"`
	Turns                uint64        `json:"turns"`
	Duration             time.Duration `json:"duration"`
	AverageTurnDuration  time.Duration `json:"averageTurnDuration"`
	CheckpointsTriggered int           `json:"checkpointsTriggered"`
	PeakContextUsage     float64       `json:"peakContextUsage"`
	ContextTrend         *float64      `json:"contextTrend,omitempty"`
}
