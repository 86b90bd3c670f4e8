package progress

import (
	"context"
	"sync"
	"time"

	"github.com/viant/overseer/model/checkpoint"
)

// Delta is an incremental counter change.
type Delta struct {
	Turns       int
	Checkpoints int
	Approved    int
	Redirected  int
	Paused      int
	Aborted     int
}

// ForAction returns the delta of one checkpoint answered with action.
func ForAction(action checkpoint.Action) Delta {
	d := Delta{Checkpoints: 1}
	switch action {
	case checkpoint.ActionContinue:
		d.Approved = 1
	case checkpoint.ActionRedirect:
		d.Redirected = 1
	case checkpoint.ActionAbort:
		d.Aborted = 1
	default:
		d.Paused = 1
	}
	return d
}

// Progress holds the counters of a run. It is safe for concurrent use.
type Progress struct {
	RunID     string
	StartedAt time.Time

	Turns       int
	Checkpoints int
	Approved    int
	Redirected  int
	Paused      int
	Aborted     int

	mu       sync.Mutex
	onChange func(Snapshot)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	RunID       string    `json:"runId"`
	StartedAt   time.Time `json:"startedAt"`
	Turns       int       `json:"turns"`
	Checkpoints int       `json:"checkpoints"`
	Approved    int       `json:"approved"`
	Redirected  int       `json:"redirected"`
	Paused      int       `json:"paused"`
	Aborted     int       `json:"aborted"`
}

// New creates a tracker; onChange, when set, observes every update outside
// the lock.
func New(runID string, onChange func(Snapshot)) *Progress {
	return &Progress{RunID: runID, StartedAt: time.Now(), onChange: onChange}
}

// Update applies d.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.Turns += d.Turns
	p.Checkpoints += d.Checkpoints
	p.Approved += d.Approved
	p.Redirected += d.Redirected
	p.Paused += d.Paused
	p.Aborted += d.Aborted
	snapshot := p.snapshotLocked()
	onChange := p.onChange
	p.mu.Unlock()

	if onChange != nil {
		onChange(snapshot)
	}
}

// Snapshot returns a copy of the counters.
func (p *Progress) Snapshot() Snapshot {
	if p == nil {
		return Snapshot{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Progress) snapshotLocked() Snapshot {
	return Snapshot{
		RunID:       p.RunID,
		StartedAt:   p.StartedAt,
		Turns:       p.Turns,
		Checkpoints: p.Checkpoints,
		Approved:    p.Approved,
		Redirected:  p.Redirected,
		Paused:      p.Paused,
		Aborted:     p.Aborted,
	}
}

type trackerKey struct{}

// WithTracker embeds p in a derived context.
func WithTracker(ctx context.Context, p *Progress) context.Context {
	return context.WithValue(ctx, trackerKey{}, p)
}

// FromContext returns the tracker carried by ctx.
func FromContext(ctx context.Context) (*Progress, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(trackerKey{}).(*Progress)
	return p, ok
}

// UpdateCtx applies d to the tracker in ctx, if any.
func UpdateCtx(ctx context.Context, d Delta) {
	if p, ok := FromContext(ctx); ok {
		p.Update(d)
	}
}
