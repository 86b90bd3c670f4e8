package turn

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/viant/overseer/internal/clock"
	"github.com/viant/overseer/internal/idgen"
	"github.com/viant/overseer/model/turn"
	"github.com/viant/overseer/service/dao"
	"github.com/viant/overseer/service/dao/blob"
	"github.com/viant/overseer/service/dao/store"
)

const (
	// StateKey is the document key of the persisted counter.
	StateKey = "turn_counter.json"
	// MaxSamples caps the context usage ring buffer.
	MaxSamples = 100
	// DefaultTrendWindow is the number of samples used by ContextTrend.
	DefaultTrendWindow = 10
	// DefaultUsageLimit is the usage fraction EstimateRemainingTurns targets.
	DefaultUsageLimit = 0.9
)

// Counter counts agent turns. It is safe for concurrent use, although the
// runtime is expected to be its only writer.
type Counter struct {
	mu        sync.Mutex
	doc       *store.Document[turn.State]
	state     turn.State
	logger    *slog.Logger
	samples   []turn.Sample
	durations []time.Duration
	lastTurn  time.Time
}

// Option customises a Counter.
type Option func(*Counter)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Counter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New loads the counter from repo. A missing or corrupt document starts a
// fresh counter and is only reported as a warning.
func New(ctx context.Context, repo blob.Repository, options ...Option) *Counter {
	ret := &Counter{
		doc:    store.NewDocument[turn.State](repo, StateKey),
		logger: slog.Default(),
	}
	for _, option := range options {
		option(ret)
	}
	ret.load(ctx)
	return ret
}

func (c *Counter) load(ctx context.Context) {
	state, err := c.doc.Load(ctx)
	switch {
	case err == nil:
		c.state = *state
	case errors.Is(err, dao.ErrNotFound):
		c.state = turn.State{}
	default:
		c.logger.Warn("turn_state_unreadable", "key", StateKey, "error", err.Error())
		c.state = turn.State{}
	}
	if c.state.LastCheckpointTurn > c.state.TotalTurns {
		c.state.LastCheckpointTurn = c.state.TotalTurns
	}
}

// Increment advances the counter and persists it. usage, when given, is
// recorded as a context usage sample for the new turn.
func (c *Counter) Increment(ctx context.Context, usage *float64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := clock.Now()
	if !c.lastTurn.IsZero() {
		c.durations = append(c.durations, now.Sub(c.lastTurn))
		if len(c.durations) > MaxSamples {
			c.durations = c.durations[len(c.durations)-MaxSamples:]
		}
	}
	c.lastTurn = now
	c.state.TotalTurns++
	if usage != nil {
		c.samples = append(c.samples, turn.Sample{Turn: c.state.TotalTurns, Usage: clamp(*usage)})
		if len(c.samples) > MaxSamples {
			c.samples = c.samples[len(c.samples)-MaxSamples:]
		}
	}
	return c.state.TotalTurns, c.saveLocked(ctx)
}

// ShouldCheckpoint reports whether interval turns elapsed since the last
// checkpoint. A non-positive interval disables the check.
func (c *Counter) ShouldCheckpoint(interval int) bool {
	if interval <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.TotalTurns-c.state.LastCheckpointTurn >= uint64(interval)
}

// MarkCheckpoint records a checkpoint at the current turn.
func (c *Counter) MarkCheckpoint(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.LastCheckpointTurn = c.state.TotalTurns
	if c.state.ActiveSession != nil {
		c.state.ActiveSession.CheckpointsTriggered++
	}
	return c.saveLocked(ctx)
}

// StartSession opens a session; an empty id is generated. Any active session
// is replaced. The lifetime total is kept.
func (c *Counter) StartSession(ctx context.Context, id string) (string, error) {
	if id == "" {
		id = idgen.New()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ActiveSession = &turn.Session{
		ID:        id,
		StartTurn: c.state.TotalTurns,
		StartedAt: clock.Now(),
	}
	c.samples = nil
	c.durations = nil
	c.lastTurn = time.Time{}
	return id, c.saveLocked(ctx)
}

// EndSession closes the active session and returns its metrics. Without an
// active session it returns nil metrics.
func (c *Counter) EndSession(ctx context.Context) (*turn.Metrics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.ActiveSession == nil {
		return nil, nil
	}
	metrics := c.metricsLocked()
	c.state.ActiveSession = nil
	c.samples = nil
	c.durations = nil
	c.lastTurn = time.Time{}
	return metrics, c.saveLocked(ctx)
}

// Metrics returns a snapshot of the active session, or nil.
func (c *Counter) Metrics() *turn.Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.ActiveSession == nil {
		return nil
	}
	return c.metricsLocked()
}

func (c *Counter) metricsLocked() *turn.Metrics {
	session := c.state.ActiveSession
	ret := &turn.Metrics{
		SessionID:            session.ID,
		StartTurn:            session.StartTurn,
		EndTurn:              c.state.TotalTurns,
		Turns:                c.state.TotalTurns - session.StartTurn,
		Duration:             clock.Since(session.StartedAt),
		CheckpointsTriggered: session.CheckpointsTriggered,
	}
	if len(c.durations) > 0 {
		var total time.Duration
		for _, d := range c.durations {
			total += d
		}
		ret.AverageTurnDuration = total / time.Duration(len(c.durations))
	}
	for _, sample := range c.samples {
		if sample.Usage > ret.PeakContextUsage {
			ret.PeakContextUsage = sample.Usage
		}
	}
	if trend, ok := c.trendLocked(DefaultTrendWindow); ok {
		ret.ContextTrend = &trend
	}
	return ret
}

// ContextTrend is the mean of the newer half minus the mean of the older half
// of the last window samples. It is undefined with fewer than window samples.
func (c *Counter) ContextTrend(window int) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trendLocked(window)
}

func (c *Counter) trendLocked(window int) (float64, bool) {
	if window <= 0 {
		window = DefaultTrendWindow
	}
	if window < 2 || len(c.samples) < window {
		return 0, false
	}
	recent := c.samples[len(c.samples)-window:]
	half := window / 2
	return mean(recent[half:]) - mean(recent[:half]), true
}

// EstimateRemainingTurns extrapolates the usage trend linearly to limit. It is
// undefined when the trend is unknown or not increasing.
func (c *Counter) EstimateRemainingTurns(limit float64) (int, bool) {
	if limit <= 0 {
		limit = DefaultUsageLimit
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	trend, ok := c.trendLocked(DefaultTrendWindow)
	if !ok || trend <= 0 {
		return 0, false
	}
	current := c.samples[len(c.samples)-1].Usage
	remaining := int((limit - current) / trend)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Total returns the lifetime turn count.
func (c *Counter) Total() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.TotalTurns
}

// LastCheckpointTurn returns the turn of the most recent checkpoint.
func (c *Counter) LastCheckpointTurn() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.LastCheckpointTurn
}

// State returns a copy of the persisted state.
func (c *Counter) State() turn.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	ret := c.state
	if c.state.ActiveSession != nil {
		session := *c.state.ActiveSession
		ret.ActiveSession = &session
	}
	return ret
}

func (c *Counter) saveLocked(ctx context.Context) error {
	c.state.UpdatedAt = clock.Now()
	state := c.state
	return c.doc.Save(ctx, &state)
}

func mean(samples []turn.Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s.Usage
	}
	return sum / float64(len(samples))
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
