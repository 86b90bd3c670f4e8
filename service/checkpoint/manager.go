package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/viant/overseer/internal/clock"
	"github.com/viant/overseer/model/approval"
	"github.com/viant/overseer/model/checkpoint"
	"github.com/viant/overseer/policy"
	"github.com/viant/overseer/service/dao"
	"github.com/viant/overseer/service/dao/blob"
	"github.com/viant/overseer/service/dao/store"
	"github.com/viant/overseer/tracing"
)

const (
	// StateKey is the document key of the persisted manager state.
	StateKey = "checkpoints.json"
	// HistoryLimit is the number of archived checkpoints kept.
	HistoryLimit = 10
)

var (
	// ErrCheckpointPending is returned when a checkpoint is already outstanding.
	ErrCheckpointPending = errors.New("checkpoint: another checkpoint is pending")
	// ErrNotPending is returned when resolving a checkpoint that is not outstanding.
	ErrNotPending = errors.New("checkpoint: checkpoint is not pending")
)

// TurnTracker is the part of the turn counter the manager relies on.
type TurnTracker interface {
	Total() uint64
	ShouldCheckpoint(interval int) bool
	MarkCheckpoint(ctx context.Context) error
}

// Manager owns the single pending checkpoint and the archived history.
type Manager struct {
	mu     sync.Mutex
	doc    *store.Document[checkpoint.State]
	state  checkpoint.State
	policy *policy.Policy
	turns  TurnTracker
	logger *slog.Logger
}

// Option customises a Manager.
type Option func(*Manager)

// WithTurnTracker binds the manager to the turn counter.
func WithTurnTracker(turns TurnTracker) Option {
	return func(m *Manager) { m.turns = turns }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New loads the manager state from repo, recovering any checkpoint left
// pending by a previous process.
func New(ctx context.Context, repo blob.Repository, p *policy.Policy, options ...Option) *Manager {
	if p == nil {
		p = policy.New(nil)
	}
	ret := &Manager{
		doc:    store.NewDocument[checkpoint.State](repo, StateKey),
		policy: p,
		logger: slog.Default(),
	}
	for _, option := range options {
		option(ret)
	}
	ret.load(ctx)
	return ret
}

func (m *Manager) load(ctx context.Context) {
	state, err := m.doc.Load(ctx)
	switch {
	case err == nil:
		m.state = *state
	case errors.Is(err, dao.ErrNotFound):
		m.state = checkpoint.State{}
	default:
		m.logger.Warn("checkpoint_state_unreadable", "key", StateKey, "error", err.Error())
		m.state = checkpoint.State{}
	}
	if m.state.LastCheckpointTurn > m.state.CurrentTurn {
		m.state.LastCheckpointTurn = m.state.CurrentTurn
	}
	if pending := m.state.Pending; pending != nil {
		m.logger.Info("checkpoint_recovered", "id", pending.ID, "kind", string(pending.Kind), "status", string(pending.Status))
	}
}

// Policy returns the decision policy.
func (m *Manager) Policy() *policy.Policy { return m.policy }

// SetTurn advances the manager's notion of the current turn. It is only
// needed when no TurnTracker is bound.
func (m *Manager) SetTurn(turn uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if turn > m.state.CurrentTurn {
		m.state.CurrentTurn = turn
	}
}

func (m *Manager) currentTurnLocked() uint64 {
	if m.turns != nil {
		if total := m.turns.Total(); total > m.state.CurrentTurn {
			m.state.CurrentTurn = total
		}
	}
	return m.state.CurrentTurn
}

// ShouldCheckpoint reports whether kind must fire given cctx.
func (m *Manager) ShouldCheckpoint(kind checkpoint.Kind, cctx *checkpoint.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	in := policy.Input{}
	if cctx != nil {
		in.ContextUsage = cctx.ContextUsage
		if cctx.TurnNumber > m.state.CurrentTurn {
			m.state.CurrentTurn = cctx.TurnNumber
		}
	}
	if kind == checkpoint.KindTurnInterval {
		interval := m.policy.Config().TurnInterval
		if m.turns != nil {
			in.TurnDue = m.turns.ShouldCheckpoint(interval)
		} else if interval > 0 {
			current := m.currentTurnLocked()
			in.TurnDue = current-m.state.LastCheckpointTurn >= uint64(interval)
		}
	}
	return m.policy.ShouldFire(kind, in)
}

// CreateCheckpoint materialises a pending checkpoint and persists it before
// returning. It fails with ErrCheckpointPending while another checkpoint,
// including a paused one, is outstanding.
func (m *Manager) CreateCheckpoint(ctx context.Context, kind checkpoint.Kind, cctx *checkpoint.Context) (cp *checkpoint.Checkpoint, err error) {
	ctx, span := tracing.StartSpan(ctx, "checkpoint.create", tracing.KindInternal)
	span.WithAttributes(map[string]string{"checkpoint.kind": string(kind)})
	defer func() { tracing.EndSpan(span, err) }()

	if !kind.Valid() {
		return nil, fmt.Errorf("invalid checkpoint kind: %q", kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if pending := m.state.Pending; pending != nil {
		return nil, fmt.Errorf("%w: %s (%s)", ErrCheckpointPending, pending.ID, pending.Status)
	}

	current := m.currentTurnLocked()
	attached := cctx.Clone()
	if attached.TurnNumber == 0 {
		attached.TurnNumber = current
	}
	now := clock.Now()
	cp = &checkpoint.Checkpoint{
		ID:          checkpoint.NewID(kind, now),
		Kind:        kind,
		TriggeredAt: now,
		Context:     attached,
		Status:      checkpoint.StatusPending,
	}

	previousLast := m.state.LastCheckpointTurn
	m.state.Pending = cp
	m.state.LastCheckpointTurn = current
	if err = m.saveLocked(ctx); err != nil {
		m.state.Pending = nil
		m.state.LastCheckpointTurn = previousLast
		return nil, err
	}
	if m.turns != nil {
		if markErr := m.turns.MarkCheckpoint(ctx); markErr != nil {
			m.logger.Warn("checkpoint_turn_mark_failed", "id", cp.ID, "error", markErr.Error())
		}
	}
	m.logger.Info("checkpoint_created", "id", cp.ID, "kind", string(kind), "turn", current)
	return cp.Clone(), nil
}

// Resolve records the outcome of the pending checkpoint cp.
//
// Approved, rejected (abort) and timed out checkpoints are archived and the
// pending slot is cleared. Any other outcome is a human pause: the checkpoint
// stays in the pending slot with status paused so that it survives a restart
// and can be resumed.
func (m *Manager) Resolve(ctx context.Context, cp *checkpoint.Checkpoint, response *approval.Response) error {
	if cp == nil || response == nil {
		return fmt.Errorf("checkpoint and response are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pending := m.state.Pending
	if pending == nil || pending.ID != cp.ID {
		return fmt.Errorf("%w: %s", ErrNotPending, cp.ID)
	}

	resolved := pending.Clone()
	at := response.Timestamp
	if at.IsZero() {
		at = clock.Now()
	}
	resolved.Status = StatusOf(response)
	resolved.ResolvedAt = &at
	resolved.ResolvedBy = response.Responder
	resolved.ResolutionNotes = response.Notes
	if response.RedirectInstructions != "" && resolved.ResolutionNotes == "" {
		resolved.ResolutionNotes = response.RedirectInstructions
	}
	resolved.ActionTaken = response.Action

	history := m.state.History
	if resolved.Status.Terminal() {
		m.state.Pending = nil
		m.state.History = append(m.state.History, resolved)
		if extra := len(m.state.History) - HistoryLimit; extra > 0 {
			m.state.History = append([]*checkpoint.Checkpoint(nil), m.state.History[extra:]...)
		}
	} else {
		m.state.Pending = resolved
	}
	if err := m.saveLocked(ctx); err != nil {
		m.state.Pending = pending
		m.state.History = history
		return err
	}
	m.logger.Info("checkpoint_resolved", "id", resolved.ID, "status", string(resolved.Status),
		"action", string(resolved.ActionTaken), "by", resolved.ResolvedBy)
	return nil
}

// StatusOf maps an approval response to the checkpoint status it produces.
func StatusOf(response *approval.Response) checkpoint.Status {
	switch {
	case response.Approved:
		return checkpoint.StatusApproved
	case response.Action == checkpoint.ActionAbort:
		return checkpoint.StatusRejected
	case response.Responder == approval.ResponderTimeout:
		return checkpoint.StatusTimedOut
	default:
		return checkpoint.StatusPaused
	}
}

// Resume turns a paused checkpoint back into a pending one so it can be
// offered for approval again. It returns nil when nothing is outstanding.
func (m *Manager) Resume(ctx context.Context) (*checkpoint.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := m.state.Pending
	if pending == nil {
		return nil, nil
	}
	if pending.Status == checkpoint.StatusPaused {
		resumed := pending.Clone()
		resumed.Status = checkpoint.StatusPending
		resumed.ResolvedAt = nil
		resumed.ResolvedBy = ""
		resumed.ActionTaken = ""
		m.state.Pending = resumed
		if err := m.saveLocked(ctx); err != nil {
			m.state.Pending = pending
			return nil, err
		}
		m.logger.Info("checkpoint_resumed", "id", resumed.ID)
	}
	return m.state.Pending.Clone(), nil
}

// HasPendingCheckpoint reports whether a pending or paused checkpoint exists.
func (m *Manager) HasPendingCheckpoint() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Pending != nil
}

// GetPendingCheckpoint returns a copy of the outstanding checkpoint, or nil.
func (m *Manager) GetPendingCheckpoint() *checkpoint.Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Pending.Clone()
}

// History returns archived checkpoints, oldest first.
func (m *Manager) History() []*checkpoint.Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.historyLocked()
}

// State returns a copy of the persisted state.
func (m *Manager) State() checkpoint.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return checkpoint.State{
		CurrentTurn:        m.state.CurrentTurn,
		LastCheckpointTurn: m.state.LastCheckpointTurn,
		Pending:            m.state.Pending.Clone(),
		History:            m.historyLocked(),
	}
}

func (m *Manager) historyLocked() []*checkpoint.Checkpoint {
	ret := make([]*checkpoint.Checkpoint, 0, len(m.state.History))
	for _, cp := range m.state.History {
		ret = append(ret, cp.Clone())
	}
	return ret
}

func (m *Manager) saveLocked(ctx context.Context) error {
	m.currentTurnLocked()
	state := m.state
	if state.History == nil {
		state.History = []*checkpoint.Checkpoint{}
	}
	if err := m.doc.Save(ctx, &state); err != nil {
		return fmt.Errorf("failed to persist checkpoint state: %w", err)
	}
	return nil
}
