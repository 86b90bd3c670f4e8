package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/viant/overseer/internal/clock"
	"github.com/viant/overseer/internal/idgen"
	"github.com/viant/overseer/model/approval"
	"github.com/viant/overseer/model/checkpoint"
	"github.com/viant/overseer/service/dao"
	"github.com/viant/overseer/service/dao/blob"
	"github.com/viant/overseer/service/dao/criteria"
	"github.com/viant/overseer/service/dao/store"
	"github.com/viant/overseer/service/messaging"
	"github.com/viant/overseer/service/notify"
	"github.com/viant/overseer/tracing"
)

const (
	// Prefix is the key prefix of approval documents.
	Prefix = "approvals"
	// ResponseSuffix marks the pickup artifact of a request.
	ResponseSuffix = "_response"

	DefaultPollInterval = 500 * time.Millisecond
)

// Config controls request deadlines and delivery.
type Config struct {
	// TimeoutMinutes ≤ 0 means requests never expire.
	TimeoutMinutes int
	// DefaultAction is applied on timeout: continue, pause or abort.
	DefaultAction   checkpoint.Action
	PollInterval    time.Duration
	CallbackBaseURL string
	// Channels are the enabled out-of-band channels added to every request.
	Channels []approval.Channel
}

// DefaultConfig returns a 30 minute timeout that pauses on expiry.
func DefaultConfig() *Config {
	return &Config{
		TimeoutMinutes: 30,
		DefaultAction:  checkpoint.ActionPause,
		PollInterval:   DefaultPollInterval,
	}
}

// Validate checks the timeout action.
func (c *Config) Validate() error {
	switch c.DefaultAction {
	case checkpoint.ActionContinue, checkpoint.ActionPause, checkpoint.ActionAbort:
		return nil
	}
	return fmt.Errorf("invalid approval default action: %q", c.DefaultAction)
}

type waiter struct {
	wake      chan struct{}
	cancelled chan struct{}
	once      sync.Once
}

func (w *waiter) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *waiter) cancel() {
	w.once.Do(func() { close(w.cancelled) })
}

// Gateway implements Service over a blob repository.
type Gateway struct {
	config   Config
	repo     blob.Repository
	requests *store.JSONStore[approval.Request]
	sender   notify.Sender
	prompter Prompter
	events   *messaging.Hub[approval.Event]
	logger   *slog.Logger

	mu      sync.Mutex
	waiters map[string]map[*waiter]struct{}
}

// Option customises a Gateway.
type Option func(*Gateway)

// WithSender sets the out-of-band notification sender.
func WithSender(sender notify.Sender) Option {
	return func(g *Gateway) { g.sender = sender }
}

// WithPrompter sets the CLI response path.
func WithPrompter(prompter Prompter) Option {
	return func(g *Gateway) { g.prompter = prompter }
}

// WithEvents shares an event hub.
func WithEvents(hub *messaging.Hub[approval.Event]) Option {
	return func(g *Gateway) {
		if hub != nil {
			g.events = hub
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates a gateway; a nil config uses DefaultConfig.
func New(repo blob.Repository, config *Config, options ...Option) *Gateway {
	if config == nil {
		config = DefaultConfig()
	}
	ret := &Gateway{
		config:  *config,
		repo:    repo,
		events:  messaging.NewHub[approval.Event](),
		logger:  slog.Default(),
		waiters: map[string]map[*waiter]struct{}{},
	}
	if ret.config.PollInterval <= 0 {
		ret.config.PollInterval = DefaultPollInterval
	}
	if ret.config.DefaultAction == "" {
		ret.config.DefaultAction = checkpoint.ActionPause
	}
	for _, option := range options {
		option(ret)
	}
	ret.requests = store.NewJSONStore[approval.Request](repo, Prefix,
		func(r *approval.Request) string { return r.ID },
		store.WithExclude[approval.Request](func(id string) bool { return strings.HasSuffix(id, ResponseSuffix) }),
		store.WithFilter[approval.Request](func(r *approval.Request, parameters []*dao.Parameter) bool {
			return criteria.FilterByStatus(string(r.Status), parameters)
		}),
		store.WithLogger[approval.Request](ret.logger),
	)
	return ret
}

var _ Service = (*Gateway)(nil)

// Events returns the lifecycle event hub.
func (g *Gateway) Events() *messaging.Hub[approval.Event] { return g.events }

// Config returns the gateway configuration.
func (g *Gateway) Config() Config { return g.config }

// Channels returns the default channel set: CLI plus the enabled channels.
func (g *Gateway) Channels() []approval.Channel {
	ret := []approval.Channel{approval.ChannelCLI}
	for _, channel := range g.config.Channels {
		if channel != approval.ChannelCLI && !containsChannel(ret, channel) {
			ret = append(ret, channel)
		}
	}
	return ret
}

func containsChannel(channels []approval.Channel, candidate approval.Channel) bool {
	for _, channel := range channels {
		if channel == candidate {
			return true
		}
	}
	return false
}

// RequestApproval persists a pending request and delivers it to every
// out-of-band channel. Delivery failures are logged only.
func (g *Gateway) RequestApproval(ctx context.Context, checkpointID string, kind checkpoint.Kind, cctx *checkpoint.Context, channels ...approval.Channel) (req *approval.Request, err error) {
	ctx, span := tracing.StartSpan(ctx, "approval.request", tracing.KindInternal)
	span.WithAttributes(map[string]string{"checkpoint.id": checkpointID, "checkpoint.kind": string(kind)})
	defer func() { tracing.EndSpan(span, err) }()

	token, err := idgen.NewToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate approval token: %w", err)
	}
	if len(channels) == 0 {
		channels = g.Channels()
	}
	now := clock.Now()
	req = &approval.Request{
		ID:           idgen.New(),
		CheckpointID: checkpointID,
		Kind:         kind,
		CreatedAt:    now,
		Context:      cctx.Clone(),
		Channels:     append([]approval.Channel(nil), channels...),
		Status:       approval.StatusPending,
		TokenHash:    HashToken(token),
	}
	if g.config.TimeoutMinutes > 0 {
		expiresAt := now.Add(time.Duration(g.config.TimeoutMinutes) * time.Minute)
		req.ExpiresAt = &expiresAt
	}
	if err = g.requests.Save(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to persist approval request: %w", err)
	}
	req.Token = token
	g.logger.Info("approval_requested", "request_id", req.ID, "checkpoint_id", checkpointID, "kind", string(kind), "channels", len(channels))
	g.publish(approval.TopicRequestCreated, req, nil)

	if g.sender != nil {
		var outOfBand []approval.Channel
		for _, channel := range channels {
			if channel != approval.ChannelCLI {
				outOfBand = append(outOfBand, channel)
			}
		}
		if len(outOfBand) > 0 {
			failed := g.sender.Send(ctx, notify.NewMessage(req, g.config.CallbackBaseURL), outOfBand...)
			if len(failed) > 0 {
				g.logger.Warn("approval_delivery_incomplete", "request_id", req.ID, "failed", len(failed), "channels", len(outOfBand))
			}
		}
	}
	return req, nil
}

// Load returns a persisted request.
func (g *Gateway) Load(ctx context.Context, id string) (*approval.Request, error) {
	req, err := g.requests.Load(ctx, id)
	if err != nil {
		if dao.IsAbsent(err) || errors.Is(err, dao.ErrInvalidID) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRequest, id)
		}
		return nil, err
	}
	return req, nil
}

// ListPending returns requests still awaiting a response.
func (g *Gateway) ListPending(ctx context.Context) ([]*approval.Request, error) {
	return g.requests.List(ctx, dao.NewParameter(criteria.StatusParameter, string(approval.StatusPending)))
}

// HandleTimeout maps the configured default action to a response.
func (g *Gateway) HandleTimeout(req *approval.Request) *approval.Response {
	action := g.config.DefaultAction
	return &approval.Response{
		Approved:  action == checkpoint.ActionContinue,
		Action:    action,
		Channel:   approval.ChannelAuto,
		Responder: approval.ResponderTimeout,
		Timestamp: clock.Now(),
		Notes:     fmt.Sprintf("no response for request %s; applied %s", req.ID, action),
	}
}

type promptResult struct {
	response *approval.Response
	err      error
}

// WaitForApproval races the deadline, deposited responses, the CLI prompt,
// cancellation and ctx. The first to complete resolves the request; the
// others are abandoned and their late results discarded.
func (g *Gateway) WaitForApproval(ctx context.Context, id string, timeout *time.Duration) (resp *approval.Response, err error) {
	ctx, span := tracing.StartSpan(ctx, "approval.wait", tracing.KindInternal)
	span.WithAttributes(map[string]string{"approval.request_id": id})
	defer func() { tracing.EndSpan(span, err) }()

	req, err := g.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch req.Status {
	case approval.StatusPending:
	case approval.StatusCancelled:
		return nil, fmt.Errorf("%w: %s", ErrCancelled, id)
	default:
		if req.Response != nil {
			return req.Response, nil
		}
		return nil, fmt.Errorf("request %s is %s without a response", id, req.Status)
	}

	w := g.register(id)
	defer g.unregister(id, w)

	waitCtx, cancelWait := context.WithCancel(ctx)
	defer cancelWait()

	var deadline <-chan time.Time
	if at := g.deadline(req, timeout); at != nil {
		timer := time.NewTimer(at.Sub(clock.Now()))
		defer timer.Stop()
		deadline = timer.C
	}

	var prompted chan promptResult
	if g.prompter != nil && req.HasChannel(approval.ChannelCLI) {
		prompted = make(chan promptResult, 1)
		go func() {
			response, err := g.prompter.Prompt(waitCtx, req)
			prompted <- promptResult{response: response, err: err}
		}()
	}

	if stop := g.watch(waitCtx, id, w); stop != nil {
		defer stop()
	}
	ticker := time.NewTicker(g.config.PollInterval)
	defer ticker.Stop()

	if resp, done, err := g.pickup(ctx, req); done || err != nil {
		return resp, err
	}
	for {
		select {
		case <-deadline:
			return g.resolve(ctx, req, g.HandleTimeout(req))
		case <-w.wake:
		case <-ticker.C:
		case result := <-prompted:
			prompted = nil
			if result.err != nil {
				if waitCtx.Err() == nil {
					g.logger.Warn("approval_prompt_failed", "request_id", id, "error", result.err.Error())
				}
				continue
			}
			if result.response == nil {
				continue
			}
			if resp, done, err := g.pickup(ctx, req); done || err != nil {
				return resp, err
			}
			return g.resolve(ctx, req, normalize(result.response))
		case <-w.cancelled:
			return nil, fmt.Errorf("%w: %s", ErrCancelled, id)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if resp, done, err := g.pickup(ctx, req); done || err != nil {
			return resp, err
		}
	}
}

func (g *Gateway) deadline(req *approval.Request, timeout *time.Duration) *time.Time {
	if timeout == nil {
		return req.ExpiresAt
	}
	if *timeout <= 0 {
		return nil
	}
	at := clock.Now().Add(*timeout)
	return &at
}

// pickup consumes a deposited response. done is true once the request is
// no longer pending.
func (g *Gateway) pickup(ctx context.Context, req *approval.Request) (*approval.Response, bool, error) {
	doc := g.responseDocument(req.ID)
	deposited, err := doc.Load(ctx)
	switch {
	case err == nil:
		resp, err := g.resolve(ctx, req, deposited)
		if errors.Is(err, ErrCancelled) {
			return nil, true, err
		}
		return resp, true, err
	case dao.IsAbsent(err):
		if errors.Is(err, dao.ErrCorrupt) {
			g.logger.Warn("approval_response_unreadable", "request_id", req.ID)
			_ = doc.Delete(ctx)
		}
		return g.settled(ctx, req)
	default:
		g.logger.Warn("approval_response_check_failed", "request_id", req.ID, "error", err.Error())
		return nil, false, nil
	}
}

// settled reports a request cancelled or resolved elsewhere, possibly by
// another process sharing the store.
func (g *Gateway) settled(ctx context.Context, req *approval.Request) (*approval.Response, bool, error) {
	current, err := g.requests.Load(ctx, req.ID)
	if err != nil {
		return nil, false, nil
	}
	switch {
	case current.Status == approval.StatusPending:
		return nil, false, nil
	case current.Status == approval.StatusCancelled:
		return nil, true, fmt.Errorf("%w: %s", ErrCancelled, req.ID)
	case current.Response != nil:
		return current.Response, true, nil
	}
	return nil, false, nil
}

// resolve records resp as the single outcome of req. An accepted deposit
// takes precedence over resp.
func (g *Gateway) resolve(ctx context.Context, req *approval.Request, resp *approval.Response) (*approval.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	current, err := g.requests.Load(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload approval request %s: %w", req.ID, err)
	}
	if current.Status != approval.StatusPending {
		if current.Status == approval.StatusCancelled {
			return nil, fmt.Errorf("%w: %s", ErrCancelled, req.ID)
		}
		if current.Response != nil {
			return current.Response, nil
		}
	}
	doc := g.responseDocument(req.ID)
	if deposited, err := doc.Load(ctx); err == nil {
		resp = deposited
	}
	if resp.Timestamp.IsZero() {
		resp.Timestamp = clock.Now()
	}
	current.Status = resp.Status()
	current.Response = resp
	if err := g.requests.Save(ctx, current); err != nil {
		return nil, fmt.Errorf("failed to persist approval outcome: %w", err)
	}
	if err := doc.Delete(ctx); err != nil {
		g.logger.Warn("approval_response_cleanup_failed", "request_id", req.ID, "error", err.Error())
	}
	topic := approval.TopicRequestResolved
	if current.Status == approval.StatusTimedOut {
		topic = approval.TopicRequestTimedOut
	}
	g.logger.Info("approval_resolved", "request_id", req.ID, "status", string(current.Status),
		"action", string(resp.Action), "channel", string(resp.Channel), "responder", resp.Responder)
	g.publish(topic, current, resp)
	return resp, nil
}

// ReceiveAsyncResponse authenticates callback and deposits its response.
func (g *Gateway) ReceiveAsyncResponse(ctx context.Context, callback *approval.Callback) bool {
	if callback == nil || callback.RequestID == "" {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	req, err := g.requests.Load(ctx, callback.RequestID)
	if err != nil {
		g.logger.Warn("approval_callback_rejected", "request_id", callback.RequestID, "reason", "unknown_request")
		return false
	}
	if !TokenMatches(req.TokenHash, callback.ApprovalToken) {
		g.logger.Warn("approval_callback_rejected", "request_id", callback.RequestID, "reason", "token_mismatch")
		return false
	}
	resp := responseOf(callback)
	if err := validate(resp); err != nil {
		g.logger.Warn("approval_callback_rejected", "request_id", callback.RequestID, "reason", "invalid_response", "error", err.Error())
		return false
	}
	ok, err := g.depositLocked(ctx, req, resp)
	if err != nil {
		g.logger.Warn("approval_callback_failed", "request_id", callback.RequestID, "error", err.Error())
		return false
	}
	return ok
}

// Respond deposits resp for a trusted local caller.
func (g *Gateway) Respond(ctx context.Context, id string, resp *approval.Response) (bool, error) {
	if resp == nil {
		return false, fmt.Errorf("response was nil")
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	req, err := g.requests.Load(ctx, id)
	if err != nil {
		if dao.IsAbsent(err) || errors.Is(err, dao.ErrInvalidID) {
			return false, fmt.Errorf("%w: %s", ErrUnknownRequest, id)
		}
		return false, err
	}
	normalized := normalize(resp)
	if err := validate(normalized); err != nil {
		return false, err
	}
	return g.depositLocked(ctx, req, normalized)
}

// depositLocked writes the pickup artifact once per pending, unexpired
// request. Callers hold g.mu.
func (g *Gateway) depositLocked(ctx context.Context, req *approval.Request, resp *approval.Response) (bool, error) {
	if req.Status != approval.StatusPending || req.Expired(clock.Now()) {
		return false, nil
	}
	doc := g.responseDocument(req.ID)
	if _, err := doc.Load(ctx); err == nil {
		return false, nil
	} else if !dao.IsAbsent(err) {
		return false, err
	}
	if err := doc.Save(ctx, resp); err != nil {
		return false, err
	}
	g.logger.Info("approval_response_received", "request_id", req.ID, "channel", string(resp.Channel), "responder", resp.Responder)
	g.publish(approval.TopicResponseReceived, req, resp)
	for w := range g.waiters[req.ID] {
		w.signal()
	}
	return true, nil
}

func responseOf(callback *approval.Callback) *approval.Response {
	return normalize(&approval.Response{
		Approved:             callback.Approved,
		Action:               callback.Action,
		Channel:              callback.Channel,
		Responder:            callback.Responder,
		Notes:                callback.Notes,
		RedirectInstructions: callback.RedirectInstructions,
	})
}

// normalize makes the action authoritative over the approved flag and fills
// defaults: no action means continue when approved and abort otherwise.
func normalize(resp *approval.Response) *approval.Response {
	ret := *resp
	if ret.Action == "" {
		if ret.Approved {
			ret.Action = checkpoint.ActionContinue
		} else {
			ret.Action = checkpoint.ActionAbort
		}
	}
	if action, err := checkpoint.ParseAction(string(ret.Action)); err == nil {
		ret.Action = action
	}
	ret.Approved = ret.Action.Approves()
	if ret.Channel == "" {
		ret.Channel = approval.ChannelWebhook
	}
	if ret.Channel == approval.ChannelCLI && ret.Responder == "" {
		ret.Responder = approval.ResponderUser
	}
	if ret.Responder == "" || ret.Responder == approval.ResponderTimeout {
		ret.Responder = string(ret.Channel)
	}
	ret.Timestamp = clock.Now()
	return &ret
}

// validate rejects normalized responses the runtime could not act on.
func validate(resp *approval.Response) error {
	if _, err := checkpoint.ParseAction(string(resp.Action)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if resp.Action == checkpoint.ActionRedirect && strings.TrimSpace(resp.RedirectInstructions) == "" {
		return fmt.Errorf("%w: redirect requires instructions", ErrInvalidResponse)
	}
	return nil
}

// CancelRequest marks a pending request cancelled and releases its waiters.
// It returns false when the request is already resolved.
func (g *Gateway) CancelRequest(ctx context.Context, id string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	req, err := g.requests.Load(ctx, id)
	if err != nil {
		if dao.IsAbsent(err) || errors.Is(err, dao.ErrInvalidID) {
			return false, fmt.Errorf("%w: %s", ErrUnknownRequest, id)
		}
		return false, err
	}
	if req.Status != approval.StatusPending {
		return false, nil
	}
	req.Status = approval.StatusCancelled
	if err := g.requests.Save(ctx, req); err != nil {
		return false, fmt.Errorf("failed to persist cancellation: %w", err)
	}
	_ = g.responseDocument(id).Delete(ctx)
	g.logger.Info("approval_cancelled", "request_id", id)
	g.publish(approval.TopicRequestCancelled, req, nil)
	for w := range g.waiters[id] {
		w.cancel()
	}
	return true, nil
}

func (g *Gateway) register(id string) *waiter {
	w := &waiter{wake: make(chan struct{}, 1), cancelled: make(chan struct{})}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.waiters[id] == nil {
		g.waiters[id] = map[*waiter]struct{}{}
	}
	g.waiters[id][w] = struct{}{}
	return w
}

func (g *Gateway) unregister(id string, w *waiter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.waiters[id], w)
	if len(g.waiters[id]) == 0 {
		delete(g.waiters, id)
	}
}

func (g *Gateway) responseDocument(id string) *store.Document[approval.Response] {
	return store.NewDocument[approval.Response](g.repo, ResponseKey(id))
}

// ResponseKey returns the pickup artifact key of a request.
func ResponseKey(id string) string {
	return Prefix + "/" + id + ResponseSuffix + ".json"
}

func (g *Gateway) publish(topic string, req *approval.Request, resp *approval.Response) {
	snapshot := *req
	snapshot.Token = ""
	g.events.Publish(approval.Event{Topic: topic, RequestID: req.ID, Request: &snapshot, Response: resp, At: clock.Now()})
}
