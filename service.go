package overseer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/viant/afs"

	"github.com/viant/overseer/model/approval"
	"github.com/viant/overseer/model/checkpoint"
	"github.com/viant/overseer/policy"
	gateway "github.com/viant/overseer/service/approval"
	cpmanager "github.com/viant/overseer/service/checkpoint"
	"github.com/viant/overseer/service/dao/blob"
	"github.com/viant/overseer/service/dao/blob/fs"
	"github.com/viant/overseer/service/dao/blob/sqlite"
	"github.com/viant/overseer/service/messaging"
	fsqueue "github.com/viant/overseer/service/messaging/fs"
	"github.com/viant/overseer/service/messaging/memory"
	"github.com/viant/overseer/service/notify"
	"github.com/viant/overseer/service/notify/command"
	"github.com/viant/overseer/service/notify/email"
	"github.com/viant/overseer/service/notify/slack"
	"github.com/viant/overseer/service/notify/tracker"
	"github.com/viant/overseer/service/notify/webhook"
	"github.com/viant/overseer/service/secret"
	"github.com/viant/overseer/service/turn"
)

// Outcome is the result of gating execution on a checkpoint.
type Outcome struct {
	// Fired is false when the policy let execution continue unchecked.
	Fired      bool
	Checkpoint *checkpoint.Checkpoint
	Request    *approval.Request
	Response   *approval.Response
}

// Action returns what the runtime must do next.
func (o *Outcome) Action() checkpoint.Action {
	if o == nil || !o.Fired || o.Response == nil {
		return checkpoint.ActionContinue
	}
	return o.Response.Action
}

// Service wires the turn counter, the checkpoint manager and the approval
// gateway over one state store.
type Service struct {
	config      *Config
	logger      *slog.Logger
	repo        blob.Repository
	closers     []func() error
	counter     *turn.Counter
	manager     *cpmanager.Manager
	gateway     *gateway.Gateway
	dispatcher  *notify.Dispatcher
	outbox      *notify.Outbox
	outboxQueue messaging.Queue[notify.Delivery]
	events      *messaging.Hub[approval.Event]
	prompter    gateway.Prompter
	taskTracker tracker.TaskTracker
	sendMail    email.SendFunc
	httpClient  *http.Client
	notifiers   []notify.Notifier
	secrets     *secret.Resolver

	stop context.CancelFunc
	wg   sync.WaitGroup
}

// New creates a service; a nil config uses DefaultConfig.
func New(ctx context.Context, config *Config, options ...Option) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	s := &Service{config: config, logger: slog.Default()}
	for _, option := range options {
		option(s)
	}
	if err := s.init(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) init(ctx context.Context) error {
	if s.repo == nil {
		repo, err := s.openRepository()
		if err != nil {
			return err
		}
		s.repo = repo
	}
	if s.events == nil {
		s.events = messaging.NewHub[approval.Event]()
	}
	if s.secrets == nil {
		s.secrets = secret.New()
	}
	s.counter = turn.New(ctx, s.repo, turn.WithLogger(s.logger))
	s.manager = cpmanager.New(ctx, s.repo, policy.New(s.config.PolicyConfig()),
		cpmanager.WithTurnTracker(s.counter),
		cpmanager.WithLogger(s.logger))

	notifiers, err := s.buildNotifiers(ctx)
	if err != nil {
		return err
	}
	s.dispatcher = notify.NewDispatcher(s.logger, notifiers...)
	sender, err := s.buildSender(ctx)
	if err != nil {
		return err
	}
	s.gateway = gateway.New(s.repo, s.config.GatewayConfig(),
		gateway.WithSender(sender),
		gateway.WithPrompter(s.prompter),
		gateway.WithEvents(s.events),
		gateway.WithLogger(s.logger))
	return nil
}

func (s *Service) openRepository() (blob.Repository, error) {
	switch s.config.Store.Driver {
	case StoreMemory:
		return blob.NewMemory(), nil
	case StoreSQLite:
		dsn := s.config.Store.DSN
		if dsn == "" {
			if err := afs.New().Create(context.Background(), s.config.StateDir, 0o755, true); err != nil {
				return nil, fmt.Errorf("failed to create state dir: %w", err)
			}
			dsn = filepath.Join(s.config.StateDir, "overseer.db")
		}
		repo, err := sqlite.New(dsn)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, repo.Close)
		return repo, nil
	default:
		return fs.New(s.config.StateDir)
	}
}

func (s *Service) buildNotifiers(ctx context.Context) ([]notify.Notifier, error) {
	n := s.config.Notifications
	var ret []notify.Notifier
	if n.Slack.Enabled {
		URL, err := s.secrets.Resolve(ctx, n.Slack.WebhookURL, n.Slack.WebhookSecret)
		if err != nil {
			return nil, err
		}
		ret = append(ret, slack.New(URL, s.httpClient))
	}
	if n.Email.Enabled {
		password, err := s.secrets.Resolve(ctx, n.Email.Password, n.Email.PasswordSecret)
		if err != nil {
			return nil, err
		}
		ret = append(ret, email.New(email.Config{
			Addr:     n.Email.SMTPAddr,
			From:     n.Email.From,
			To:       n.Email.To,
			Username: n.Email.Username,
			Password: password,
		}, s.sendMail))
	}
	if n.Webhook.Enabled {
		options := []webhook.Option{webhook.WithHeaders(n.Webhook.Headers), webhook.WithClient(s.httpClient)}
		if !n.Webhook.SigningSecret.IsZero() {
			signingSecret, err := s.secrets.Resolve(ctx, "", n.Webhook.SigningSecret)
			if err != nil {
				return nil, err
			}
			options = append(options, webhook.WithSecret(signingSecret))
		}
		ret = append(ret, webhook.New(n.Webhook.URLs, options...))
	}
	if n.Linear.Enabled {
		if s.taskTracker == nil {
			s.logger.Warn("notification_channel_unavailable", "channel", string(approval.ChannelLinear), "reason", "no task tracker")
		} else {
			ret = append(ret, tracker.New(s.taskTracker))
		}
	}
	if n.Command.Enabled {
		ret = append(ret, command.New(n.Command.Command, time.Duration(n.Command.TimeoutMs)*time.Millisecond))
	}
	return append(ret, s.notifiers...), nil
}

func (s *Service) buildSender(ctx context.Context) (notify.Sender, error) {
	cfg := s.config.Notifications.Outbox
	if s.outboxQueue == nil {
		retryDelay := time.Duration(cfg.RetryDelayMs) * time.Millisecond
		switch cfg.Driver {
		case OutboxInline:
			return s.dispatcher, nil
		case OutboxFS:
			queueConfig := fsqueue.DefaultConfig(filepath.Join(s.config.StateDir, "outbox"))
			if cfg.MaxRetries > 0 {
				queueConfig.MaxRetries = cfg.MaxRetries
			}
			if retryDelay > 0 {
				queueConfig.RetryDelay = retryDelay
			}
			queue, err := fsqueue.NewQueue[notify.Delivery](ctx, afs.New(), queueConfig)
			if err != nil {
				return nil, fmt.Errorf("failed to open outbox: %w", err)
			}
			s.outboxQueue = queue
		default:
			queueConfig := memory.DefaultConfig()
			if cfg.MaxRetries > 0 {
				queueConfig.MaxRetries = cfg.MaxRetries
			}
			if retryDelay > 0 {
				queueConfig.RetryDelay = retryDelay
			}
			queue := memory.NewQueue[notify.Delivery](queueConfig)
			s.closers = append(s.closers, func() error { queue.Close(); return nil })
			s.outboxQueue = queue
		}
	}
	s.outbox = notify.NewOutbox(s.outboxQueue, s.dispatcher, s.logger)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stop = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.outbox.Run(runCtx); err != nil {
			s.logger.Error("outbox_stopped", "error", err.Error())
		}
	}()
	return s.outbox, nil
}

// Turn records one agent turn and its optional context usage.
func (s *Service) Turn(ctx context.Context, usage *float64) (uint64, error) {
	return s.counter.Increment(ctx, usage)
}

// ShouldCheckpoint reports whether kind must fire for cctx.
func (s *Service) ShouldCheckpoint(kind checkpoint.Kind, cctx *checkpoint.Context) bool {
	return s.manager.ShouldCheckpoint(kind, cctx)
}

// Gate fires kind when the policy requires it, requests approval and blocks
// until the request is resolved. The checkpoint is resolved with the
// response before Gate returns.
func (s *Service) Gate(ctx context.Context, kind checkpoint.Kind, cctx *checkpoint.Context) (*Outcome, error) {
	if !s.manager.ShouldCheckpoint(kind, cctx) {
		return &Outcome{}, nil
	}
	return s.Checkpoint(ctx, kind, cctx)
}

// Checkpoint fires kind unconditionally.
func (s *Service) Checkpoint(ctx context.Context, kind checkpoint.Kind, cctx *checkpoint.Context) (*Outcome, error) {
	cp, err := s.manager.CreateCheckpoint(ctx, kind, cctx)
	if err != nil {
		return nil, err
	}
	return s.await(ctx, cp, nil)
}

// Resume re-offers an outstanding checkpoint left paused, or pending by a
// crashed process. It returns nil when nothing is outstanding.
func (s *Service) Resume(ctx context.Context) (*Outcome, error) {
	cp, err := s.manager.Resume(ctx)
	if err != nil || cp == nil {
		return nil, err
	}
	req, err := s.openRequest(ctx, cp.ID)
	if err != nil {
		return nil, err
	}
	return s.await(ctx, cp, req)
}

// openRequest finds a request still pending for checkpointID.
func (s *Service) openRequest(ctx context.Context, checkpointID string) (*approval.Request, error) {
	pending, err := s.gateway.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	for _, req := range pending {
		if req.CheckpointID == checkpointID {
			return req, nil
		}
	}
	return nil, nil
}

func (s *Service) await(ctx context.Context, cp *checkpoint.Checkpoint, req *approval.Request) (*Outcome, error) {
	var err error
	if req == nil {
		if req, err = s.gateway.RequestApproval(ctx, cp.ID, cp.Kind, cp.Context); err != nil {
			return nil, err
		}
	}
	resp, err := s.gateway.WaitForApproval(ctx, req.ID, nil)
	if err != nil {
		if !errors.Is(err, gateway.ErrCancelled) {
			return nil, err
		}
		resp = &approval.Response{
			Action:    checkpoint.ActionPause,
			Channel:   approval.ChannelAuto,
			Responder: "cancelled",
			Timestamp: time.Now(),
			Notes:     "approval request cancelled",
		}
	}
	if err = s.manager.Resolve(ctx, cp, resp); err != nil {
		return nil, err
	}
	return &Outcome{Fired: true, Checkpoint: s.resolved(cp.ID), Request: req, Response: resp}, nil
}

// resolved returns the stored copy of checkpoint id.
func (s *Service) resolved(id string) *checkpoint.Checkpoint {
	if pending := s.manager.GetPendingCheckpoint(); pending != nil && pending.ID == id {
		return pending
	}
	history := s.manager.History()
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].ID == id {
			return history[i]
		}
	}
	return nil
}

// Config returns the configuration.
func (s *Service) Config() *Config { return s.config }

// Counter returns the turn counter.
func (s *Service) Counter() *turn.Counter { return s.counter }

// Manager returns the checkpoint manager.
func (s *Service) Manager() *cpmanager.Manager { return s.manager }

// Gateway returns the approval gateway.
func (s *Service) Gateway() *gateway.Gateway { return s.gateway }

// Dispatcher returns the notifier registry.
func (s *Service) Dispatcher() *notify.Dispatcher { return s.dispatcher }

// Events returns the approval event hub.
func (s *Service) Events() *messaging.Hub[approval.Event] { return s.events }

// Repository returns the state store.
func (s *Service) Repository() blob.Repository { return s.repo }

// Close stops the outbox worker and releases the store.
func (s *Service) Close() error {
	if s.stop != nil {
		s.stop()
	}
	s.wg.Wait()
	var errs []error
	for _, closer := range s.closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
