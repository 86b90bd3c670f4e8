package overseer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"gopkg.in/yaml.v3"

	"github.com/viant/overseer/internal/envexpr"
	"github.com/viant/overseer/model/approval"
	"github.com/viant/overseer/model/checkpoint"
	"github.com/viant/overseer/policy"
	gateway "github.com/viant/overseer/service/approval"
	"github.com/viant/overseer/service/secret"
)

// Store drivers.
const (
	StoreFS     = "fs"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Outbox drivers.
const (
	OutboxInline = "inline"
	OutboxMemory = "memory"
	OutboxFS     = "fs"
)

// DefaultStateDir is the state directory relative to the project root.
const DefaultStateDir = ".overseer"

// Config is the serialisable overseer configuration. The zero value of any
// nested section inherits its package defaults.
type Config struct {
	StateDir      string             `json:"stateDir" yaml:"stateDir"`
	Store         StoreConfig        `json:"store" yaml:"store"`
	Mode          checkpoint.Mode    `json:"mode,omitempty" yaml:"mode,omitempty"`
	Checkpoints   policy.Config      `json:"checkpoints" yaml:"checkpoints"`
	Approval      ApprovalConfig     `json:"approval" yaml:"approval"`
	Notifications NotificationConfig `json:"notifications" yaml:"notifications"`
	Log           LogConfig          `json:"log" yaml:"log"`
	Tracing       TracingConfig      `json:"tracing" yaml:"tracing"`
}

// StoreConfig selects the state backend.
type StoreConfig struct {
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`
	// DSN is the sqlite data source; empty means <stateDir>/overseer.db.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// ApprovalConfig controls request deadlines and the callback surface.
type ApprovalConfig struct {
	TimeoutMinutes  int               `json:"timeoutMinutes" yaml:"timeoutMinutes"`
	DefaultAction   checkpoint.Action `json:"defaultAction,omitempty" yaml:"defaultAction,omitempty"`
	PollIntervalMs  int               `json:"pollIntervalMs,omitempty" yaml:"pollIntervalMs,omitempty"`
	CallbackBaseURL string            `json:"callbackBaseURL,omitempty" yaml:"callbackBaseURL,omitempty"`
	// Listen is the callback server address used by `overseer serve`.
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty"`
}

// NotificationConfig enables out-of-band channels.
type NotificationConfig struct {
	Slack   SlackConfig   `json:"slack" yaml:"slack"`
	Email   EmailConfig   `json:"email" yaml:"email"`
	Webhook WebhookConfig `json:"webhook" yaml:"webhook"`
	Linear  LinearConfig  `json:"linear" yaml:"linear"`
	Command CommandConfig `json:"command" yaml:"command"`
	Outbox  OutboxConfig  `json:"outbox" yaml:"outbox"`
}

type SlackConfig struct {
	Enabled       bool        `json:"enabled" yaml:"enabled"`
	WebhookURL    string      `json:"webhookURL,omitempty" yaml:"webhookURL,omitempty"`
	WebhookSecret *secret.Ref `json:"webhookSecret,omitempty" yaml:"webhookSecret,omitempty"`
}

type EmailConfig struct {
	Enabled        bool        `json:"enabled" yaml:"enabled"`
	To             []string    `json:"to,omitempty" yaml:"to,omitempty"`
	From           string      `json:"from,omitempty" yaml:"from,omitempty"`
	SMTPAddr       string      `json:"smtpAddr,omitempty" yaml:"smtpAddr,omitempty"`
	Username       string      `json:"username,omitempty" yaml:"username,omitempty"`
	Password       string      `json:"password,omitempty" yaml:"password,omitempty"`
	PasswordSecret *secret.Ref `json:"passwordSecret,omitempty" yaml:"passwordSecret,omitempty"`
}

type WebhookConfig struct {
	Enabled bool              `json:"enabled" yaml:"enabled"`
	URLs    []string          `json:"urls,omitempty" yaml:"urls,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	// SigningSecret keys the payload signature header.
	SigningSecret *secret.Ref `json:"signingSecret,omitempty" yaml:"signingSecret,omitempty"`
}

// LinearConfig posts requests as comments on the current task; it needs a
// TaskTracker supplied through WithTaskTracker.
type LinearConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

type CommandConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Command   string `json:"command,omitempty" yaml:"command,omitempty"`
	TimeoutMs int    `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
}

type OutboxConfig struct {
	Driver       string `json:"driver,omitempty" yaml:"driver,omitempty"`
	MaxRetries   int    `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
	RetryDelayMs int    `json:"retryDelayMs,omitempty" yaml:"retryDelayMs,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
	OutputFile  string `json:"outputFile,omitempty" yaml:"outputFile,omitempty"`
}

// DefaultConfig returns the defaults applied to a fresh project.
func DefaultConfig() *Config {
	return &Config{
		StateDir:    DefaultStateDir,
		Store:       StoreConfig{Driver: StoreFS},
		Mode:        checkpoint.ModeInteractive,
		Checkpoints: *policy.DefaultConfig(),
		Approval: ApprovalConfig{
			TimeoutMinutes: 30,
			DefaultAction:  checkpoint.ActionPause,
			PollIntervalMs: int(gateway.DefaultPollInterval / time.Millisecond),
		},
		Notifications: NotificationConfig{
			Command: CommandConfig{TimeoutMs: 30000},
			Outbox:  OutboxConfig{Driver: OutboxMemory, MaxRetries: 3, RetryDelayMs: 1000},
		},
		Log:     LogConfig{Level: "info", Format: "text"},
		Tracing: TracingConfig{ServiceName: "overseer"},
	}
}

// LoadConfig reads a yaml or json document from URL on top of DefaultConfig.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	URL = url.Normalize(URL, file.Scheme)
	data, err := afs.New().DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", URL, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes yaml (or json) on top of DefaultConfig. ${env.NAME}
// references are expanded first.
func ParseConfig(data []byte) (*Config, error) {
	ret := DefaultConfig()
	expanded := envexpr.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), ret); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return ret, nil
}

// PolicyConfig returns the checkpoint policy settings with the top level
// mode applied.
func (c *Config) PolicyConfig() *policy.Config {
	ret := c.Checkpoints
	if c.Mode != "" {
		ret.Mode = c.Mode
	}
	flags := make(map[string]bool, len(c.Checkpoints.Flags))
	for k, v := range c.Checkpoints.Flags {
		flags[k] = v
	}
	ret.Flags = flags
	return &ret
}

// GatewayConfig returns the approval gateway settings.
func (c *Config) GatewayConfig() *gateway.Config {
	ret := gateway.DefaultConfig()
	ret.TimeoutMinutes = c.Approval.TimeoutMinutes
	if c.Approval.DefaultAction != "" {
		ret.DefaultAction = c.Approval.DefaultAction
	}
	if c.Approval.PollIntervalMs > 0 {
		ret.PollInterval = time.Duration(c.Approval.PollIntervalMs) * time.Millisecond
	}
	ret.CallbackBaseURL = strings.TrimRight(c.Approval.CallbackBaseURL, "/")
	ret.Channels = c.EnabledChannels()
	return ret
}

// EnabledChannels lists the configured out-of-band channels.
func (c *Config) EnabledChannels() []approval.Channel {
	var ret []approval.Channel
	n := c.Notifications
	if n.Slack.Enabled {
		ret = append(ret, approval.ChannelSlack)
	}
	if n.Email.Enabled {
		ret = append(ret, approval.ChannelEmail)
	}
	if n.Linear.Enabled {
		ret = append(ret, approval.ChannelLinear)
	}
	if n.Webhook.Enabled {
		ret = append(ret, approval.ChannelWebhook)
	}
	if n.Command.Enabled {
		ret = append(ret, approval.ChannelCommand)
	}
	return ret
}

// Validate returns aggregated errors describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	switch c.Store.Driver {
	case "", StoreFS, StoreSQLite, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("store.driver must be fs, sqlite or memory, got %q", c.Store.Driver))
	}
	if c.Store.Driver != StoreMemory && strings.TrimSpace(c.StateDir) == "" && c.Store.DSN == "" {
		errs = append(errs, fmt.Errorf("stateDir was empty"))
	}
	if _, err := checkpoint.ParseMode(string(c.Mode)); err != nil {
		errs = append(errs, err)
	}
	if err := c.PolicyConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.GatewayConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	n := c.Notifications
	if n.Slack.Enabled && n.Slack.WebhookURL == "" && n.Slack.WebhookSecret.IsZero() {
		errs = append(errs, fmt.Errorf("notifications.slack.webhookURL was empty"))
	}
	if n.Email.Enabled && (n.Email.SMTPAddr == "" || n.Email.From == "" || len(n.Email.To) == 0) {
		errs = append(errs, fmt.Errorf("notifications.email requires smtpAddr, from and to"))
	}
	if n.Webhook.Enabled && len(n.Webhook.URLs) == 0 {
		errs = append(errs, fmt.Errorf("notifications.webhook.urls was empty"))
	}
	if n.Command.Enabled && strings.TrimSpace(n.Command.Command) == "" {
		errs = append(errs, fmt.Errorf("notifications.command.command was empty"))
	}
	switch n.Outbox.Driver {
	case "", OutboxInline, OutboxMemory, OutboxFS:
	default:
		errs = append(errs, fmt.Errorf("notifications.outbox.driver must be inline, memory or fs, got %q", n.Outbox.Driver))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
