package policy

import (
	"fmt"

	"github.com/viant/overseer/model/checkpoint"
)

// DefaultContextPauseThreshold is the usage fraction that fires context_high.
const DefaultContextPauseThreshold = 0.85

// Config represents the declarative, serialisable checkpoint settings.
type Config struct {
	Mode                  checkpoint.Mode `json:"mode,omitempty" yaml:"mode,omitempty"`
	TurnInterval          int             `json:"turnInterval" yaml:"turnInterval"`
	ContextPauseThreshold float64         `json:"contextPauseThreshold,omitempty" yaml:"contextPauseThreshold,omitempty"`
	// Flags enables kinds by name, e.g. before_new_issue: true.
	Flags map[string]bool `json:"flags,omitempty" yaml:"flags,omitempty"`
}

// DefaultConfig enables the failure and high-risk kinds only.
func DefaultConfig() *Config {
	return &Config{
		Mode:                  checkpoint.ModeInteractive,
		TurnInterval:          25,
		ContextPauseThreshold: DefaultContextPauseThreshold,
		Flags: map[string]bool{
			string(checkpoint.KindBeforeNewTask):     false,
			string(checkpoint.KindAfterTaskComplete): false,
			string(checkpoint.KindRegressionFailure): true,
			string(checkpoint.KindBlocker):           true,
			string(checkpoint.KindUncertainty):       false,
			string(checkpoint.KindContextHigh):       true,
			string(checkpoint.KindFileDelete):        true,
			string(checkpoint.KindGitPush):           true,
			string(checkpoint.KindDeploy):            true,
			string(checkpoint.KindSchemaChange):      true,
		},
	}
}

// Validate returns an error describing the first invalid setting.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if _, err := checkpoint.ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.ContextPauseThreshold < 0 || c.ContextPauseThreshold > 1 {
		return fmt.Errorf("contextPauseThreshold must be within [0,1], got %v", c.ContextPauseThreshold)
	}
	for name := range c.Flags {
		if _, err := checkpoint.ParseKind(name); err != nil {
			return fmt.Errorf("invalid checkpoint flag: %w", err)
		}
	}
	return nil
}

// Enabled looks up the flag of kind.
func (c *Config) Enabled(kind checkpoint.Kind) bool {
	if c == nil {
		return false
	}
	return c.Flags[string(kind)]
}

// Threshold returns the effective context pause threshold.
func (c *Config) Threshold() float64 {
	if c == nil || c.ContextPauseThreshold <= 0 {
		return DefaultContextPauseThreshold
	}
	return c.ContextPauseThreshold
}

// Input carries the runtime facts a rule may need.
type Input struct {
	// TurnDue is true when the turn interval elapsed since the last checkpoint.
	TurnDue      bool
	ContextUsage float64
}

// Rule decides whether kind fires for in under cfg.
type Rule func(cfg *Config, in Input) bool

func flag(kind checkpoint.Kind) Rule {
	return func(cfg *Config, _ Input) bool { return cfg.Enabled(kind) }
}

func turnInterval(cfg *Config, in Input) bool {
	return cfg.TurnInterval > 0 && in.TurnDue
}

func contextHigh(cfg *Config, in Input) bool {
	return cfg.Enabled(checkpoint.KindContextHigh) && in.ContextUsage >= cfg.Threshold()
}

var rules = map[checkpoint.Kind]Rule{
	checkpoint.KindTurnInterval:      turnInterval,
	checkpoint.KindBeforeNewTask:     flag(checkpoint.KindBeforeNewTask),
	checkpoint.KindAfterTaskComplete: flag(checkpoint.KindAfterTaskComplete),
	checkpoint.KindRegressionFailure: flag(checkpoint.KindRegressionFailure),
	checkpoint.KindBlocker:           flag(checkpoint.KindBlocker),
	checkpoint.KindUncertainty:       flag(checkpoint.KindUncertainty),
	checkpoint.KindContextHigh:       contextHigh,
	checkpoint.KindFileDelete:        flag(checkpoint.KindFileDelete),
	checkpoint.KindGitPush:           flag(checkpoint.KindGitPush),
	checkpoint.KindDeploy:            flag(checkpoint.KindDeploy),
	checkpoint.KindSchemaChange:      flag(checkpoint.KindSchemaChange),
}

// autonomousKinds may interrupt an autonomous run; everything else is
// suppressed regardless of configuration.
var autonomousKinds = map[checkpoint.Kind]bool{
	checkpoint.KindRegressionFailure: true,
	checkpoint.KindContextHigh:       true,
}

// supervisedKinds always fire in supervised mode.
var supervisedKinds = map[checkpoint.Kind]bool{
	checkpoint.KindRegressionFailure: true,
	checkpoint.KindBlocker:           true,
	checkpoint.KindFileDelete:        true,
	checkpoint.KindGitPush:           true,
	checkpoint.KindDeploy:            true,
	checkpoint.KindSchemaChange:      true,
}

// Policy evaluates the rule table under an execution mode.
type Policy struct {
	config *Config
	rules  map[checkpoint.Kind]Rule
}

// New creates a policy; a nil config uses DefaultConfig.
func New(cfg *Config) *Policy {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ret := &Policy{config: cfg, rules: make(map[checkpoint.Kind]Rule, len(rules))}
	for kind, rule := range rules {
		ret.rules[kind] = rule
	}
	return ret
}

// Config returns the policy configuration.
func (p *Policy) Config() *Config { return p.config }

// Mode returns the effective execution mode.
func (p *Policy) Mode() checkpoint.Mode {
	mode, err := checkpoint.ParseMode(string(p.config.Mode))
	if err != nil {
		return checkpoint.ModeInteractive
	}
	return mode
}

// ShouldFire reports whether kind must interrupt execution now.
func (p *Policy) ShouldFire(kind checkpoint.Kind, in Input) bool {
	rule, ok := p.rules[kind]
	if !ok {
		return false
	}
	switch p.Mode() {
	case checkpoint.ModeAutonomous:
		if !autonomousKinds[kind] {
			return false
		}
	case checkpoint.ModeSupervised:
		if supervisedKinds[kind] {
			return true
		}
	}
	return rule(p.config, in)
}
