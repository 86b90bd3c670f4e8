package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/viant/overseer"
	"github.com/viant/overseer/internal/envexpr"
)

const (
	envPrefix         = "OVERSEER"
	defaultConfigName = "config.yaml"
	version           = "0.1.0"
)

// envKeys are the settings overridable through OVERSEER_* variables.
var envKeys = map[string]string{
	"stateDir":                 "STATE_DIR",
	"mode":                     "MODE",
	"store.driver":             "STORE_DRIVER",
	"store.dsn":                "STORE_DSN",
	"approval.timeoutMinutes":  "APPROVAL_TIMEOUT_MINUTES",
	"approval.defaultAction":   "APPROVAL_DEFAULT_ACTION",
	"approval.callbackBaseURL": "APPROVAL_CALLBACK_BASE_URL",
	"approval.listen":          "APPROVAL_LISTEN",
	"log.level":                "LOG_LEVEL",
	"log.format":               "LOG_FORMAT",
}

var rootCmd = &cobra.Command{
	Use:           "overseer",
	Short:         "Human oversight for an autonomous coding agent",
	Long:          "overseer shows the turn counter and checkpoints of an agent project and answers its approval requests.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default <state-dir>/config.yaml)")
	flags.String("state-dir", overseer.DefaultStateDir, "state directory")
	flags.String("log-level", "", "log level: debug, info, warn or error")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// loadConfig merges defaults, the config file, OVERSEER_* variables and
// flags, in increasing precedence.
func loadConfig(cmd *cobra.Command) (*overseer.Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	for key, env := range envKeys {
		if err := v.BindEnv(key, envPrefix+"_"+env); err != nil {
			return nil, err
		}
	}
	flags := cmd.Flags()
	if flag := flags.Lookup("state-dir"); flag != nil && flag.Changed {
		if err := v.BindPFlag("stateDir", flag); err != nil {
			return nil, err
		}
	}
	if flag := flags.Lookup("log-level"); flag != nil && flag.Changed {
		if err := v.BindPFlag("log.level", flag); err != nil {
			return nil, err
		}
	}

	configFile, _ := flags.GetString("config")
	if configFile == "" {
		stateDir := v.GetString("stateDir")
		if stateDir == "" {
			stateDir, _ = flags.GetString("state-dir")
		}
		candidate := filepath.Join(stateDir, defaultConfigName)
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
		}
	}
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
		configType := strings.TrimPrefix(filepath.Ext(configFile), ".")
		if configType == "" || configType == "yml" {
			configType = "yaml"
		}
		v.SetConfigType(configType)
		if err = v.ReadConfig(strings.NewReader(envexpr.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to decode config %s: %w", configFile, err)
		}
	}

	cfg := overseer.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg overseer.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	options := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, options))
	}
	return slog.New(slog.NewTextHandler(w, options))
}

// openService builds the service for a one-shot command; notifications are
// delivered inline so nothing is left queued when the command exits.
func openService(ctx context.Context, cmd *cobra.Command, options ...overseer.Option) (*overseer.Service, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Notifications.Outbox.Driver != overseer.OutboxFS {
		cfg.Notifications.Outbox.Driver = overseer.OutboxInline
	}
	logger := newLogger(cfg.Log, cmd.ErrOrStderr())
	options = append([]overseer.Option{overseer.WithLogger(logger)}, options...)
	if cfg.Tracing.Enabled {
		options = append(options, overseer.WithTracing(cfg.Tracing.ServiceName, version, cfg.Tracing.OutputFile))
	}
	return overseer.New(ctx, cfg, options...)
}
