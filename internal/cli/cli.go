// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/logging"
)

// Version information, set at build time.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// app holds what every command shares: flags, the loaded config and the
// logger.
type app struct {
	configPath  string
	endpoint    string
	logLevel    string
	metricsAddr string

	cfg     *config.Config
	log     *logging.StdLogger
	closers []io.Closer
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return 1
	}
	return 0
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "streamchat",
		Short: "Chat with a streaming assistant from the terminal",
		Long: `streamchat sends messages to a streaming assistant and shows the reply
as it arrives.

On a terminal it opens the chat UI. With piped input it reads one message
per line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if isTerminal(cmd.InOrStdin()) && isTerminal(cmd.OutOrStdout()) {
				return a.runTUI(cmd.Context())
			}
			return a.runREPL(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ~/.streamchat/config.toml)")
	flags.StringVar(&a.endpoint, "endpoint", "", "assistant base URL")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error, off")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(
		newREPLCommand(a),
		newAskCommand(a),
		newMockServerCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)
	return root
}

// initialize loads the config, applies flag overrides and sets up logging.
func (a *app) initialize(cmd *cobra.Command) error {
	if a.configPath == "" {
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		a.configPath = path
	}

	cfg, err := config.LoadOrDefault(a.configPath)
	if err != nil {
		return err
	}
	if a.endpoint != "" {
		cfg.Assistant.BaseURL = a.endpoint
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.metricsAddr != "" {
		cfg.Metrics.Addr = a.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	config.SetGlobal(cfg)
	a.cfg = cfg

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	out := cmd.ErrOrStderr()
	if cfg.Logging.File != "" {
		f, err := logging.OpenFile(cfg.Logging.File)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, f)
		out = f
	}
	a.log = logging.New(out, level)
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
	a.closers = nil
}

// watchConfig applies config file changes while a long-running command
// is active. Only the log level is reloaded live.
func (a *app) watchConfig(ctx context.Context) {
	path := a.configPath
	go func() {
		err := config.Watch(ctx, path, func(cfg *config.Config, err error) {
			if err != nil {
				a.log.Warn("CONFIG | reload failed err=%v", err)
				return
			}
			config.SetGlobal(cfg)
			if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil && a.logLevel == "" {
				a.log.SetLevel(level)
			}
			a.log.Info("CONFIG | reloaded %s", path)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Debug("CONFIG | watch unavailable err=%v", err)
		}
	}()
}
