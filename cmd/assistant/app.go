package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/DukeRupert/ohscentric/internal"
	"github.com/DukeRupert/ohscentric/internal/client"
	"github.com/DukeRupert/ohscentric/internal/entitlement"
	"github.com/spf13/cobra"
)

// app bundles what every subcommand needs.
type app struct {
	cfg    *client.Config
	logger *slog.Logger
	creds  *client.CredentialStore
	api     *client.Client
	source  entitlement.Source
	answers completer
}

func newApp() (*app, error) {
	cfg, err := client.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("config initialization failed: %w", err)
	}

	// Logs go to stderr so they never interleave with answers on stdout.
	logger := internal.NewLogger(os.Stderr, "production", cfg.LogLevel)

	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	creds := client.NewCredentialStore(cfg.StateDir)

	srcCfg := cfg.SourceConfig()
	srcCfg.Logger = logger
	source, err := entitlement.NewSource(srcCfg)
	if err != nil {
		return nil, fmt.Errorf("entitlement source initialization failed: %w", err)
	}
	logger.Debug("entitlement source ready", "mode", srcCfg.Mode)

	api := client.New(cfg.APIURL, creds, logger)
	answers, err := newCompleter(cfg, api, logger)
	if err != nil {
		if c, ok := source.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, fmt.Errorf("answer provider initialization failed: %w", err)
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		creds:   creds,
		api:     api,
		source:  source,
		answers: answers,
	}, nil
}

func (a *app) Close() {
	if c, ok := a.source.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.logger.Warn("failed to close entitlement source", "error", err)
		}
	}
}

// evaluator returns a standalone evaluator for one-shot commands.
func (a *app) evaluator() *entitlement.Evaluator {
	return entitlement.NewEvaluator(a.source, a.creds,
		entitlement.WithTimeout(a.cfg.RefreshTimeout),
		entitlement.WithLogger(a.logger))
}

// withApp builds the app for a command body and closes it afterwards.
func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}
