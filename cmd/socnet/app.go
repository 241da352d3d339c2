// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/socnet/pkg/logging"
	"github.com/AleutianAI/socnet/pkg/ux"
	"github.com/AleutianAI/socnet/services/socnet"
	"github.com/AleutianAI/socnet/services/socnet/config"
	"github.com/AleutianAI/socnet/services/socnet/graphstore"
	"github.com/AleutianAI/socnet/services/socnet/telemetry"
)

// Exit codes.
const (
	ExitSuccess = 0
	ExitError   = 1
)

// storeOpener opens the configured graph store.
type storeOpener func(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (graphstore.Store, error)

// app holds the flags and the resources one CLI invocation opens.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// Root flags.
	configPath string
	backend    string
	logLevel   string
	jsonOutput bool

	openStore storeOpener
	netOpts   []socnet.Option

	cfg      config.Config
	logger   *logging.Logger
	shutdown func(context.Context) error
	store    graphstore.Store
	net      *socnet.Network
	repo     *socnet.PersonRepository
	out      *ux.Printer
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		openStore: func(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (graphstore.Store, error) {
			return cfg.Open(ctx, logger)
		},
	}
}

// run executes one command line and always releases what setup opened.
func run(args []string, a *app) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(ctx)
	if closeErr := a.close(); closeErr != nil {
		err = multierror.Append(err, closeErr)
	}
	if err != nil {
		ux.NewPrinter(a.stderr).Error(err.Error())
		return ExitError
	}
	return ExitSuccess
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "socnet",
		Short: "Manage a social network of persons, friendships and status updates",
		Long: `socnet stores persons, their friendships and their status updates in a
graph store (memory, badger or neo4j) and answers questions about them.

Configuration is read from --config (YAML), then SOCNET_* environment
variables, then flags.

Examples:
  socnet person add Alice
  socnet friend add Alice Bob
  socnet status post Bob "hello world"
  socnet feed Alice
  socnet recommend Alice -k 3`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "",
		"Path to a YAML config file")
	root.PersistentFlags().StringVar(&a.backend, "backend", "",
		"Store backend: memory, badger, neo4j (overrides config)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides config)")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false,
		"Output as JSON for scripting")

	root.AddCommand(a.personCmd())
	root.AddCommand(a.friendCmd())
	root.AddCommand(a.fofCmd())
	root.AddCommand(a.pathCmd())
	root.AddCommand(a.recommendCmd())
	root.AddCommand(a.statusCmd())
	root.AddCommand(a.feedCmd())
	return root
}

// setup loads configuration, then opens the logger, telemetry and the store.
func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.backend != "" {
		cfg.Store.Backend = a.backend
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logCfg, err := cfg.Logging.LoggerConfig("socnet")
	if err != nil {
		return err
	}
	logCfg.Output = a.stderr
	// Log lines go to machines when nobody is watching stderr.
	logCfg.JSON = logCfg.JSON || !ux.IsTerminal(a.stderr)
	a.logger = logging.New(logCfg)

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry.ExporterConfig("socnet", a.stderr))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.shutdown = shutdown

	store, err := a.openStore(ctx, cfg.Store, a.logger.Slog())
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	a.store = store
	opts := append([]socnet.Option{socnet.WithLogger(a.logger.Slog())}, a.netOpts...)
	a.net = socnet.NewNetwork(store, opts...)
	a.repo = socnet.NewPersonRepository(a.net)
	a.out = ux.NewPrinter(a.stdout)

	a.logger.Debug("store opened", "backend", cfg.Store.Backend)
	return nil
}

// close releases the store, flushes telemetry, then closes the logger.
func (a *app) close() error {
	var result *multierror.Error
	if a.store != nil {
		if err := a.store.Close(); err != nil && !errors.Is(err, graphstore.ErrStoreClosed) {
			result = multierror.Append(result, fmt.Errorf("close store: %w", err))
		}
		a.store = nil
	}
	if a.shutdown != nil {
		if err := a.shutdown(context.Background()); err != nil {
			result = multierror.Append(result, fmt.Errorf("shutdown telemetry: %w", err))
		}
		a.shutdown = nil
	}
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close logger: %w", err))
		}
		a.logger = nil
	}
	return result.ErrorOrNil()
}

// emitJSON writes v as indented JSON to stdout.
func (a *app) emitJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// lookup resolves person names, in order.
func (a *app) lookup(ctx context.Context, names ...string) ([]socnet.Person, error) {
	persons := make([]socnet.Person, len(names))
	for i, name := range names {
		p, err := a.repo.PersonByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", name, err)
		}
		persons[i] = p
	}
	return persons, nil
}

// personView is the JSON form of a person.
type personView struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

func (a *app) views(ctx context.Context, persons []socnet.Person) ([]personView, error) {
	out := make([]personView, len(persons))
	for i, p := range persons {
		name, err := p.Name(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = personView{ID: uint64(p.ID()), Name: name}
	}
	return out, nil
}

// printPersons prints persons as JSON or as a titled list.
func (a *app) printPersons(ctx context.Context, title string, persons []socnet.Person) error {
	views, err := a.views(ctx, persons)
	if err != nil {
		return err
	}
	if a.jsonOutput {
		return a.emitJSON(views)
	}
	a.out.Title(title)
	for _, v := range views {
		a.out.Item(v.Name, "")
	}
	a.out.Muted(fmt.Sprintf("%d total", len(views)))
	return nil
}
