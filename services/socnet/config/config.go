// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads socnet configuration from a YAML file and SOCNET_*
// environment variables, and opens the configured graph store.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/socnet/pkg/logging"
	"github.com/AleutianAI/socnet/services/socnet/graphstore"
	"github.com/AleutianAI/socnet/services/socnet/graphstore/badgerstore"
	"github.com/AleutianAI/socnet/services/socnet/graphstore/memstore"
	"github.com/AleutianAI/socnet/services/socnet/graphstore/neo4jstore"
	"github.com/AleutianAI/socnet/services/socnet/telemetry"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendNeo4j  = "neo4j"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

var validate = validator.New()

// Config is the top-level socnet configuration.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after creation.
type Config struct {
	Store     StoreConfig     `json:"store" yaml:"store"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Query     QueryConfig     `json:"query" yaml:"query"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
}

// StoreConfig selects and configures the graph store.
type StoreConfig struct {
	Backend     string       `json:"backend" yaml:"backend" validate:"oneof=memory badger neo4j"`
	UniqueEdges bool         `json:"unique_edges" yaml:"unique_edges"`
	Badger      BadgerConfig `json:"badger" yaml:"badger"`
	Neo4j       Neo4jConfig  `json:"neo4j" yaml:"neo4j"`
}

// BadgerConfig contains badgerstore settings.
type BadgerConfig struct {
	Path           string        `json:"path" yaml:"path"`
	InMemory       bool          `json:"in_memory" yaml:"in_memory"`
	SyncWrites     bool          `json:"sync_writes" yaml:"sync_writes"`
	GCInterval     time.Duration `json:"gc_interval" yaml:"gc_interval" validate:"gte=0"`
	GCDiscardRatio float64       `json:"gc_discard_ratio" yaml:"gc_discard_ratio" validate:"omitempty,gt=0,lt=1"`
}

// Neo4jConfig contains neo4jstore settings.
type Neo4jConfig struct {
	URI      string `json:"uri" yaml:"uri" validate:"omitempty,uri"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	JSON   bool   `json:"json" yaml:"json"`
	LogDir string `json:"log_dir" yaml:"log_dir"`
}

// QueryConfig holds defaults for CLI queries.
type QueryConfig struct {
	// MaxDepth bounds shortest-path searches.
	MaxDepth int `json:"max_depth" yaml:"max_depth" validate:"gte=1,lte=64"`

	// Recommendations is the default number of friend recommendations.
	Recommendations int `json:"recommendations" yaml:"recommendations" validate:"gte=1"`
}

// TelemetryConfig selects OpenTelemetry exporters.
type TelemetryConfig struct {
	Traces  string `json:"traces" yaml:"traces" validate:"oneof=none stdout"`
	Metrics string `json:"metrics" yaml:"metrics" validate:"oneof=none stdout prometheus"`

	// MetricsFile receives prometheus text-format metrics when the process
	// exits. Requires Metrics to be "prometheus".
	MetricsFile string `json:"metrics_file" yaml:"metrics_file"`
}

// Default returns the default configuration: a durable badger store under
// ~/.socnet/data, Info logging and a shortest-path depth of 6.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	badgerDefaults := badgerstore.DefaultConfig()
	return Config{
		Store: StoreConfig{
			Backend: BackendBadger,
			Badger: BadgerConfig{
				Path:           filepath.Join(home, ".socnet", "data"),
				SyncWrites:     badgerDefaults.SyncWrites,
				GCInterval:     badgerDefaults.GCInterval,
				GCDiscardRatio: badgerDefaults.GCDiscardRatio,
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Query: QueryConfig{
			MaxDepth:        6,
			Recommendations: 5,
		},
		Telemetry: TelemetryConfig{
			Traces:  telemetry.ExporterNone,
			Metrics: telemetry.ExporterNone,
		},
	}
}

// Load loads configuration with priority: env > file > defaults.
//
// Inputs:
//   - path: Path to a YAML config file. Empty or missing uses defaults.
//
// Outputs:
//   - Config: Merged configuration.
//   - error: Non-nil if the file is unreadable or the result is invalid.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := loadEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func loadEnv(cfg *Config) error {
	if v := os.Getenv("SOCNET_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("SOCNET_UNIQUE_EDGES"); v != "" {
		cfg.Store.UniqueEdges = v == "true" || v == "1"
	}

	if v := os.Getenv("SOCNET_BADGER_PATH"); v != "" {
		cfg.Store.Badger.Path = v
	}
	if v := os.Getenv("SOCNET_BADGER_IN_MEMORY"); v != "" {
		cfg.Store.Badger.InMemory = v == "true" || v == "1"
	}
	if v := os.Getenv("SOCNET_BADGER_GC_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: SOCNET_BADGER_GC_INTERVAL: %v", ErrInvalidConfig, err)
		}
		cfg.Store.Badger.GCInterval = d
	}

	if v := os.Getenv("SOCNET_NEO4J_URI"); v != "" {
		cfg.Store.Neo4j.URI = v
	}
	if v := os.Getenv("SOCNET_NEO4J_USERNAME"); v != "" {
		cfg.Store.Neo4j.Username = v
	}
	if v := os.Getenv("SOCNET_NEO4J_PASSWORD"); v != "" {
		cfg.Store.Neo4j.Password = v
	}
	if v := os.Getenv("SOCNET_NEO4J_DATABASE"); v != "" {
		cfg.Store.Neo4j.Database = v
	}

	if v := os.Getenv("SOCNET_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SOCNET_LOG_JSON"); v != "" {
		cfg.Logging.JSON = v == "true" || v == "1"
	}
	if v := os.Getenv("SOCNET_LOG_DIR"); v != "" {
		cfg.Logging.LogDir = v
	}

	if v := os.Getenv("SOCNET_MAX_DEPTH"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: SOCNET_MAX_DEPTH: %v", ErrInvalidConfig, err)
		}
		cfg.Query.MaxDepth = i
	}
	if v := os.Getenv("SOCNET_RECOMMENDATIONS"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: SOCNET_RECOMMENDATIONS: %v", ErrInvalidConfig, err)
		}
		cfg.Query.Recommendations = i
	}

	if v := os.Getenv("SOCNET_TRACES"); v != "" {
		cfg.Telemetry.Traces = v
	}
	if v := os.Getenv("SOCNET_METRICS"); v != "" {
		cfg.Telemetry.Metrics = v
	}
	if v := os.Getenv("SOCNET_METRICS_FILE"); v != "" {
		cfg.Telemetry.MetricsFile = v
	}
	return nil
}

// Validate checks struct tags, then the rules that span fields.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch c.Store.Backend {
	case BackendBadger:
		if c.Store.Badger.Path == "" && !c.Store.Badger.InMemory {
			return fmt.Errorf("%w: store.badger.path is required unless in_memory is set", ErrInvalidConfig)
		}
	case BackendNeo4j:
		if c.Store.Neo4j.URI == "" {
			return fmt.Errorf("%w: store.neo4j.uri is required for the neo4j backend", ErrInvalidConfig)
		}
	}
	if c.Telemetry.MetricsFile != "" && c.Telemetry.Metrics != telemetry.ExporterPrometheus {
		return fmt.Errorf("%w: telemetry.metrics_file requires telemetry.metrics: prometheus", ErrInvalidConfig)
	}
	return nil
}

// LoggerConfig converts the logging section for pkg/logging.
func (c LoggingConfig) LoggerConfig(service string) (logging.Config, error) {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		return logging.Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return logging.Config{
		Level:   level,
		JSON:    c.JSON,
		LogDir:  c.LogDir,
		Service: service,
	}, nil
}

// ExporterConfig converts the telemetry section for package telemetry.
// Stdout exporters write to out.
func (c TelemetryConfig) ExporterConfig(service string, out io.Writer) telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = service
	cfg.TraceExporter = c.Traces
	cfg.MetricExporter = c.Metrics
	cfg.MetricsFile = c.MetricsFile
	cfg.Output = out
	return cfg
}

// Open opens the configured store. The caller closes it.
func (c StoreConfig) Open(ctx context.Context, logger *slog.Logger) (graphstore.Store, error) {
	switch c.Backend {
	case BackendMemory:
		var opts []memstore.Option
		if c.UniqueEdges {
			opts = append(opts, memstore.WithUniqueEdges())
		}
		return memstore.New(opts...), nil

	case BackendBadger:
		store, err := badgerstore.Open(badgerstore.Config{
			Path:           c.Badger.Path,
			InMemory:       c.Badger.InMemory,
			SyncWrites:     c.Badger.SyncWrites,
			Logger:         logger,
			GCInterval:     c.Badger.GCInterval,
			GCDiscardRatio: c.Badger.GCDiscardRatio,
			UniqueEdges:    c.UniqueEdges,
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	case BackendNeo4j:
		store, err := neo4jstore.Open(ctx, neo4jstore.Config{
			URI:         c.Neo4j.URI,
			Username:    c.Neo4j.Username,
			Password:    c.Neo4j.Password,
			Database:    c.Neo4j.Database,
			UniqueEdges: c.UniqueEdges,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.Backend)
	}
}
