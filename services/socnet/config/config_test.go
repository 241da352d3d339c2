// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/socnet/pkg/logging"
	"github.com/AleutianAI/socnet/services/socnet/graphstore"
	"github.com/AleutianAI/socnet/services/socnet/graphstore/badgerstore"
	"github.com/AleutianAI/socnet/services/socnet/graphstore/memstore"
	"github.com/AleutianAI/socnet/services/socnet/telemetry"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "socnet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendBadger, cfg.Store.Backend)
	assert.NotEmpty(t, cfg.Store.Badger.Path)
	assert.True(t, cfg.Store.Badger.SyncWrites)
	assert.Equal(t, 5*time.Minute, cfg.Store.Badger.GCInterval)
	assert.Equal(t, 6, cfg.Query.MaxDepth)
	assert.Equal(t, 5, cfg.Query.Recommendations)
}

func TestLoad(t *testing.T) {
	t.Run("no path uses defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("missing file uses defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := writeConfig(t, `
store:
  backend: memory
  unique_edges: true
logging:
  level: debug
  json: true
query:
  max_depth: 3
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, BackendMemory, cfg.Store.Backend)
		assert.True(t, cfg.Store.UniqueEdges)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.True(t, cfg.Logging.JSON)
		assert.Equal(t, 3, cfg.Query.MaxDepth)
		// Untouched keys keep their defaults.
		assert.Equal(t, 5, cfg.Query.Recommendations)
	})

	t.Run("durations parse", func(t *testing.T) {
		path := writeConfig(t, `
store:
  badger:
    gc_interval: 90s
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 90*time.Second, cfg.Store.Badger.GCInterval)
	})

	t.Run("env overrides file", func(t *testing.T) {
		path := writeConfig(t, `
store:
  backend: memory
query:
  recommendations: 2
`)
		t.Setenv("SOCNET_STORE_BACKEND", "badger")
		t.Setenv("SOCNET_BADGER_IN_MEMORY", "true")
		t.Setenv("SOCNET_RECOMMENDATIONS", "9")
		t.Setenv("SOCNET_LOG_LEVEL", "warn")
		t.Setenv("SOCNET_METRICS", "prometheus")
		t.Setenv("SOCNET_METRICS_FILE", "/tmp/socnet.prom")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, telemetry.ExporterPrometheus, cfg.Telemetry.Metrics)
		assert.Equal(t, "/tmp/socnet.prom", cfg.Telemetry.MetricsFile)
		assert.Equal(t, BackendBadger, cfg.Store.Backend)
		assert.True(t, cfg.Store.Badger.InMemory)
		assert.Equal(t, 9, cfg.Query.Recommendations)
		assert.Equal(t, "warn", cfg.Logging.Level)
	})

	t.Run("neo4j from env", func(t *testing.T) {
		t.Setenv("SOCNET_STORE_BACKEND", "neo4j")
		t.Setenv("SOCNET_NEO4J_URI", "neo4j://localhost:7687")
		t.Setenv("SOCNET_NEO4J_USERNAME", "neo4j")
		t.Setenv("SOCNET_NEO4J_DATABASE", "social")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "neo4j://localhost:7687", cfg.Store.Neo4j.URI)
		assert.Equal(t, "neo4j", cfg.Store.Neo4j.Username)
		assert.Equal(t, "social", cfg.Store.Neo4j.Database)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "store: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("malformed env", func(t *testing.T) {
		t.Setenv("SOCNET_MAX_DEPTH", "deep")
		_, err := Load("")
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Store.Backend = "postgres" }},
		{"badger without path", func(c *Config) { c.Store.Badger.Path = "" }},
		{"neo4j without uri", func(c *Config) { c.Store.Backend = BackendNeo4j }},
		{"neo4j bad uri", func(c *Config) {
			c.Store.Backend = BackendNeo4j
			c.Store.Neo4j.URI = "not a uri"
		}},
		{"discard ratio of one", func(c *Config) { c.Store.Badger.GCDiscardRatio = 1 }},
		{"negative gc interval", func(c *Config) { c.Store.Badger.GCInterval = -time.Second }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"zero max depth", func(c *Config) { c.Query.MaxDepth = 0 }},
		{"zero recommendations", func(c *Config) { c.Query.Recommendations = 0 }},
		{"unknown trace exporter", func(c *Config) { c.Telemetry.Traces = "jaeger" }},
		{"metrics file without prometheus", func(c *Config) {
			c.Telemetry.Metrics = telemetry.ExporterStdout
			c.Telemetry.MetricsFile = "/tmp/socnet.prom"
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	t.Run("badger in memory needs no path", func(t *testing.T) {
		cfg := Default()
		cfg.Store.Badger.Path = ""
		cfg.Store.Badger.InMemory = true
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoggingConfig_LoggerConfig(t *testing.T) {
	lc, err := LoggingConfig{Level: "DEBUG", JSON: true, LogDir: "/tmp/logs"}.LoggerConfig("socnet")
	require.NoError(t, err)
	assert.Equal(t, logging.Config{
		Level:   logging.LevelDebug,
		JSON:    true,
		LogDir:  "/tmp/logs",
		Service: "socnet",
	}, lc)

	_, err = LoggingConfig{Level: "loud"}.LoggerConfig("socnet")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestTelemetryConfig_ExporterConfig(t *testing.T) {
	var buf bytes.Buffer
	tc := TelemetryConfig{
		Traces:      telemetry.ExporterStdout,
		Metrics:     telemetry.ExporterPrometheus,
		MetricsFile: "/tmp/socnet.prom",
	}.ExporterConfig("socnet-cli", &buf)

	assert.Equal(t, "socnet-cli", tc.ServiceName)
	assert.Equal(t, telemetry.ExporterStdout, tc.TraceExporter)
	assert.Equal(t, telemetry.ExporterPrometheus, tc.MetricExporter)
	assert.Equal(t, "/tmp/socnet.prom", tc.MetricsFile)
	assert.Same(t, &buf, tc.Output)
}

func TestStoreConfig_Open(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, err := StoreConfig{Backend: BackendMemory, UniqueEdges: true}.Open(ctx, nil)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &memstore.Store{}, store)

		err = graphstore.Update(ctx, store, func(tx graphstore.Tx) error {
			a, err := tx.CreateNode(ctx)
			require.NoError(t, err)
			b, err := tx.CreateNode(ctx)
			require.NoError(t, err)
			_, err = tx.CreateEdge(ctx, a, b, "FRIEND")
			require.NoError(t, err)
			_, err = tx.CreateEdge(ctx, b, a, "FRIEND")
			return err
		})
		assert.ErrorIs(t, err, graphstore.ErrDuplicateEdge)
	})

	t.Run("badger in memory", func(t *testing.T) {
		store, err := StoreConfig{
			Backend: BackendBadger,
			Badger:  BadgerConfig{InMemory: true},
		}.Open(ctx, nil)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &badgerstore.Store{}, store)
	})

	t.Run("badger on disk", func(t *testing.T) {
		store, err := StoreConfig{
			Backend: BackendBadger,
			Badger: BadgerConfig{
				Path:           t.TempDir(),
				GCInterval:     time.Hour,
				GCDiscardRatio: 0.5,
			},
		}.Open(ctx, nil)
		require.NoError(t, err)
		assert.NoError(t, store.Close())
	})

	t.Run("unknown backend", func(t *testing.T) {
		store, err := StoreConfig{Backend: "sqlite"}.Open(ctx, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.Nil(t, store)
	})
}
