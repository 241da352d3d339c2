// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "socnet", cfg.ServiceName)
	assert.Equal(t, ExporterNone, cfg.TraceExporter)
	assert.Equal(t, ExporterNone, cfg.MetricExporter)
}

func TestInit_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	_, err := Init(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestInit_NoopExporters(t *testing.T) {
	shutdown, err := Init(context.Background(), DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_UnknownExporter(t *testing.T) {
	t.Run("trace", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.TraceExporter = "zipkin"
		_, err := Init(context.Background(), cfg)
		assert.ErrorIs(t, err, ErrUnknownExporter)
	})

	t.Run("metric", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MetricExporter = "otlp"
		_, err := Init(context.Background(), cfg)
		assert.ErrorIs(t, err, ErrUnknownExporter)
	})
}

func TestInit_StdoutTraces(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.TraceExporter = ExporterStdout
	cfg.Output = &buf

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "lookup-span")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "lookup-span")
}

func TestInit_StdoutMetrics(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.MetricExporter = ExporterStdout
	cfg.Output = &buf

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)

	counter, err := otel.GetMeterProvider().Meter("test").Int64Counter("lookup.count")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "lookup.count")
}

func TestInit_PrometheusMetricsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "socnet.prom")
	cfg := DefaultConfig()
	cfg.MetricExporter = ExporterPrometheus
	cfg.Registry = prometheus.NewRegistry()
	cfg.MetricsFile = path

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)

	counter, err := otel.GetMeterProvider().Meter("test").Int64Counter("lookup_requests")
	require.NoError(t, err)
	counter.Add(context.Background(), 2)

	families, err := cfg.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	require.NoError(t, shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "lookup_requests")
}
