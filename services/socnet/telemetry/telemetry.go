// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry installs the OpenTelemetry providers that receive the
// spans and latency histograms recorded by package socnet.
//
// Until Init runs, the global providers are no-ops and instrumentation costs
// next to nothing. Init replaces them for the life of the process.
//
// Usage:
//
//	shutdown, err := telemetry.Init(ctx, cfg)
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

// Exporter names.
const (
	ExporterNone       = "none"
	ExporterStdout     = "stdout"
	ExporterPrometheus = "prometheus"
)

var (
	// ErrNilContext is returned when Init is called with a nil context.
	ErrNilContext = errors.New("context must not be nil")

	// ErrUnknownExporter is returned for an exporter name Init does not know.
	ErrUnknownExporter = errors.New("unknown exporter type")
)

// Config selects the exporters.
type Config struct {
	// ServiceName identifies this process in traces and metrics.
	ServiceName string

	// ServiceVersion is the version string reported with the resource.
	ServiceVersion string

	// TraceExporter is "none" or "stdout".
	TraceExporter string

	// MetricExporter is "none", "stdout" or "prometheus".
	MetricExporter string

	// Output receives stdout exporter records. Defaults to os.Stderr.
	Output io.Writer

	// Registry receives the prometheus exporter's collector. Nil uses the
	// default prometheus registry.
	Registry *prometheus.Registry

	// MetricsFile, if set with the prometheus exporter, is written in the
	// prometheus text format on shutdown.
	MetricsFile string
}

// DefaultConfig returns a configuration with every exporter disabled.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "socnet",
		ServiceVersion: "1.0.0",
		TraceExporter:  ExporterNone,
		MetricExporter: ExporterNone,
	}
}

// Init installs the global tracer and meter providers.
//
// Description:
//
//	Builds a resource naming the service, then a tracer provider and a
//	meter provider for the selected exporters, and registers both with
//	otel. An exporter set to "none" leaves its global provider untouched.
//
// Inputs:
//
//	ctx - Must not be nil.
//	cfg - Exporter selection.
//
// Outputs:
//
//	shutdown - Flushes and stops the providers, then writes MetricsFile.
//	           Always non-nil on success. Call exactly once.
//	error - ErrNilContext, ErrUnknownExporter or an exporter failure.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	var shutdownFuncs []func(context.Context) error
	shutdown = func(ctx context.Context) error {
		var result *multierror.Error
		for _, fn := range shutdownFuncs {
			if err := fn(ctx); err != nil {
				result = multierror.Append(result, err)
			}
		}
		return result.ErrorOrNil()
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	if cfg.TraceExporter != ExporterNone && cfg.TraceExporter != "" {
		tp, err := initTracer(cfg, res)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		otel.SetTracerProvider(tp)
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
	}

	if cfg.MetricExporter != ExporterNone && cfg.MetricExporter != "" {
		mp, err := initMeter(cfg, res)
		if err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("init meter: %w", err)
		}
		otel.SetMeterProvider(mp)

		// The text file is gathered while the meter provider can still collect.
		if cfg.MetricExporter == ExporterPrometheus && cfg.MetricsFile != "" {
			gatherer := gathererFor(cfg)
			path := cfg.MetricsFile
			shutdownFuncs = append(shutdownFuncs, func(context.Context) error {
				if err := prometheus.WriteToTextfile(path, gatherer); err != nil {
					return fmt.Errorf("write metrics file: %w", err)
				}
				return nil
			})
		}
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
	}

	return shutdown, nil
}

func initTracer(cfg Config, res *resource.Resource) (*trace.TracerProvider, error) {
	switch cfg.TraceExporter {
	case ExporterStdout:
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(cfg.Output))
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}
		// Synchronous export: a CLI run may end before a batch would flush.
		return trace.NewTracerProvider(
			trace.WithSyncer(exporter),
			trace.WithResource(res),
			trace.WithSampler(trace.AlwaysSample()),
		), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.TraceExporter)
	}
}

func initMeter(cfg Config, res *resource.Resource) (*metric.MeterProvider, error) {
	switch cfg.MetricExporter {
	case ExporterPrometheus:
		var opts []promexporter.Option
		if cfg.Registry != nil {
			opts = append(opts, promexporter.WithRegisterer(cfg.Registry))
		}
		exporter, err := promexporter.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		return metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(exporter),
		), nil

	case ExporterStdout:
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.Output))
		if err != nil {
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		// The periodic reader exports once more on shutdown.
		return metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(metric.NewPeriodicReader(exporter)),
		), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.MetricExporter)
	}
}

func gathererFor(cfg Config) prometheus.Gatherer {
	if cfg.Registry != nil {
		return cfg.Registry
	}
	return prometheus.DefaultGatherer
}
