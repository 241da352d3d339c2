// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package socnet

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/socnet/services/socnet/graphstore"
)

// Package-level tracer and meter for social network operations.
var (
	tracer = otel.Tracer("socnet")
	meter  = otel.Meter("socnet")
)

var (
	operationLatency metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

var (
	// mutationTotal counts committed and failed mutations by operation.
	mutationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socnet_mutation_total",
		Help: "Total graph mutations by operation and result",
	}, []string{"operation", "result"})

	// conflictTotal counts transaction conflicts surfaced to callers.
	conflictTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socnet_transaction_conflict_total",
		Help: "Total transaction conflicts by operation",
	}, []string{"operation"})
)

// initMetrics initializes the OTel instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		operationLatency, metricsErr = meter.Float64Histogram(
			"socnet_operation_duration_seconds",
			metric.WithDescription("Duration of social network operations"),
			metric.WithUnit("s"),
		)
	})
	return metricsErr
}

// startSpan opens a span for one public operation on a person.
func startSpan(ctx context.Context, operation string, node graphstore.NodeID) (context.Context, trace.Span) {
	return tracer.Start(ctx, "socnet."+operation,
		trace.WithAttributes(
			attribute.String("socnet.operation", operation),
			attribute.Int64("socnet.node_id", int64(node)),
		),
	)
}

// endSpan records the outcome of an operation on its span and latency
// histogram, then ends the span.
func endSpan(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	if initMetrics() != nil {
		return
	}
	operationLatency.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.Bool("success", err == nil),
		),
	)
}

// recordMutation counts a mutation result. Conflicts are counted separately.
func recordMutation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
		if graphstore.IsRetryable(err) {
			result = "conflict"
			conflictTotal.WithLabelValues(operation).Inc()
		}
	}
	mutationTotal.WithLabelValues(operation, result).Inc()
}
