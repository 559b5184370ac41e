// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package executor

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("workflow.executor")
	meter  = otel.Meter("workflow.executor")
)

var (
	batchDuration metric.Float64Histogram
	batchTotal    metric.Int64Counter
	blocksTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		batchDuration, err = meter.Float64Histogram(
			"executor_batch_duration_seconds",
			metric.WithDescription("Duration of code block batches"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		batchTotal, err = meter.Int64Counter(
			"executor_batches_total",
			metric.WithDescription("Total number of executed batches by status"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		blocksTotal, err = meter.Int64Counter(
			"executor_blocks_total",
			metric.WithDescription("Total number of code blocks started by language"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startBatchSpan(ctx context.Context, workDir string, blocks int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Executor.Execute",
		trace.WithAttributes(
			attribute.String("executor.work_dir", workDir),
			attribute.Int("executor.blocks", blocks),
		),
	)
}

func setBatchSpanResult(span trace.Span, result *ExecutionResult) {
	span.SetAttributes(
		attribute.String("executor.status", string(result.Status)),
		attribute.Int("executor.exit_code", result.ExitCode),
		attribute.Int("executor.blocks_run", result.BlocksRun),
		attribute.Bool("executor.truncated", result.Truncated),
	)
}

func recordBatch(ctx context.Context, status Status, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", string(status)))
	batchDuration.Record(ctx, duration.Seconds(), attrs)
	batchTotal.Add(ctx, 1, attrs)
}

func recordBlock(ctx context.Context, language string) {
	if err := initMetrics(); err != nil {
		return
	}
	blocksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("language", language)))
}
