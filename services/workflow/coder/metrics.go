// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package coder

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("workflow.coder")
	meter  = otel.Meter("workflow.coder")
)

var (
	iterationsTotal     metric.Int64Counter
	syntaxFailuresTotal metric.Int64Counter
	llmCallsTotal       metric.Int64Counter
	sessionsTotal       metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		iterationsTotal, err = meter.Int64Counter(
			"coder_iterations_total",
			metric.WithDescription("Total number of generation iterations by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		syntaxFailuresTotal, err = meter.Int64Counter(
			"coder_syntax_failures_total",
			metric.WithDescription("Total number of generated scripts rejected by the syntax check"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		llmCallsTotal, err = meter.Int64Counter(
			"coder_llm_calls_total",
			metric.WithDescription("Total number of code generation requests by result"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		sessionsTotal, err = meter.Int64Counter(
			"coder_sessions_total",
			metric.WithDescription("Total number of coder sessions by result"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startRunSpan(ctx context.Context, workflow string, maxIterations int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Session.Run",
		trace.WithAttributes(
			attribute.String("coder.workflow", workflow),
			attribute.Int("coder.max_iterations", maxIterations),
		),
	)
}

func startRefineSpan(ctx context.Context, workflow string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Session.Refine",
		trace.WithAttributes(attribute.String("coder.workflow", workflow)),
	)
}

func finishSpan(span trace.Span, success bool, iterations int, err error) {
	span.SetAttributes(
		attribute.Bool("coder.success", success),
		attribute.Int("coder.iterations", iterations),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func recordIteration(ctx context.Context, outcome string) {
	if err := initMetrics(); err != nil {
		return
	}
	iterationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func recordSyntaxFailure(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	syntaxFailuresTotal.Add(ctx, 1)
}

func recordLLMCall(ctx context.Context, ok bool) {
	if err := initMetrics(); err != nil {
		return
	}
	result := "success"
	if !ok {
		result = "error"
	}
	llmCallsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func recordSession(ctx context.Context, result string) {
	if err := initMetrics(); err != nil {
		return
	}
	sessionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
