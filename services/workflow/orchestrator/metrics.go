// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

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
	tracer = otel.Tracer("workflow.orchestrator")
	meter  = otel.Meter("workflow.orchestrator")
)

var (
	transitionsTotal metric.Int64Counter
	refinementsTotal metric.Int64Counter
	persistErrors    metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		transitionsTotal, err = meter.Int64Counter(
			"orchestrator_transitions_total",
			metric.WithDescription("Total number of phase transitions"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		refinementsTotal, err = meter.Int64Counter(
			"orchestrator_refinements_total",
			metric.WithDescription("Total number of output refinements by result"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		persistErrors, err = meter.Int64Counter(
			"orchestrator_persist_errors_total",
			metric.WithDescription("Total number of failed state writes"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startOperationSpan(ctx context.Context, op string, st *WorkflowState) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Orchestrator."+op,
		trace.WithAttributes(
			attribute.String("workflow.name", st.WorkflowName),
			attribute.String("workflow.run_id", st.RunID),
			attribute.String("workflow.phase", string(st.Phase)),
		),
	)
}

func endOperationSpan(span trace.Span, st *WorkflowState, err error) {
	span.SetAttributes(attribute.String("workflow.phase_after", string(st.Phase)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func recordTransition(ctx context.Context, from, to Phase) {
	if err := initMetrics(); err != nil {
		return
	}
	transitionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
}

func recordRefinement(ctx context.Context, result string) {
	if err := initMetrics(); err != nil {
		return
	}
	refinementsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func recordPersistError(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	persistErrors.Add(ctx, 1)
}
