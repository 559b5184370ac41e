// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"math"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var (
	tracer = otel.Tracer("workflow.llm")
	meter  = otel.Meter("workflow.llm")
)

var (
	requestsTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		requestsTotal, metricsErr = meter.Int64Counter(
			"llm_requests_total",
			metric.WithDescription("Total number of model calls by provider and outcome"),
		)
	})
	return metricsErr
}

// newLimiter spreads requestsPerMinute evenly. Zero or less disables
// limiting.
func newLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(math.Max(1, float64(requestsPerMinute)/10))
	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
}

func startChatSpan(ctx context.Context, provider, model string, messages int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "llm.Chat",
		trace.WithAttributes(
			attribute.String("llm.provider", provider),
			attribute.String("llm.model", model),
			attribute.Int("llm.messages", messages),
		),
	)
}

// finishChat records the outcome of a call and returns err unchanged.
func finishChat(ctx context.Context, span trace.Span, provider string, err error) error {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if initMetrics() == nil {
		requestsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("outcome", outcome),
		))
	}
	return err
}
