/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("chainguard.dev/autopatch/chatops/orchestrator")

func startSpan(ctx context.Context, ev Event) (context.Context, trace.Span) {
	return tracer.Start(ctx, "autopatch.process", trace.WithAttributes(
		attribute.String("event_id", ev.ID),
		attribute.String("channel", ev.ChannelID),
	))
}

// endSpan records the timeline as span events and ends span.
func endSpan(span trace.Span, out *Outcome) {
	defer span.End()
	for _, s := range out.Timeline {
		span.AddEvent(s.Stage, trace.WithAttributes(
			attribute.String("state", string(s.State)),
			attribute.Int64("duration_ms", s.Duration.Milliseconds()),
		))
	}
	span.SetAttributes(
		attribute.String("action", out.Action),
		attribute.String("state", string(out.State)),
	)
	if out.Failed() {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, "failed at "+out.Stage)
	}
}
