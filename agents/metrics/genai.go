/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package metrics records OpenTelemetry metrics for oracle calls.
package metrics

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// GenAI holds the counters shared by every oracle backend. Counters that
// fail to initialize degrade to no-ops instead of failing construction.
type GenAI struct {
	promptTokens     metric.Int64Counter
	completionTokens metric.Int64Counter
	calls            metric.Int64Counter
	enricher         AttributeEnricher
}

// NewGenAI creates the counters on the named meter. The model is recorded as
// an attribute, so one meter name serves every backend.
func NewGenAI(meterName string) *GenAI {
	meter := otel.Meter(meterName, metric.WithInstrumentationVersion("1.0.0"))

	return &GenAI{
		promptTokens: counter(meter, meterName, "genai.token.prompt",
			"The number of prompt tokens used", "{tokens}"),
		completionTokens: counter(meter, meterName, "genai.token.completion",
			"The number of completion tokens used", "{tokens}"),
		calls: counter(meter, meterName, "genai.generate.calls",
			"The number of generate calls made, by outcome", "{calls}"),
	}
}

func counter(meter metric.Meter, meterName, name, desc, unit string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		slog.Warn("Failed to create counter, metric will be disabled", "error", err, "meter", meterName, "counter", name)
		return noop.Int64Counter{}
	}
	return c
}

// SetAttributeEnricher installs an enricher applied before each recording.
func (m *GenAI) SetAttributeEnricher(enricher AttributeEnricher) {
	m.enricher = enricher
}

func (m *GenAI) attrs(ctx context.Context, base []attribute.KeyValue, extra []attribute.KeyValue) metric.MeasurementOption {
	if m.enricher != nil {
		base = m.enricher(ctx, base)
	}
	return metric.WithAttributes(append(base, extra...)...)
}

// RecordTokens records prompt and completion token usage for model.
func (m *GenAI) RecordTokens(ctx context.Context, model string, promptTokens, completionTokens int64, attrs ...attribute.KeyValue) {
	opt := m.attrs(ctx, []attribute.KeyValue{attribute.String("model", model)}, attrs)
	m.promptTokens.Add(ctx, promptTokens, opt)
	m.completionTokens.Add(ctx, completionTokens, opt)
}

// RecordCall counts one generate call for model. A nil err is recorded as
// outcome "ok".
func (m *GenAI) RecordCall(ctx context.Context, model string, err error, attrs ...attribute.KeyValue) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.calls.Add(ctx, 1, m.attrs(ctx, []attribute.KeyValue{
		attribute.String("model", model),
		attribute.String("outcome", outcome),
	}, attrs))
}
