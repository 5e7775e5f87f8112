/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// AttributeEnricher adds contextual attributes (for example the pipeline
// stage) to the base attributes of a measurement.
type AttributeEnricher func(ctx context.Context, baseAttrs []attribute.KeyValue) []attribute.KeyValue

type stageKey struct{}

// WithStage annotates ctx with the pipeline stage issuing oracle calls.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey{}, stage)
}

// StageEnricher appends the stage recorded by WithStage, if any.
func StageEnricher(ctx context.Context, base []attribute.KeyValue) []attribute.KeyValue {
	if stage, ok := ctx.Value(stageKey{}).(string); ok && stage != "" {
		return append(base, attribute.String("stage", stage))
	}
	return base
}
