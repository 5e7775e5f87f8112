/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package oracle

import (
	"context"

	"chainguard.dev/autopatch/agents/metrics"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Interface generates a text completion for a single prompt.
type Interface interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Func adapts a function to Interface.
type Func func(ctx context.Context, prompt string) (string, error)

// Generate implements Interface.
func (f Func) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type options struct {
	projectID       string
	region          string
	credentialsJSON []byte
	apiKey          string
	temperature     float64
	maxTokens       int64
	genai           *metrics.GenAI
}

// Option configures New.
type Option func(*options)

// WithProject sets the Google Cloud project for Vertex AI backends. When
// unset, the project is taken from the credentials or the metadata server.
func WithProject(projectID string) Option {
	return func(o *options) { o.projectID = projectID }
}

// WithRegion sets the Vertex AI region.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// WithCredentialsJSON supplies a Google service account key instead of
// application default credentials.
func WithCredentialsJSON(b []byte) Option {
	return func(o *options) { o.credentialsJSON = b }
}

// WithAPIKey sets the API key of backends that do not use Google auth.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *options) { o.temperature = t }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int64) Option {
	return func(o *options) { o.maxTokens = n }
}

// WithMetrics records token usage and call outcomes on m.
func WithMetrics(m *metrics.GenAI) Option {
	return func(o *options) { o.genai = m }
}

func (o *options) record(ctx context.Context, model string, promptTokens, completionTokens int64, err error) {
	if o.genai == nil {
		return
	}
	o.genai.RecordCall(ctx, model, err)
	if err == nil {
		o.genai.RecordTokens(ctx, model, promptTokens, completionTokens)
	}
}
