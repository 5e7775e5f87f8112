/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package oracle

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/auth/credentials"
	"google.golang.org/genai"
)

type google struct {
	client *genai.Client
	model  string
	opts   *options
}

func newGoogle(ctx context.Context, model string, o *options) (Interface, error) {
	cfg := &genai.ClientConfig{
		Project:  o.projectID,
		Location: o.region,
		Backend:  genai.BackendVertexAI,
	}
	if len(o.credentialsJSON) > 0 {
		creds, err := credentials.DetectDefault(&credentials.DetectOptions{
			Scopes:          []string{cloudScope},
			CredentialsJSON: o.credentialsJSON,
		})
		if err != nil {
			return nil, fmt.Errorf("loading credentials: %w", err)
		}
		cfg.Credentials = creds
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google AI client: %w", err)
	}
	return &google{client: client, model: model, opts: o}, nil
}

// Generate implements Interface.
func (g *google) Generate(ctx context.Context, prompt string) (string, error) {
	temperature := float32(g.opts.temperature)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(g.opts.maxTokens),
	})
	if err == nil && len(resp.Candidates) == 0 {
		err = errors.New("model returned no candidates")
	}
	if err != nil {
		g.opts.record(ctx, g.model, 0, 0, err)
		return "", fmt.Errorf("generating content with %s: %w", g.model, err)
	}

	var promptTokens, completionTokens int64
	if u := resp.UsageMetadata; u != nil {
		promptTokens, completionTokens = int64(u.PromptTokenCount), int64(u.CandidatesTokenCount)
	}
	g.opts.record(ctx, g.model, promptTokens, completionTokens, nil)

	return resp.Text(), nil
}
