/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/compute/metadata"
	"github.com/chainguard-dev/clog"
)

const (
	defaultRegion    = "us-central1"
	defaultMaxTokens = 8192
	cloudScope       = "https://www.googleapis.com/auth/cloud-platform"
)

// New creates an Interface for modelName, delegating to the backend that
// serves its prefix.
func New(ctx context.Context, modelName string, opts ...Option) (Interface, error) {
	if modelName == "" {
		modelName = DefaultModel
	}
	o := &options{
		region:    defaultRegion,
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(o)
	}

	modelLower := strings.ToLower(modelName)
	switch {
	case strings.HasPrefix(modelLower, "gemini-"):
		if err := o.resolveProject(ctx); err != nil {
			return nil, err
		}
		return newGoogle(ctx, modelName, o)

	case strings.HasPrefix(modelLower, "claude-"):
		if err := o.resolveProject(ctx); err != nil {
			return nil, err
		}
		return newClaude(ctx, modelName, o)

	case strings.HasPrefix(modelLower, "gpt-"):
		if o.apiKey == "" {
			return nil, errors.New("an API key is required for gpt-* models")
		}
		return newOpenAI(modelName, o), nil
	}

	return nil, fmt.Errorf("unsupported model: %s (expected gemini-*, claude-* or gpt-*)", modelName)
}

// resolveProject fills in the project id from the service account key or,
// on Google Cloud, the metadata server.
func (o *options) resolveProject(ctx context.Context) error {
	if o.projectID != "" {
		return nil
	}

	if len(o.credentialsJSON) > 0 {
		var key struct {
			ProjectID string `json:"project_id"`
		}
		if err := json.Unmarshal(o.credentialsJSON, &key); err != nil {
			return fmt.Errorf("parsing credentials: %w", err)
		}
		if key.ProjectID != "" {
			o.projectID = key.ProjectID
			return nil
		}
	}

	if metadata.OnGCE() {
		id, err := metadata.ProjectIDWithContext(ctx)
		if err != nil {
			return fmt.Errorf("reading project from metadata server: %w", err)
		}
		clog.FromContext(ctx).Infof("Using project %s from the metadata server", id)
		o.projectID = id
		return nil
	}

	return errors.New("a Google Cloud project is required for Vertex AI models")
}
