/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/vertex"
	googleauth "golang.org/x/oauth2/google"
)

type claude struct {
	client anthropic.Client
	model  string
	opts   *options
}

func newClaude(ctx context.Context, model string, o *options) (Interface, error) {
	var auth option.RequestOption
	if len(o.credentialsJSON) > 0 {
		creds, err := googleauth.CredentialsFromJSON(ctx, o.credentialsJSON, cloudScope)
		if err != nil {
			return nil, fmt.Errorf("loading credentials: %w", err)
		}
		auth = vertex.WithCredentials(ctx, o.region, o.projectID, creds)
	} else {
		auth = vertex.WithGoogleAuth(ctx, o.region, o.projectID)
	}

	return &claude{
		client: anthropic.NewClient(auth),
		model:  model,
		opts:   o,
	}, nil
}

// Generate implements Interface.
func (c *claude) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.opts.maxTokens,
		Temperature: anthropic.Float(c.opts.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		c.opts.record(ctx, c.model, 0, 0, err)
		return "", fmt.Errorf("creating message with %s: %w", c.model, err)
	}
	c.opts.record(ctx, c.model, msg.Usage.InputTokens, msg.Usage.OutputTokens, nil)

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
