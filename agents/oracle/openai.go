/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type openAI struct {
	client openai.Client
	model  string
	opts   *options
}

func newOpenAI(model string, o *options) Interface {
	return &openAI{
		client: openai.NewClient(option.WithAPIKey(o.apiKey)),
		model:  model,
		opts:   o,
	}
}

// Generate implements Interface.
func (c *openAI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(c.model),
		Temperature:         openai.Float(c.opts.temperature),
		MaxCompletionTokens: openai.Int(c.opts.maxTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err == nil && len(resp.Choices) == 0 {
		err = errors.New("model returned no choices")
	}
	if err != nil {
		c.opts.record(ctx, c.model, 0, 0, err)
		return "", fmt.Errorf("creating chat completion with %s: %w", c.model, err)
	}
	c.opts.record(ctx, c.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, nil)

	return resp.Choices[0].Message.Content, nil
}
