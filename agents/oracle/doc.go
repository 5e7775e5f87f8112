/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package oracle wraps the text-generation models behind a single
prompt-in, text-out interface.

New picks the backend from the model name:

  - gemini-* models use google.golang.org/genai against Vertex AI
  - claude-* models use the Anthropic SDK through Vertex AI
  - gpt-* models use the OpenAI API

	o, err := oracle.New(ctx, "gemini-2.0-flash",
		oracle.WithRegion("us-central1"),
		oracle.WithMetrics(metrics.NewGenAI("chainguard.dev/autopatch")),
	)
	if err != nil {
		return err
	}
	text, err := o.Generate(ctx, prompt)

The oracle is treated as untrusted: callers validate whatever text comes
back before acting on it.
*/
package oracle
