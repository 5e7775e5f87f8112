/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"chainguard.dev/autopatch/chatops/orchestrator"
	"chainguard.dev/autopatch/chatops/poster"
	"chainguard.dev/autopatch/config"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <request>",
		Short: "Process one request against the working tree and print the report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "))
		},
	}
}

func runOnce(ctx context.Context, w io.Writer, text string) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	out := poster.Func(func(_ context.Context, _ string, msg string) error {
		_, err := fmt.Fprintln(w, msg)
		return err
	})
	p, err := newPipeline(ctx, cfg, out)
	if err != nil {
		return err
	}

	sender := os.Getenv("USER")
	outcome := p.orch.Process(ctx, orchestrator.Event{
		ID:        uuid.NewString(),
		ChannelID: "cli",
		SenderID:  sender,
		Text:      text,
	})
	if outcome.Failed() {
		return errors.New("request failed at stage " + outcome.Stage)
	}
	return nil
}
