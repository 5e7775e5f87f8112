/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package poster delivers messages back to the chat channel an event came
// from.
package poster

import (
	"context"

	"github.com/chainguard-dev/clog"
)

// Interface posts a message to a chat channel.
type Interface interface {
	PostMessage(ctx context.Context, channelID, text string) error
}

// Func adapts an ordinary function to Interface.
type Func func(ctx context.Context, channelID, text string) error

// PostMessage implements Interface.
func (f Func) PostMessage(ctx context.Context, channelID, text string) error {
	return f(ctx, channelID, text)
}

// Log is an Interface that writes messages to the context logger. It is
// used when no chat transport is configured.
type Log struct{}

// PostMessage implements Interface.
func (Log) PostMessage(ctx context.Context, channelID, text string) error {
	clog.FromContext(ctx).With("channel", channelID).Info(text)
	return nil
}
