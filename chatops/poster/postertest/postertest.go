/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package postertest records posted messages for tests.
package postertest

import (
	"context"
	"sync"
)

// Message is one recorded post.
type Message struct {
	ChannelID string
	Text      string
}

// Recorder is a poster.Interface that keeps every message.
type Recorder struct {
	// Err, when set, is returned from every PostMessage after recording.
	Err error

	mu       sync.Mutex
	messages []Message
}

// PostMessage implements poster.Interface.
func (r *Recorder) PostMessage(_ context.Context, channelID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{ChannelID: channelID, Text: text})
	return r.Err
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Last returns the most recent message text, or "" when nothing was posted.
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return ""
	}
	return r.messages[len(r.messages)-1].Text
}
