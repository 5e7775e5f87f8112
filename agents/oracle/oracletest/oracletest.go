/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package oracletest provides scripted oracles for tests.
package oracletest

import (
	"context"
	"errors"
	"sync"
)

// ErrExhausted is returned once a Fake has no responses left.
var ErrExhausted = errors.New("oracletest: no scripted responses left")

// Response is one scripted reply.
type Response struct {
	Text string
	Err  error
}

// Fake replays Responses in order and records every prompt it receives.
type Fake struct {
	mu        sync.Mutex
	responses []Response
	prompts   []string
}

// New returns a Fake that answers with the given texts in order.
func New(texts ...string) *Fake {
	f := &Fake{}
	for _, t := range texts {
		f.responses = append(f.responses, Response{Text: t})
	}
	return f
}

// Push appends responses to the script.
func (f *Fake) Push(rs ...Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, rs...)
	return f
}

// Generate implements oracle.Interface.
func (f *Fake) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.prompts = append(f.prompts, prompt)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(f.responses) == 0 {
		return "", ErrExhausted
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r.Text, r.Err
}

// Prompts returns a copy of every prompt seen so far.
func (f *Fake) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// Calls reports how many times Generate was invoked.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}
