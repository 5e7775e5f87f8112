/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package hostingtest provides an in-memory stand-in for the hosting
// client.
package hostingtest

import (
	"context"
	"fmt"
	"sync"

	"chainguard.dev/autopatch/gitops/hosting"
)

// Request records one CreatePullRequest call.
type Request struct {
	Title, Body, Head, Base string
}

// Fake numbers pull requests from 1 and records every call.
type Fake struct {
	// CreateErr and AutoMergeErr, when set, are returned by the
	// corresponding calls.
	CreateErr    error
	AutoMergeErr error

	mu        sync.Mutex
	requests  []Request
	autoMerge []string
}

// CreatePullRequest implements gitoperator.Hosting.
func (f *Fake) CreatePullRequest(_ context.Context, title, body, head, base string) (*hosting.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.requests = append(f.requests, Request{Title: title, Body: body, Head: head, Base: base})
	n := len(f.requests)
	return &hosting.PullRequest{
		Number: n,
		URL:    fmt.Sprintf("https://github.com/acme/widgets/pull/%d", n),
		NodeID: fmt.Sprintf("PR_%d", n),
	}, nil
}

// EnableAutoMerge implements gitoperator.Hosting.
func (f *Fake) EnableAutoMerge(_ context.Context, nodeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.autoMerge = append(f.autoMerge, nodeID)
	return f.AutoMergeErr
}

// Requests returns the recorded pull request requests.
func (f *Fake) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

// AutoMerged returns the node ids auto-merge was requested for.
func (f *Fake) AutoMerged() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.autoMerge...)
}
