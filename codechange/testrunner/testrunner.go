/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package testrunner runs a repository's test command and reports the
// outcome. A failing suite is a result, not an error.
package testrunner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
)

// DefaultCommand is run when no test command is configured.
const DefaultCommand = "npm test"

// DefaultTimeout bounds a single run.
const DefaultTimeout = 10 * time.Minute

// TestResult is the outcome of one run. Output holds stdout and stderr
// interleaved as the command wrote them.
type TestResult struct {
	Success  bool
	Output   string
	ExitCode int
	Duration time.Duration
}

// Summary returns the last n non-empty lines of the output.
func (r *TestResult) Summary(n int) string {
	var lines []string
	for _, l := range strings.Split(r.Output, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// Runner executes the test command in a working tree.
type Runner struct {
	root    string
	command string
	timeout time.Duration
	env     []string
}

// Option configures a Runner.
type Option func(*Runner)

// WithCommand sets the shell command to run.
func WithCommand(cmd string) Option {
	return func(r *Runner) {
		if cmd != "" {
			r.command = cmd
		}
	}
}

// WithTimeout bounds each run.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithEnv adds KEY=VALUE pairs to the inherited environment.
func WithEnv(kv ...string) Option {
	return func(r *Runner) { r.env = append(r.env, kv...) }
}

// New creates a Runner for the working tree at root.
func New(root string, opts ...Option) (*Runner, error) {
	if root == "" {
		return nil, errors.New("root cannot be empty")
	}
	r := &Runner{root: root, command: DefaultCommand, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Command returns the shell command the Runner executes.
func (r *Runner) Command() string { return r.command }

// Run executes the test command through sh -c. It returns an error only
// when the command cannot be started or exceeds its timeout.
func (r *Runner) Run(ctx context.Context) (*TestResult, error) {
	log := clog.FromContext(ctx).With("command", r.command)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", r.command)
	cmd.Dir = r.root
	if len(r.env) > 0 {
		cmd.Env = append(cmd.Environ(), r.env...)
	}
	// Kill whatever is still holding the output pipes shortly after the
	// shell itself is killed.
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	out, err := cmd.CombinedOutput()
	res := &TestResult{
		Output:   string(out),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("running %q: %w", r.command, ctxErr)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.Success = true
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return res, fmt.Errorf("starting %q: %w", r.command, err)
	}

	log.With("success", res.Success, "exit_code", res.ExitCode, "duration", res.Duration).Info("Test run finished")
	return res, nil
}
