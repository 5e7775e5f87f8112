/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package patchapply applies validated diffs to a working tree with
// "git apply". A dry run precedes every application, so a diff either
// applies completely or leaves the tree untouched.
package patchapply

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"chainguard.dev/autopatch/codechange/diffgen"
	"github.com/chainguard-dev/clog"
)

// ApplyError carries the output of a failed "git apply" verbatim.
type ApplyError struct {
	// Op is "check" for the dry run and "apply" for the real run.
	Op     string
	Output string
	Err    error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("git apply (%s) failed: %v\n%s", e.Op, e.Err, strings.TrimSpace(e.Output))
}

func (e *ApplyError) Unwrap() error { return e.Err }

var applyArgs = []string{"apply", "--ignore-whitespace", "--whitespace=nowarn"}

// Applier applies diffs inside one working tree.
type Applier struct {
	root     string
	git      string
	archiver Archiver
}

// Option configures an Applier.
type Option func(*Applier)

// WithArchiver stores every successfully applied diff with ar.
func WithArchiver(ar Archiver) Option {
	return func(a *Applier) { a.archiver = ar }
}

// WithGitBinary overrides the git executable, which defaults to "git" on
// the PATH.
func WithGitBinary(path string) Option {
	return func(a *Applier) { a.git = path }
}

// New creates an Applier for the working tree at root.
func New(root string, opts ...Option) (*Applier, error) {
	if root == "" {
		return nil, errors.New("root cannot be empty")
	}
	a := &Applier{root: root, git: "git"}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Apply checks and then applies v. Nothing is written when the check fails.
func (a *Applier) Apply(ctx context.Context, v *diffgen.Validated) error {
	if v == nil {
		return errors.New("diff has not been validated")
	}
	log := clog.FromContext(ctx).With("paths", v.Paths())

	if out, err := a.run(ctx, v.Text(), "--check"); err != nil {
		return &ApplyError{Op: "check", Output: out, Err: err}
	}
	if out, err := a.run(ctx, v.Text()); err != nil {
		return &ApplyError{Op: "apply", Output: out, Err: err}
	}
	log.Info("Applied diff")

	if a.archiver != nil {
		if err := a.archiver.Archive(ctx, v.Text()); err != nil {
			log.With("error", err).Warn("Failed to archive applied diff")
		}
	}
	return nil
}

func (a *Applier) run(ctx context.Context, diff string, extra ...string) (string, error) {
	args := append(append([]string{}, applyArgs...), extra...)
	cmd := exec.CommandContext(ctx, a.git, args...)
	cmd.Dir = a.root
	cmd.Stdin = strings.NewReader(diff)
	out, err := cmd.CombinedOutput()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return string(out), ctxErr
	}
	return string(out), err
}
