/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package fileindex lists the source files of a working tree that requests
// may refer to. Filtering happens once, when the index is built.
package fileindex

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Index is a sorted, duplicate-free list of slash-separated paths relative
// to the working tree root.
type Index []string

// Contains reports whether path is indexed.
func (idx Index) Contains(path string) bool {
	_, found := slices.BinarySearch(idx, path)
	return found
}

// Extensions returns the distinct extensions present in the index.
func (idx Index) Extensions() []string {
	seen := make(map[string]struct{})
	var exts []string
	for _, p := range idx {
		ext := filepath.Ext(p)
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; !ok {
			seen[ext] = struct{}{}
			exts = append(exts, ext)
		}
	}
	slices.Sort(exts)
	return exts
}

type options struct {
	extensions []string
	ignoreDirs []string
}

// Option configures Build.
type Option func(*options)

// WithExtensions limits the index to files with one of the given extensions.
// Extensions include the leading dot. An empty list indexes every file.
func WithExtensions(exts ...string) Option {
	return func(o *options) {
		o.extensions = exts
	}
}

// WithIgnoreDirs skips any directory whose base name matches. The .git
// directory and paths excluded by .gitignore files are always skipped.
func WithIgnoreDirs(dirs ...string) Option {
	return func(o *options) {
		o.ignoreDirs = dirs
	}
}

// Build walks root and returns the index of matching files.
func Build(ctx context.Context, root string, opts ...Option) (Index, error) {
	if root == "" {
		return nil, errors.New("root cannot be empty")
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	ignored := map[string]struct{}{".git": {}}
	for _, d := range o.ignoreDirs {
		ignored[d] = struct{}{}
	}

	patterns, err := gitignore.ReadPatterns(osfs.New(root), nil)
	if err != nil {
		return nil, fmt.Errorf("reading .gitignore patterns: %w", err)
	}
	matcher := gitignore.NewMatcher(patterns)

	var idx Index
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Skip entries we can't access
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if _, skip := ignored[d.Name()]; skip || matcher.Match(strings.Split(rel, "/"), true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !matchesExtension(path, o.extensions) {
			return nil
		}
		if matcher.Match(strings.Split(rel, "/"), false) {
			return nil
		}
		idx = append(idx, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	slices.Sort(idx)
	idx = slices.Compact(idx)

	clog.FromContext(ctx).With("root", root).With("files", len(idx)).Debug("Built file index")
	return idx, nil
}

func matchesExtension(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}
