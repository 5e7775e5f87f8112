/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package patchapply

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
)

// Archiver keeps the last applied diff for later inspection.
type Archiver interface {
	Archive(ctx context.Context, diff string) error
}

// LastDiffName is the file or object name archived diffs are written to.
const LastDiffName = "last.diff"

// LocalArchiver writes the diff into a directory on disk.
type LocalArchiver struct {
	dir string
}

// NewLocalArchiver stores diffs under .git/autopatch in the working tree at
// root, which keeps them out of commits.
func NewLocalArchiver(root string) *LocalArchiver {
	return &LocalArchiver{dir: filepath.Join(root, ".git", "autopatch")}
}

// Path returns the file the diff is written to.
func (l *LocalArchiver) Path() string {
	return filepath.Join(l.dir, LastDiffName)
}

// Archive implements Archiver.
func (l *LocalArchiver) Archive(_ context.Context, diff string) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}
	if err := os.WriteFile(l.Path(), []byte(diff), 0o644); err != nil {
		return fmt.Errorf("writing archived diff: %w", err)
	}
	return nil
}

// GCSArchiver writes the diff to a Cloud Storage object.
type GCSArchiver struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSArchiver stores diffs as gs://bucket/prefix/last.diff.
func NewGCSArchiver(client *storage.Client, bucket, prefix string) *GCSArchiver {
	return &GCSArchiver{client: client, bucket: bucket, prefix: prefix}
}

// Object returns the name of the object the diff is written to.
func (g *GCSArchiver) Object() string {
	return path.Join(g.prefix, LastDiffName)
}

// Archive implements Archiver.
func (g *GCSArchiver) Archive(ctx context.Context, diff string) error {
	w := g.client.Bucket(g.bucket).Object(g.Object()).NewWriter(ctx)
	w.ContentType = "text/x-diff"
	if _, err := io.WriteString(w, diff); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing gs://%s/%s: %w", g.bucket, g.Object(), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing gs://%s/%s: %w", g.bucket, g.Object(), err)
	}
	return nil
}
