/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package gitlock serializes repository mutations with a marker file at
// the root of the working tree.
//
// The marker is created with O_EXCL, so a second Acquire fails fast with
// ErrLockContention instead of queueing. Sweep removes leftovers from a
// crashed process and is only safe while a single instance owns the tree.
package gitlock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// MarkerName is the lock file created at the root of the working tree.
const MarkerName = ".autopatch.lock"

// ErrLockContention is returned when the lock is already held.
var ErrLockContention = errors.New("already running")

// Manager owns the lock for one working tree.
type Manager struct {
	root string
	now  func() time.Time

	mu    sync.Mutex
	held  bool
	since time.Time
}

// New creates a Manager for the working tree at root.
func New(root string) (*Manager, error) {
	if root == "" {
		return nil, errors.New("root cannot be empty")
	}
	return &Manager{root: root, now: time.Now}, nil
}

// MarkerPath returns the absolute location of the lock marker.
func (m *Manager) MarkerPath() string {
	return filepath.Join(m.root, MarkerName)
}

// Acquire takes the lock. The returned release function may be called any
// number of times; only the first call has an effect.
func (m *Manager) Acquire(ctx context.Context) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := os.OpenFile(m.MarkerPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil, ErrLockContention
	} else if err != nil {
		return nil, fmt.Errorf("creating lock marker: %w", err)
	}

	since := m.now().UTC()
	_, werr := fmt.Fprintln(f, since.Format(time.RFC3339))
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(m.MarkerPath())
		return nil, fmt.Errorf("writing lock marker: %w", werr)
	}

	m.held, m.since = true, since
	clog.FromContext(ctx).With("since", since).Info("Acquired git lock")

	var once sync.Once
	return func() { once.Do(func() { m.release(ctx) }) }, nil
}

func (m *Manager) release(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.MarkerPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		clog.FromContext(ctx).With("error", err).Error("Failed to remove lock marker")
	}
	m.held, m.since = false, time.Time{}
	clog.FromContext(ctx).Info("Released git lock")
}

// WithLock runs fn while holding the lock. The lock is released on every
// exit path, including a panic in fn.
func (m *Manager) WithLock(ctx context.Context, fn func(context.Context) error) error {
	release, err := m.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// Held reports when the current holder acquired the lock.
func (m *Manager) Held() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.since, m.held
}

// Sweep removes a leftover lock marker and a stale git index lock. Call it
// once at startup, before any work is accepted.
func (m *Manager) Sweep(ctx context.Context) error {
	log := clog.FromContext(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	stale := []string{m.MarkerPath()}
	if dir, err := gitDir(m.root); err != nil {
		log.With("error", err).Warn("Not sweeping git index lock")
	} else {
		stale = append(stale, filepath.Join(dir, "index.lock"))
	}

	for _, p := range stale {
		err := os.Remove(p)
		switch {
		case err == nil:
			log.With("path", p).Warn("Removed stale lock")
		case errors.Is(err, os.ErrNotExist):
		default:
			return fmt.Errorf("removing stale lock %s: %w", p, err)
		}
	}
	m.held, m.since = false, time.Time{}
	return nil
}

// gitDir locates the repository's git directory, which is not always
// <root>/.git for linked worktrees.
func gitDir(root string) (string, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("opening repository: %w", err)
	}
	fs, ok := repo.Storer.(*filesystem.Storage)
	if !ok {
		return "", errors.New("repository is not backed by a filesystem")
	}
	return fs.Filesystem().Root(), nil
}
