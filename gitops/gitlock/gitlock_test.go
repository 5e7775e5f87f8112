/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gitlock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	root := t.TempDir()
	if _, err := git.PlainInit(root, false); err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	m, err := New(root)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	return m
}

func TestAcquireRelease(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	release, err := m.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() = %v", err)
	}

	b, err := os.ReadFile(m.MarkerPath())
	if err != nil {
		t.Fatalf("reading marker: %v", err)
	}
	if got := strings.TrimSpace(string(b)); got != "2026-03-01T12:00:00Z" {
		t.Errorf("marker = %q", got)
	}
	if since, held := m.Held(); !held || !since.Equal(fixed) {
		t.Errorf("Held() = %v, %v", since, held)
	}

	if _, err := m.Acquire(ctx); !errors.Is(err, ErrLockContention) {
		t.Fatalf("second Acquire() = %v, want ErrLockContention", err)
	}

	release()
	release()
	if _, held := m.Held(); held {
		t.Error("Held() = true after release")
	}
	if _, err := os.Stat(m.MarkerPath()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("marker still present: %v", err)
	}

	release2, err := m.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() after release = %v", err)
	}
	release2()
}

func TestStaleReleaseDoesNotDropNewHolder(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	first, err := m.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() = %v", err)
	}
	first()
	second, err := m.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() = %v", err)
	}
	defer second()

	first()
	if _, held := m.Held(); !held {
		t.Error("repeated release of an old holder dropped the current one")
	}
}

func TestAcquireConcurrent(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	var (
		wg       sync.WaitGroup
		winners  atomic.Int32
		contends atomic.Int32
		start    = make(chan struct{})
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := m.Acquire(ctx)
			switch {
			case err == nil:
				winners.Add(1)
			case errors.Is(err, ErrLockContention):
				contends.Add(1)
			default:
				t.Errorf("Acquire() = %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if winners.Load() != 1 || contends.Load() != 15 {
		t.Errorf("winners = %d, contended = %d", winners.Load(), contends.Load())
	}
}

func TestWithLockReleasesOnPanic(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic did not propagate")
			}
		}()
		_ = m.WithLock(ctx, func(context.Context) error {
			panic("boom")
		})
	}()

	if _, held := m.Held(); held {
		t.Fatal("lock still held after panic")
	}

	boom := errors.New("boom")
	if err := m.WithLock(ctx, func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("WithLock() = %v, want %v", err, boom)
	}
	if _, held := m.Held(); held {
		t.Fatal("lock still held after error")
	}
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	indexLock := filepath.Join(m.root, ".git", "index.lock")
	for _, p := range []string{m.MarkerPath(), indexLock} {
		if err := os.WriteFile(p, []byte("stale"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := m.Sweep(ctx); err != nil {
		t.Fatalf("Sweep() = %v", err)
	}
	for _, p := range []string{m.MarkerPath(), indexLock} {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s survived Sweep: %v", p, err)
		}
	}

	// Nothing left to remove is fine.
	if err := m.Sweep(ctx); err != nil {
		t.Fatalf("second Sweep() = %v", err)
	}
}

func TestSweepOutsideRepository(t *testing.T) {
	m, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	if err := os.WriteFile(m.MarkerPath(), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := m.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() = %v", err)
	}
	if _, err := os.Stat(m.MarkerPath()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("marker survived Sweep: %v", err)
	}
}
