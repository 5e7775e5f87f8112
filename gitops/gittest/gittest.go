/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package gittest builds throwaway repositories for tests: a working tree
// on branch main whose origin is a bare repository on disk.
package gittest

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Trunk is the branch NewRepo commits to.
const Trunk = "main"

// Repo is a working tree with a bare origin.
type Repo struct {
	Dir    string
	Origin string
	Head   string
}

// NewRepo commits files (path to content) to main in a fresh working tree
// and pushes it to a bare origin. Tests are skipped when the git binary,
// which go-git needs for local pushes, is unavailable.
func NewRepo(t *testing.T, files map[string]string) *Repo {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	origin := t.TempDir()
	if _, err := git.PlainInit(origin, true); err != nil {
		t.Fatalf("PlainInit origin: %v", err)
	}

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(Trunk))); err != nil {
		t.Fatalf("SetReference HEAD: %v", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	for p, content := range files {
		WriteFile(t, dir, p, content)
		if _, err := wt.Add(p); err != nil {
			t.Fatalf("Add %s: %v", p, err)
		}
	}
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{origin}}); err != nil {
		t.Fatalf("CreateRemote: %v", err)
	}
	spec := gitconfig.RefSpec("refs/heads/" + Trunk + ":refs/heads/" + Trunk)
	if err := repo.Push(&git.PushOptions{RemoteName: "origin", RefSpecs: []gitconfig.RefSpec{spec}}); err != nil {
		t.Fatalf("Push: %v", err)
	}

	return &Repo{Dir: dir, Origin: origin, Head: hash.String()}
}

// WriteFile writes content to the slash-separated path p under dir.
func WriteFile(t *testing.T, dir, p, content string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(p))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

// ReadFile returns the content of the slash-separated path p under dir.
func ReadFile(t *testing.T, dir, p string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(p)))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return string(b)
}

// Branches returns the branch names in the repository at dir.
func Branches(t *testing.T, dir string) []string {
	t.Helper()
	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("PlainOpen: %v", err)
	}
	iter, err := repo.Branches()
	if err != nil {
		t.Fatalf("Branches: %v", err)
	}
	var names []string
	_ = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	return names
}

// Commit returns the commit branch points at in the repository at dir, or
// nil when the branch does not exist.
func Commit(t *testing.T, dir, branch string) *object.Commit {
	t.Helper()
	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("PlainOpen: %v", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return nil
	}
	c, err := repo.CommitObject(ref.Hash())
	if err != nil {
		t.Fatalf("CommitObject: %v", err)
	}
	return c
}

// FileAt returns the content of p in commit c, and whether it exists.
func FileAt(t *testing.T, c *object.Commit, p string) (string, bool) {
	t.Helper()
	f, err := c.File(p)
	if err != nil {
		return "", false
	}
	content, err := f.Contents()
	if err != nil {
		t.Fatalf("Contents: %v", err)
	}
	return content, true
}

// HeadBranch returns the branch HEAD points at in the repository at dir.
func HeadBranch(t *testing.T, dir string) string {
	t.Helper()
	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("PlainOpen: %v", err)
	}
	ref, err := repo.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	return ref.Name().Short()
}
