/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package fileindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(p, []byte("// "+f), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
}

func TestBuild(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"index.js",
		"utils/math.js",
		"utils/math.test.js",
		"lib/strings.js",
		"README.md",
		"node_modules/left-pad/index.js",
		"dist/bundle.js",
		".git/hooks/pre-commit.js",
	)

	tests := []struct {
		name string
		opts []Option
		want Index
	}{{
		name: "js only with default ignores",
		opts: []Option{
			WithExtensions(".js"),
			WithIgnoreDirs("node_modules", "dist", "build"),
		},
		want: Index{"index.js", "lib/strings.js", "utils/math.js", "utils/math.test.js"},
	}, {
		name: "all files, only .git ignored",
		want: Index{
			"README.md",
			"dist/bundle.js",
			"index.js",
			"lib/strings.js",
			"node_modules/left-pad/index.js",
			"utils/math.js",
			"utils/math.test.js",
		},
	}, {
		name: "extension match is case insensitive",
		opts: []Option{WithExtensions(".MD")},
		want: Index{"README.md"},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Build(context.Background(), root, tt.opts...)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Build() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildEmptyRoot(t *testing.T) {
	if _, err := Build(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty root")
	}
}

func TestIndexHelpers(t *testing.T) {
	idx := Index{"a/b.go", "c.js", "d.js"}

	if !idx.Contains("c.js") {
		t.Error("Contains(c.js) = false")
	}
	if idx.Contains("b.go") {
		t.Error("Contains(b.go) = true, base names must not match")
	}
	if diff := cmp.Diff([]string{".go", ".js"}, idx.Extensions()); diff != "" {
		t.Errorf("Extensions() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildHonorsGitignore(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"utils/math.js",
		"coverage/lcov-report/math.js",
		"web/generated.js",
		"web/app.js",
	)
	if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte("coverage/\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "web", ".gitignore"), []byte("generated.js\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := Build(context.Background(), root, WithExtensions(".js"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if diff := cmp.Diff(Index{"utils/math.js", "web/app.js"}, got); diff != "" {
		t.Errorf("Build() mismatch (-want +got):\n%s", diff)
	}
}
