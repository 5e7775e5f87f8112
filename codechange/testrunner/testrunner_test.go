/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package testrunner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	tests := []struct {
		name         string
		command      string
		env          []string
		wantSuccess  bool
		wantExitCode int
		wantOutput   []string
	}{{
		name:        "passing",
		command:     "echo ok",
		wantSuccess: true,
		wantOutput:  []string{"ok"},
	}, {
		name:         "failing keeps both streams",
		command:      "echo out; echo 'AssertionError: expected 1' >&2; exit 3",
		wantExitCode: 3,
		wantOutput:   []string{"out", "AssertionError: expected 1"},
	}, {
		name:        "runs in root with env",
		command:     `test -f marker && echo "$GREETING"`,
		env:         []string{"GREETING=hi"},
		wantSuccess: true,
		wantOutput:  []string{"hi"},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			if err := os.WriteFile(filepath.Join(root, "marker"), nil, 0o644); err != nil {
				t.Fatal(err)
			}
			r, err := New(root, WithCommand(tt.command), WithEnv(tt.env...))
			if err != nil {
				t.Fatalf("New() = %v", err)
			}
			res, err := r.Run(context.Background())
			if err != nil {
				t.Fatalf("Run() = %v", err)
			}
			if res.Success != tt.wantSuccess || res.ExitCode != tt.wantExitCode {
				t.Errorf("Run() = success %v exit %d, want %v %d", res.Success, res.ExitCode, tt.wantSuccess, tt.wantExitCode)
			}
			for _, w := range tt.wantOutput {
				if !strings.Contains(res.Output, w) {
					t.Errorf("Output = %q, want containing %q", res.Output, w)
				}
			}
		})
	}
}

func TestRunTimeout(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	r, err := New(t.TempDir(), WithCommand("sleep 2"), WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	if _, err := r.Run(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want DeadlineExceeded", err)
	}
}

func TestDefaults(t *testing.T) {
	r, err := New(t.TempDir(), WithCommand(""))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	if got := r.Command(); got != DefaultCommand {
		t.Errorf("Command() = %q, want %q", got, DefaultCommand)
	}
}

func TestSummary(t *testing.T) {
	res := &TestResult{Output: "a\n\nb\nc\n\nd\n"}
	if got, want := res.Summary(2), "c\nd"; got != want {
		t.Errorf("Summary(2) = %q, want %q", got, want)
	}
	if got, want := res.Summary(10), "a\nb\nc\nd"; got != want {
		t.Errorf("Summary(10) = %q, want %q", got, want)
	}
}
