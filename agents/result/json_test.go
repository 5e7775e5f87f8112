/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package result

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{{
		name:  "json fence",
		input: "```json\n{\"a\": 1}\n```",
		want:  `{"a": 1}`,
	}, {
		name:  "bare fence",
		input: "```\n{\"a\": 1}\n```\n",
		want:  `{"a": 1}`,
	}, {
		name:  "diff fence",
		input: "```diff\n--- a/x\n+++ b/x\n```",
		want:  "--- a/x\n+++ b/x",
	}, {
		name:  "no fence",
		input: "  {\"a\": 1}  ",
		want:  `{"a": 1}`,
	}, {
		name:  "unterminated fence",
		input: "```json\n{\"a\": 1}",
		want:  `{"a": 1}`,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.input); got != tt.want {
				t.Errorf("StripFences() = %q, wanted %q", got, tt.want)
			}
		})
	}
}

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{{
		name:   "plain object",
		input:  `{"action":"chat"}`,
		want:   `{"action":"chat"}`,
		wantOK: true,
	}, {
		name:   "surrounding prose",
		input:  `Sure, here you go: {"action":"chat"} Let me know!`,
		want:   `{"action":"chat"}`,
		wantOK: true,
	}, {
		name:   "nested objects",
		input:  `{"a":{"b":{"c":1}},"d":2} trailing {"e":3}`,
		want:   `{"a":{"b":{"c":1}},"d":2}`,
		wantOK: true,
	}, {
		name:   "braces inside strings",
		input:  `{"msg":"fix } and { in \"code\"","n":1}`,
		want:   `{"msg":"fix } and { in \"code\"","n":1}`,
		wantOK: true,
	}, {
		name:   "unterminated",
		input:  `text {"action":"chat"`,
		want:   `{"action":"chat"`,
		wantOK: false,
	}, {
		name:  "no object",
		input: "I cannot help with that.",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractObject(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ExtractObject() = (%q, %v), wanted (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	type plan struct {
		Action        string `json:"action"`
		CommitMessage string `json:"commitMessage,omitempty"`
	}

	tests := []struct {
		name    string
		input   string
		want    plan
		wantErr error
	}{{
		name:  "fenced",
		input: "```json\n{\"action\": \"commit_push\", \"commitMessage\": \"feat: x\"}\n```",
		want:  plan{Action: "commit_push", CommitMessage: "feat: x"},
	}, {
		name:  "prose prefix",
		input: "Here is the plan:\n{\"action\": \"chat\"}",
		want:  plan{Action: "chat"},
	}, {
		name:  "trailing comma repaired",
		input: `{"action": "test_commit_push",}`,
		want:  plan{Action: "test_commit_push"},
	}, {
		name:  "single quotes repaired",
		input: `{'action': 'chat'}`,
		want:  plan{Action: "chat"},
	}, {
		name:  "truncated object repaired",
		input: `{"action": "chat"`,
		want:  plan{Action: "chat"},
	}, {
		name:    "no object",
		input:   "no json here",
		wantErr: ErrNoObject,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract[plan](tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Extract() error = %v, wanted %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
