/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package schema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFor(t *testing.T) {
	type response struct {
		Action string `json:"action" jsonschema:"required,enum=chat,enum=commit_push,description=What to do"`
		Reason string `json:"reason,omitempty"`
	}

	s := For[response]()

	if diff := cmp.Diff([]string{"action"}, s.Required); diff != "" {
		t.Errorf("Required mismatch (-want +got):\n%s", diff)
	}

	action, ok := s.Properties.Get("action")
	if !ok {
		t.Fatal("missing action property")
	}
	if action.Description != "What to do" {
		t.Errorf("description: got = %q, wanted = %q", action.Description, "What to do")
	}
	if diff := cmp.Diff([]any{"chat", "commit_push"}, action.Enum); diff != "" {
		t.Errorf("Enum mismatch (-want +got):\n%s", diff)
	}

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(b), "$schema") || strings.Contains(string(b), "$ref") {
		t.Errorf("schema carries $schema or $ref noise: %s", b)
	}
}
