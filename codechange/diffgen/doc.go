/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package diffgen obtains a unified diff for a single file from an oracle
// and validates it before anything is written.
//
// The oracle's answer is untrusted. ExtractUnifiedDiff keeps exactly one
// diff from it, and Validate checks its structure with diffparser and
// restricts the paths it may touch. Only a *Validated can be applied.
package diffgen
