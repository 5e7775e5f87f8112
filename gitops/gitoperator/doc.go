/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package gitoperator commits the pending changes of a working tree and
// publishes them, either straight to trunk or through a pull request with
// optional auto-merge.
//
// Callers serialize access with gitlock. The lock marker itself is never
// committed, and further paths can be left out with WithStageExclude.
package gitoperator
