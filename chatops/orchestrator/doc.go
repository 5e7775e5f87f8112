/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package orchestrator turns chat events into code changes.
//
// Each event is planned into an action and then driven through the stages
// that action needs:
//
//	modify_code:      diff -> validate -> apply -> test -> commit | pr
//	test_commit_push: test -> commit | pr
//	commit_push:      commit
//	chat:             answer
//
// Git-mutating actions hold the git lock from right after planning until
// they finish. A concurrent mutating request fails at the lock stage
// instead of queueing. The first failing stage ends the run; later stages
// never execute. Exactly one report is posted per event.
package orchestrator
