/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"time"

	"chainguard.dev/autopatch/codechange/testrunner"
)

// Event is one chat request.
type Event struct {
	ID        string
	ChannelID string
	SenderID  string
	Text      string
}

// State is a point in an event's lifecycle.
type State string

// States, in pipeline order. DONE and FAILED are terminal.
const (
	StateReceived      State = "RECEIVED"
	StatePlanned       State = "PLANNED"
	StateDiffGenerated State = "DIFF_GENERATED"
	StateDiffValidated State = "DIFF_VALIDATED"
	StatePatched       State = "PATCHED"
	StateTested        State = "TESTED"
	StateCommitted     State = "COMMITTED"
	StatePROpened      State = "PR_OPENED"
	StateAnswered      State = "ANSWERED"
	StateDone          State = "DONE"
	StateFailed        State = "FAILED"
)

// Stages name the step that was running when an event failed.
const (
	StageIndex    = "index"
	StagePlan     = "plan"
	StageLock     = "lock"
	StageDiff     = "diff"
	StageValidate = "validate"
	StageApply    = "apply"
	StageTest     = "test"
	StageCommit   = "commit"
	StagePR       = "pr"
	StageChat     = "chat"
)

// Step is one completed (or failed) stage of a run.
type Step struct {
	Stage    string
	State    State
	Duration time.Duration
	Err      error
}

// Outcome is the result of processing one Event.
type Outcome struct {
	EventID string
	Action  string

	// State is StateDone or StateFailed. Reached is the last state entered
	// before the terminal one.
	State   State
	Reached State

	// Stage and Err are set when State is StateFailed.
	Stage string
	Err   error

	// Detail is the human readable result. For chat it is the answer.
	Detail string
	// Output is captured tool output, kept verbatim.
	Output string

	Branch         string
	PullRequestURL string
	MergeStatus    string
	Warning        string
	Test           *testrunner.TestResult

	Timeline []Step
	Duration time.Duration
}

// Failed reports whether the run ended in FAILED.
func (o *Outcome) Failed() bool { return o.State == StateFailed }
