/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package planner

// Action is the closed set of things a request can ask for. Only the types
// in this package implement it.
type Action interface {
	// Kind is the wire name of the action.
	Kind() string

	action()
}

// Wire names of the actions, as the oracle is asked to produce them.
const (
	KindModifyCode     = "modify_code"
	KindTestCommitPush = "test_commit_push"
	KindCommitPush     = "commit_push"
	KindChat           = "chat"
)

// Reasons attached to Chat when a response could not be used.
const (
	ReasonNoJSON        = "no_json"
	ReasonInvalidAction = "invalid_action"
)

// DefaultCommitMessage is used when the oracle does not supply one.
const DefaultCommitMessage = "chore: automated changes"

// ModifyCode asks for an edit to a single file followed by tests and a
// publish.
type ModifyCode struct {
	TargetFile    string
	Instruction   string
	CommitMessage string
}

// TestCommitPush runs the tests and publishes the working tree as is.
type TestCommitPush struct {
	CommitMessage string
}

// CommitPushOnly publishes the working tree straight to trunk.
type CommitPushOnly struct {
	CommitMessage string
}

// Chat answers conversationally. Reason is set when the request was
// degraded to Chat because the oracle response was unusable.
type Chat struct {
	Reason string
}

func (ModifyCode) Kind() string     { return KindModifyCode }
func (TestCommitPush) Kind() string { return KindTestCommitPush }
func (CommitPushOnly) Kind() string { return KindCommitPush }
func (Chat) Kind() string           { return KindChat }

func (ModifyCode) action()     {}
func (TestCommitPush) action() {}
func (CommitPushOnly) action() {}
func (Chat) action()           {}

// Mutates reports whether a touches the repository.
func Mutates(a Action) bool {
	_, chat := a.(Chat)
	return !chat
}

// CommitMessage returns the commit message carried by a, or "" for Chat.
func CommitMessage(a Action) string {
	switch a := a.(type) {
	case ModifyCode:
		return a.CommitMessage
	case TestCommitPush:
		return a.CommitMessage
	case CommitPushOnly:
		return a.CommitMessage
	}
	return ""
}
