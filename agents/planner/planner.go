/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package planner classifies a free-text request into an Action with the
// help of an oracle. Unusable oracle output degrades to Chat; only oracle
// failures and unresolvable target files are errors.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/autopatch/agents/oracle"
	"chainguard.dev/autopatch/agents/result"
	"chainguard.dev/autopatch/agents/schema"
	"chainguard.dev/autopatch/workspace/fileindex"
	"chainguard.dev/autopatch/workspace/resolver"
	"github.com/chainguard-dev/clog"
)

// ResolutionError is returned when a modify_code request names no file
// that can be found in the index.
type ResolutionError struct {
	Mention string
	Err     error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot resolve target file from %q: %v", e.Mention, e.Err)
	}
	return fmt.Sprintf("cannot resolve target file from %q: no indexed file matches", e.Mention)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

type response struct {
	Action        string `json:"action" jsonschema:"required,enum=modify_code,enum=test_commit_push,enum=commit_push,enum=chat"`
	TargetFile    string `json:"targetFile,omitempty" jsonschema:"description=Repository-relative path of the file to modify"`
	Instruction   string `json:"instruction,omitempty" jsonschema:"description=What must change in the target file"`
	CommitMessage string `json:"commitMessage,omitempty" jsonschema:"description=Commit message for the change"`
	Reason        string `json:"reason,omitempty" jsonschema:"description=Short justification of the choice"`
}

// Planner turns requests into Actions.
type Planner struct {
	oracle oracle.Interface
}

// New creates a Planner backed by o.
func New(o oracle.Interface) (*Planner, error) {
	if o == nil {
		return nil, errors.New("oracle cannot be nil")
	}
	return &Planner{oracle: o}, nil
}

// Plan classifies userText. idx lists the files a modify_code request may
// target.
func (p *Planner) Plan(ctx context.Context, userText string, idx fileindex.Index) (Action, error) {
	log := clog.FromContext(ctx)

	prompt, err := buildPrompt(userText, idx)
	if err != nil {
		return nil, fmt.Errorf("building prompt: %w", err)
	}

	text, err := p.oracle.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("classifying request: %w", err)
	}

	resp, err := result.Extract[response](text)
	if err != nil {
		log.With("error", err).Warn("Oracle response carried no usable JSON, answering as chat")
		return Chat{Reason: ReasonNoJSON}, nil
	}

	switch strings.ToLower(strings.TrimSpace(resp.Action)) {
	case KindModifyCode:
		return p.modifyCode(ctx, userText, idx, resp)
	case KindTestCommitPush:
		return TestCommitPush{CommitMessage: commitMessage(resp)}, nil
	case KindCommitPush:
		return CommitPushOnly{CommitMessage: commitMessage(resp)}, nil
	case KindChat:
		return Chat{Reason: resp.Reason}, nil
	default:
		log.With("action", resp.Action).Warn("Oracle chose an unknown action, answering as chat")
		return Chat{Reason: ReasonInvalidAction}, nil
	}
}

func (p *Planner) modifyCode(ctx context.Context, userText string, idx fileindex.Index, resp response) (Action, error) {
	mention := strings.TrimSpace(resp.TargetFile)
	if mention == "" {
		mention = userText
	}

	target := mention
	if !idx.Contains(target) {
		resolved, err := resolver.ResolveExact(idx, mention)
		if err != nil {
			return nil, &ResolutionError{Mention: mention, Err: err}
		}
		if resolved == "" {
			return nil, &ResolutionError{Mention: mention}
		}
		target = resolved
	}
	clog.FromContext(ctx).With("target", target).Info("Resolved target file")

	instruction := strings.TrimSpace(resp.Instruction)
	if instruction == "" {
		instruction = userText
	}
	return ModifyCode{
		TargetFile:    target,
		Instruction:   instruction,
		CommitMessage: commitMessage(resp),
	}, nil
}

func commitMessage(resp response) string {
	if m := strings.TrimSpace(resp.CommitMessage); m != "" {
		return m
	}
	return DefaultCommitMessage
}

func buildPrompt(userText string, idx fileindex.Index) (string, error) {
	p, err := classifyPrompt.BindJSON("schema", schema.For[response]())
	if err != nil {
		return "", err
	}
	if p, err = p.BindXML("files", fileList{Paths: idx}); err != nil {
		return "", err
	}
	if p, err = p.BindXML("request", requestText{Text: userText}); err != nil {
		return "", err
	}
	return p.Build()
}
