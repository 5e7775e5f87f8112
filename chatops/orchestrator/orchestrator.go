/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"chainguard.dev/autopatch/agents/metrics"
	"chainguard.dev/autopatch/agents/oracle"
	"chainguard.dev/autopatch/agents/planner"
	"chainguard.dev/autopatch/chatops/dedup"
	"chainguard.dev/autopatch/chatops/poster"
	"chainguard.dev/autopatch/codechange/diffgen"
	"chainguard.dev/autopatch/codechange/patchapply"
	"chainguard.dev/autopatch/codechange/testrunner"
	"chainguard.dev/autopatch/gitops/gitoperator"
	"chainguard.dev/autopatch/workspace/fileindex"
	"github.com/chainguard-dev/clog"
)

// ErrTestsFailed marks a run whose test command exited non-zero.
var ErrTestsFailed = errors.New("tests failed")

// Publish modes for ModifyCode and TestCommitPush.
const (
	ModePR     = "pr"
	ModeDirect = "direct"
)

// Indexer lists the files the planner may target.
type Indexer func(ctx context.Context) (fileindex.Index, error)

// Planner classifies a request. *planner.Planner implements it.
type Planner interface {
	Plan(ctx context.Context, userText string, idx fileindex.Index) (planner.Action, error)
}

// DiffGenerator produces candidate diffs. *diffgen.Generator implements it.
type DiffGenerator interface {
	Generate(ctx context.Context, target, instruction string) (*diffgen.Document, error)
}

// Applier applies validated diffs. *patchapply.Applier implements it.
type Applier interface {
	Apply(ctx context.Context, v *diffgen.Validated) error
}

// Tester runs the project's tests. *testrunner.Runner implements it.
type Tester interface {
	Run(ctx context.Context) (*testrunner.TestResult, error)
}

// Locker serializes git-mutating work. *gitlock.Manager implements it.
type Locker interface {
	Acquire(ctx context.Context) (func(), error)
}

// Publisher commits and publishes changes. *gitoperator.Operator
// implements it.
type Publisher interface {
	CommitAndPush(ctx context.Context, message string) (*gitoperator.CommitResult, error)
	CommitAndCreatePR(ctx context.Context, message, title, body, base string) (*gitoperator.PullRequestResult, error)
	Trunk() string
}

// Components are the collaborators an Orchestrator drives. All are
// required.
type Components struct {
	Oracle    oracle.Interface
	Indexer   Indexer
	Planner   Planner
	Diffs     DiffGenerator
	Applier   Applier
	Tester    Tester
	Lock      Locker
	Publisher Publisher
}

// Timeouts bound each external call. Zero means no bound.
type Timeouts struct {
	Oracle  time.Duration
	Apply   time.Duration
	Git     time.Duration
	Hosting time.Duration
}

// Orchestrator drives each event through the pipeline and reports the
// result back to the channel it came from.
type Orchestrator struct {
	c        Components
	poster   poster.Interface
	dedup    *dedup.Deduplicator
	mode     string
	timeouts Timeouts
	now      func() time.Time

	// mu guards closed and the wg.Add calls against Shutdown.
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPoster sets where progress messages and reports go. The default
// writes them to the log.
func WithPoster(p poster.Interface) Option {
	return func(o *Orchestrator) { o.poster = p }
}

// WithDedup replaces the default deduplicator.
func WithDedup(d *dedup.Deduplicator) Option {
	return func(o *Orchestrator) { o.dedup = d }
}

// WithPublishMode selects ModePR or ModeDirect.
func WithPublishMode(mode string) Option {
	return func(o *Orchestrator) { o.mode = mode }
}

// WithTimeouts bounds the oracle, apply, git and hosting calls.
func WithTimeouts(t Timeouts) Option {
	return func(o *Orchestrator) { o.timeouts = t }
}

// New creates an Orchestrator.
func New(c Components, opts ...Option) (*Orchestrator, error) {
	switch {
	case c.Oracle == nil:
		return nil, errors.New("oracle cannot be nil")
	case c.Indexer == nil:
		return nil, errors.New("indexer cannot be nil")
	case c.Planner == nil:
		return nil, errors.New("planner cannot be nil")
	case c.Diffs == nil:
		return nil, errors.New("diff generator cannot be nil")
	case c.Applier == nil:
		return nil, errors.New("applier cannot be nil")
	case c.Tester == nil:
		return nil, errors.New("tester cannot be nil")
	case c.Lock == nil:
		return nil, errors.New("lock cannot be nil")
	case c.Publisher == nil:
		return nil, errors.New("publisher cannot be nil")
	}

	o := &Orchestrator{
		c:      c,
		poster: poster.Log{},
		mode:   ModePR,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.mode != ModePR && o.mode != ModeDirect {
		return nil, fmt.Errorf("unknown publish mode %q", o.mode)
	}
	if o.dedup == nil {
		o.dedup = dedup.New()
	}
	return o, nil
}

// Handle schedules ev for processing and returns immediately. It returns
// false when ev was already seen or the orchestrator is shutting down.
func (o *Orchestrator) Handle(ctx context.Context, ev Event) bool {
	log := clog.FromContext(ctx).With("event_id", ev.ID)
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		log.Warn("Dropping event received during shutdown")
		return false
	}
	if o.dedup.IsDuplicate(ev.ID) {
		duplicatesCounter.Inc()
		log.Info("Dropping duplicate event")
		return false
	}

	ctx = context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.Process(ctx, ev)
	}()
	return true
}

// Shutdown stops accepting events and waits for in-flight runs to finish
// or for ctx to be done.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Process runs ev through the pipeline synchronously, posts exactly one
// report for it and returns the outcome.
func (o *Orchestrator) Process(ctx context.Context, ev Event) *Outcome {
	start := o.now()
	ctx, span := startSpan(ctx, ev)
	ctx = clog.WithLogger(ctx, clog.FromContext(ctx).With("event_id", ev.ID, "channel", ev.ChannelID))

	r := &run{
		o:    o,
		ev:   ev,
		mark: start,
		out:  &Outcome{EventID: ev.ID, Reached: StateReceived},
	}
	ctx = r.execute(ctx)
	r.out.Duration = o.now().Sub(start)
	observe(r.out)
	endSpan(span, r.out)

	log := clog.FromContext(ctx).With("duration", r.out.Duration.String())
	if r.out.Failed() {
		log.With("stage", r.out.Stage, "error", r.out.Err).Warn("Event failed")
	} else {
		log.With("detail", r.out.Detail).Info("Event done")
	}

	if err := o.poster.PostMessage(ctx, ev.ChannelID, r.out.Report()); err != nil {
		log.With("error", err).Error("Failed to post report")
	}
	return r.out
}

func (o *Orchestrator) bound(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// run carries the state of one Process call.
type run struct {
	o    *Orchestrator
	ev   Event
	out  *Outcome
	mark time.Time
}

func (r *run) elapsed() time.Duration {
	now := r.o.now()
	d := now.Sub(r.mark)
	r.mark = now
	return d
}

func (r *run) step(stage string, state State) {
	r.out.Timeline = append(r.out.Timeline, Step{Stage: stage, State: state, Duration: r.elapsed()})
	r.out.Reached = state
}

func (r *run) fail(stage string, err error, output string) {
	r.out.Timeline = append(r.out.Timeline, Step{Stage: stage, State: StateFailed, Duration: r.elapsed(), Err: err})
	r.out.State = StateFailed
	r.out.Stage = stage
	r.out.Err = err
	r.out.Output = output
}

func (r *run) done(detail string) {
	r.out.State = StateDone
	r.out.Detail = detail
}

func (r *run) progress(ctx context.Context, text string) {
	if err := r.o.poster.PostMessage(ctx, r.ev.ChannelID, text); err != nil {
		clog.FromContext(ctx).With("error", err).Warn("Failed to post progress")
	}
}

// execute returns ctx enriched with the planned action for the final log.
func (r *run) execute(ctx context.Context) context.Context {
	idx, err := r.o.c.Indexer(ctx)
	if err != nil {
		r.fail(StageIndex, fmt.Errorf("building file index: %w", err), "")
		return ctx
	}

	pctx, cancel := r.o.bound(metrics.WithStage(ctx, StagePlan), r.o.timeouts.Oracle)
	action, err := r.o.c.Planner.Plan(pctx, r.ev.Text, idx)
	cancel()
	if err != nil {
		r.fail(StagePlan, err, "")
		return ctx
	}
	r.out.Action = action.Kind()
	ctx = clog.WithLogger(ctx, clog.FromContext(ctx).With("action", action.Kind()))
	r.step(StagePlan, StatePlanned)

	if c, ok := action.(planner.Chat); ok {
		r.chat(ctx, c)
		return ctx
	}

	release, err := r.o.c.Lock.Acquire(ctx)
	if err != nil {
		r.fail(StageLock, fmt.Errorf("acquiring git lock: %w", err), "")
		return ctx
	}
	defer release()
	r.step(StageLock, r.out.Reached)

	switch a := action.(type) {
	case planner.ModifyCode:
		r.modifyCode(ctx, a)
	case planner.TestCommitPush:
		if r.test(ctx) {
			r.publish(ctx, a.CommitMessage, "")
		}
	case planner.CommitPushOnly:
		r.commit(ctx, a.CommitMessage)
	default:
		r.fail(StagePlan, fmt.Errorf("unhandled action %q", action.Kind()), "")
	}
	return ctx
}

func (r *run) chat(ctx context.Context, c planner.Chat) {
	if c.Reason != "" {
		clog.FromContext(ctx).With("reason", c.Reason).Info("Answering as chat")
	}
	cctx, cancel := r.o.bound(metrics.WithStage(ctx, StageChat), r.o.timeouts.Oracle)
	defer cancel()
	answer, err := r.o.c.Oracle.Generate(cctx, r.ev.Text)
	if err != nil {
		r.fail(StageChat, fmt.Errorf("answering chat: %w", err), "")
		return
	}
	r.step(StageChat, StateAnswered)
	r.done(strings.TrimSpace(answer))
}

func (r *run) modifyCode(ctx context.Context, a planner.ModifyCode) {
	r.progress(ctx, fmt.Sprintf("✏️ modifying %s...", a.TargetFile))

	dctx, cancel := r.o.bound(metrics.WithStage(ctx, StageDiff), r.o.timeouts.Oracle)
	doc, err := r.o.c.Diffs.Generate(dctx, a.TargetFile, a.Instruction)
	cancel()
	if err != nil {
		r.fail(StageDiff, err, "")
		return
	}
	r.step(StageDiff, StateDiffGenerated)

	v, err := diffgen.Validate(doc, diffgen.WithAllowedPaths(a.TargetFile))
	if err != nil {
		r.fail(StageValidate, err, doc.Response)
		return
	}
	r.step(StageValidate, StateDiffValidated)

	actx, cancel := r.o.bound(ctx, r.o.timeouts.Apply)
	err = r.o.c.Applier.Apply(actx, v)
	cancel()
	if err != nil {
		var ae *patchapply.ApplyError
		var output string
		if errors.As(err, &ae) {
			output = ae.Output
		}
		r.fail(StageApply, err, output)
		return
	}
	r.step(StageApply, StatePatched)

	if r.test(ctx) {
		r.publish(ctx, a.CommitMessage, a.TargetFile)
	}
}

func (r *run) test(ctx context.Context) bool {
	r.progress(ctx, "🧪 running tests...")
	res, err := r.o.c.Tester.Run(ctx)
	if err != nil {
		var output string
		if res != nil {
			r.out.Test = res
			output = res.Output
		}
		r.fail(StageTest, fmt.Errorf("running tests: %w", err), output)
		return false
	}
	r.out.Test = res
	if !res.Success {
		r.fail(StageTest, fmt.Errorf("%w (exit code %d)", ErrTestsFailed, res.ExitCode), res.Output)
		return false
	}
	r.step(StageTest, StateTested)
	return true
}

func (r *run) publish(ctx context.Context, message, target string) {
	if r.o.mode == ModeDirect {
		r.commit(ctx, message)
		return
	}
	r.progress(ctx, "🚀 opening pull request...")

	pctx, cancel := r.o.bound(ctx, r.o.timeouts.Git+r.o.timeouts.Hosting)
	defer cancel()
	res, err := r.o.c.Publisher.CommitAndCreatePR(pctx, message, "🤖 "+message, r.pullRequestBody(target), r.o.c.Publisher.Trunk())
	if res != nil && res.Status == gitoperator.StatusOpened {
		r.out.Branch = res.Branch
		r.out.PullRequestURL = res.URL
		r.out.MergeStatus = res.MergeStatus
		r.step(StagePR, StatePROpened)
		if err != nil {
			clog.FromContext(ctx).With("error", err).Warn("Pull request opened with errors")
			r.out.Warning = err.Error()
		}
		r.done(fmt.Sprintf("opened pull request #%d from %s", res.Number, res.Branch))
		return
	}
	if err != nil {
		r.fail(StagePR, err, operationOutput(err))
		return
	}
	r.step(StagePR, r.out.Reached)
	r.done("no changes to commit")
}

func (r *run) commit(ctx context.Context, message string) {
	r.progress(ctx, fmt.Sprintf("📦 committing to %s...", r.o.c.Publisher.Trunk()))

	gctx, cancel := r.o.bound(ctx, r.o.timeouts.Git)
	defer cancel()
	res, err := r.o.c.Publisher.CommitAndPush(gctx, message)
	if err != nil {
		r.fail(StageCommit, err, operationOutput(err))
		return
	}
	r.out.Branch = res.Branch
	if res.Status == gitoperator.StatusNoChanges {
		r.step(StageCommit, r.out.Reached)
		r.done("no changes to commit")
		return
	}
	r.step(StageCommit, StateCommitted)
	r.done(fmt.Sprintf("committed %s to %s", shortHash(res.Head), res.Branch))
}

func (r *run) pullRequestBody(target string) string {
	var sb strings.Builder
	sb.WriteString("Automated change requested in chat.\n\n")
	if target != "" {
		fmt.Fprintf(&sb, "Modified file: `%s`\n", target)
	}
	if t := r.out.Test; t != nil {
		fmt.Fprintf(&sb, "Tests: passed in %s\n", t.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(&sb, "\nRequest:\n> %s\n", strings.ReplaceAll(strings.TrimSpace(r.ev.Text), "\n", "\n> "))
	return sb.String()
}

func operationOutput(err error) string {
	var oe *gitoperator.OperationError
	if errors.As(err, &oe) {
		return oe.Output
	}
	return ""
}

func shortHash(h string) string {
	if len(h) > 7 {
		return h[:7]
	}
	return h
}
