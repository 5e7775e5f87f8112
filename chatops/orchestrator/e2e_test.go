/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"chainguard.dev/autopatch/agents/oracle/oracletest"
	"chainguard.dev/autopatch/agents/planner"
	"chainguard.dev/autopatch/chatops/orchestrator"
	"chainguard.dev/autopatch/chatops/poster/postertest"
	"chainguard.dev/autopatch/codechange/diffgen"
	"chainguard.dev/autopatch/codechange/patchapply"
	"chainguard.dev/autopatch/codechange/testrunner"
	"chainguard.dev/autopatch/gitops/gitlock"
	"chainguard.dev/autopatch/gitops/gitoperator"
	"chainguard.dev/autopatch/gitops/gittest"
	"chainguard.dev/autopatch/gitops/hosting/hostingtest"
	"chainguard.dev/autopatch/workspace/fileindex"
	"github.com/google/go-cmp/cmp"
)

const (
	planJSON = `{"action":"modify_code","targetFile":"app.js","instruction":"set x to 2","commitMessage":"fix: set x to 2"}`

	modelDiff = "Here you go:\n```diff\n" + `diff --git a/src/app.js b/src/app.js
--- a/src/app.js
+++ b/src/app.js
@@ -1,2 +1,2 @@
-const x = 1;
+const x = 2;
 module.exports = x;
` + "```\n"
)

type pipeline struct {
	repo    *gittest.Repo
	oracle  *oracletest.Fake
	hosting *hostingtest.Fake
	lock    *gitlock.Manager
	poster  *postertest.Recorder
	orch    *orchestrator.Orchestrator
}

func newPipeline(t *testing.T, testCommand string, responses ...string) *pipeline {
	t.Helper()
	repo := gittest.NewRepo(t, map[string]string{
		"src/app.js":   "const x = 1;\nmodule.exports = x;\n",
		"package.json": "{}\n",
	})
	p := &pipeline{
		repo:    repo,
		oracle:  oracletest.New(responses...),
		hosting: &hostingtest.Fake{},
		poster:  &postertest.Recorder{},
	}

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	pl, err := planner.New(p.oracle)
	must(err)
	gen, err := diffgen.New(p.oracle, repo.Dir)
	must(err)
	applier, err := patchapply.New(repo.Dir, patchapply.WithArchiver(patchapply.NewLocalArchiver(repo.Dir)))
	must(err)
	runner, err := testrunner.New(repo.Dir, testrunner.WithCommand(testCommand))
	must(err)
	p.lock, err = gitlock.New(repo.Dir)
	must(err)
	op, err := gitoperator.New(repo.Dir,
		gitoperator.WithRemote(repo.Origin),
		gitoperator.WithTrunk(gittest.Trunk),
		gitoperator.WithHosting(p.hosting),
		gitoperator.WithAutoMerge(true),
	)
	must(err)

	p.orch, err = orchestrator.New(orchestrator.Components{
		Oracle: p.oracle,
		Indexer: func(ctx context.Context) (fileindex.Index, error) {
			return fileindex.Build(ctx, repo.Dir, fileindex.WithExtensions(".js"))
		},
		Planner:   pl,
		Diffs:     gen,
		Applier:   applier,
		Tester:    runner,
		Lock:      p.lock,
		Publisher: op,
	}, orchestrator.WithPoster(p.poster))
	must(err)
	return p
}

func (p *pipeline) assertUnlocked(t *testing.T) {
	t.Helper()
	if _, held := p.lock.Held(); held {
		t.Error("git lock still held")
	}
	if _, err := os.Stat(p.lock.MarkerPath()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("lock marker still present: %v", err)
	}
}

func TestModifyCodeEndToEnd(t *testing.T) {
	p := newPipeline(t, "echo '# pass 3'", planJSON, modelDiff)

	out := p.orch.Process(context.Background(), orchestrator.Event{ID: "Ev1", ChannelID: "C1", Text: "please set x to 2 in app.js"})
	if out.State != orchestrator.StateDone {
		t.Fatalf("Process() = %s at %s: %v\n%s", out.State, out.Stage, out.Err, out.Output)
	}
	if !strings.HasPrefix(out.Branch, gitoperator.BranchPrefix) {
		t.Errorf("Branch = %q, want an %s branch", out.Branch, gitoperator.BranchPrefix)
	}
	if out.PullRequestURL != "https://github.com/acme/widgets/pull/1" {
		t.Errorf("PullRequestURL = %q", out.PullRequestURL)
	}

	reqs := p.hosting.Requests()
	if len(reqs) != 1 {
		t.Fatalf("pull requests = %v", reqs)
	}
	if reqs[0].Title != "🤖 fix: set x to 2" || reqs[0].Head != out.Branch || reqs[0].Base != gittest.Trunk {
		t.Errorf("pull request = %+v", reqs[0])
	}
	if diff := cmp.Diff([]string{"PR_1"}, p.hosting.AutoMerged()); diff != "" {
		t.Errorf("auto-merge mismatch (-want +got):\n%s", diff)
	}

	c := gittest.Commit(t, p.repo.Origin, out.Branch)
	if c == nil {
		t.Fatalf("branch %s not pushed", out.Branch)
	}
	if got, _ := gittest.FileAt(t, c, "src/app.js"); got != "const x = 2;\nmodule.exports = x;\n" {
		t.Errorf("pushed src/app.js = %q", got)
	}
	if got := gittest.Commit(t, p.repo.Origin, gittest.Trunk).Hash.String(); got != p.repo.Head {
		t.Errorf("trunk moved to %s", got)
	}
	if got := gittest.HeadBranch(t, p.repo.Dir); got != gittest.Trunk {
		t.Errorf("working tree left on %s", got)
	}
	p.assertUnlocked(t)

	if !strings.Contains(p.poster.Last(), "pull/1") {
		t.Errorf("report = %s", p.poster.Last())
	}
}

func TestFailingTestsEndToEnd(t *testing.T) {
	p := newPipeline(t, "echo 'not ok 1 adds'; exit 1", planJSON, modelDiff)

	out := p.orch.Process(context.Background(), orchestrator.Event{ID: "Ev1", ChannelID: "C1", Text: "set x to 2 in app.js"})
	if out.State != orchestrator.StateFailed || out.Stage != orchestrator.StageTest {
		t.Fatalf("Process() = %s at %q, want FAILED at test", out.State, out.Stage)
	}
	if out.Output != "not ok 1 adds\n" {
		t.Errorf("Output = %q", out.Output)
	}
	if diff := cmp.Diff([]string{gittest.Trunk}, gittest.Branches(t, p.repo.Origin)); diff != "" {
		t.Errorf("origin branches mismatch (-want +got):\n%s", diff)
	}
	if len(p.hosting.Requests()) != 0 {
		t.Errorf("opened pull requests: %v", p.hosting.Requests())
	}
	p.assertUnlocked(t)
}

func TestRejectedDiffEndToEnd(t *testing.T) {
	p := newPipeline(t, "true", planJSON, "I'm sorry, I can't make that change.")

	out := p.orch.Process(context.Background(), orchestrator.Event{ID: "Ev1", ChannelID: "C1", Text: "set x to 2 in app.js"})
	if out.Stage != orchestrator.StageValidate {
		t.Fatalf("Stage = %q, want %q", out.Stage, orchestrator.StageValidate)
	}
	var fe *diffgen.FormatError
	if !errors.As(out.Err, &fe) {
		t.Errorf("Err = %v, want *diffgen.FormatError", out.Err)
	}
	if got := gittest.ReadFile(t, p.repo.Dir, "src/app.js"); got != "const x = 1;\nmodule.exports = x;\n" {
		t.Errorf("src/app.js changed to %q", got)
	}
	if _, err := os.Stat(patchapply.NewLocalArchiver(p.repo.Dir).Path()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("a diff was archived: %v", err)
	}
	p.assertUnlocked(t)
}

func TestUnknownFileEndToEnd(t *testing.T) {
	p := newPipeline(t, "true", `{"action":"modify_code","targetFile":"missing.js"}`)

	out := p.orch.Process(context.Background(), orchestrator.Event{ID: "Ev1", Text: "edit missing.js"})
	var re *planner.ResolutionError
	if out.Stage != orchestrator.StagePlan || !errors.As(out.Err, &re) {
		t.Fatalf("Process() = %s at %q (%v), want a resolution failure at plan", out.State, out.Stage, out.Err)
	}
	if !strings.Contains(p.poster.Last(), "missing.js") {
		t.Errorf("report does not name the file:\n%s", p.poster.Last())
	}
}
