/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gitoperator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"chainguard.dev/autopatch/gitops/gitlock"
	"chainguard.dev/autopatch/gitops/gittest"
	"chainguard.dev/autopatch/gitops/hosting"
	"chainguard.dev/autopatch/gitops/hosting/hostingtest"
	"github.com/google/go-cmp/cmp"
)

var fixedNow = time.Date(2026, 5, 4, 3, 2, 1, 500_000_000, time.UTC)

const wantBranch = "auto/2026-05-04T03-02-01-500Z"

func newOperator(t *testing.T, r *gittest.Repo, opts ...Option) *Operator {
	t.Helper()
	opts = append([]Option{WithRemote(r.Origin), WithTrunk(gittest.Trunk)}, opts...)
	op, err := New(r.Dir, opts...)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	op.now = func() time.Time { return fixedNow }
	return op
}

func testFiles() map[string]string {
	return map[string]string{
		"src/app.js":   "const x = 1;\n",
		"package.json": "{}\n",
	}
}

func TestBranchName(t *testing.T) {
	if got := BranchName(fixedNow.In(time.FixedZone("X", 3600))); got != wantBranch {
		t.Errorf("BranchName() = %q, want %q", got, wantBranch)
	}
}

func TestCommitAndPushNoChanges(t *testing.T) {
	r := gittest.NewRepo(t, testFiles())
	// The lock marker alone does not count as a change.
	gittest.WriteFile(t, r.Dir, gitlock.MarkerName, "2026-05-04T03:02:01Z\n")

	res, err := newOperator(t, r).CommitAndPush(context.Background(), "chore: nothing")
	if err != nil {
		t.Fatalf("CommitAndPush() = %v", err)
	}
	if res.Status != StatusNoChanges {
		t.Errorf("Status = %q, want %q", res.Status, StatusNoChanges)
	}
	if got := gittest.Commit(t, r.Origin, gittest.Trunk).Hash.String(); got != r.Head {
		t.Errorf("origin moved to %s", got)
	}
}

func TestCommitAndPush(t *testing.T) {
	r := gittest.NewRepo(t, testFiles())
	gittest.WriteFile(t, r.Dir, "src/app.js", "const x = 2;\n")
	gittest.WriteFile(t, r.Dir, "src/new.js", "new\n")
	gittest.WriteFile(t, r.Dir, "package.json", "{\"changed\":true}\n")
	gittest.WriteFile(t, r.Dir, gitlock.MarkerName, "2026-05-04T03:02:01Z\n")

	op := newOperator(t, r, WithStageExclude("*.json"))
	res, err := op.CommitAndPush(context.Background(), "fix: bump x")
	if err != nil {
		t.Fatalf("CommitAndPush() = %v", err)
	}
	if res.Status != StatusCommitted || res.Branch != gittest.Trunk {
		t.Errorf("CommitAndPush() = %+v", res)
	}

	c := gittest.Commit(t, r.Origin, gittest.Trunk)
	if c.Hash.String() != res.Head {
		t.Errorf("origin head = %s, want %s", c.Hash, res.Head)
	}
	if c.Message != "fix: bump x" || c.Author.Name != DefaultName || c.Author.Email != DefaultEmail {
		t.Errorf("commit = %q by %s <%s>", c.Message, c.Author.Name, c.Author.Email)
	}
	if got, _ := gittest.FileAt(t, c, "src/app.js"); got != "const x = 2;\n" {
		t.Errorf("src/app.js = %q", got)
	}
	if _, ok := gittest.FileAt(t, c, "src/new.js"); !ok {
		t.Error("src/new.js not committed")
	}
	if got, _ := gittest.FileAt(t, c, "package.json"); got != "{}\n" {
		t.Errorf("excluded package.json was committed: %q", got)
	}
	if _, ok := gittest.FileAt(t, c, gitlock.MarkerName); ok {
		t.Error("lock marker was committed")
	}
}

func TestCommitAndPushDeletion(t *testing.T) {
	r := gittest.NewRepo(t, testFiles())
	op := newOperator(t, r)
	if err := os.Remove(filepath.Join(r.Dir, "package.json")); err != nil {
		t.Fatal(err)
	}

	if _, err := op.CommitAndPush(context.Background(), "chore: drop package.json"); err != nil {
		t.Fatalf("CommitAndPush() = %v", err)
	}
	if _, ok := gittest.FileAt(t, gittest.Commit(t, r.Origin, gittest.Trunk), "package.json"); ok {
		t.Error("package.json still present on origin")
	}
}

func TestCommitAndPushBadRemote(t *testing.T) {
	r := gittest.NewRepo(t, testFiles())
	gittest.WriteFile(t, r.Dir, "src/app.js", "const x = 2;\n")

	op, err := New(r.Dir, WithRemote(t.TempDir()+"/missing.git"))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	_, err = op.CommitAndPush(context.Background(), "fix: x")
	var oe *OperationError
	if !errors.As(err, &oe) || oe.Op != "push" {
		t.Fatalf("CommitAndPush() error = %v, want push *OperationError", err)
	}
}

func TestCommitAndCreatePR(t *testing.T) {
	r := gittest.NewRepo(t, testFiles())
	gittest.WriteFile(t, r.Dir, "src/app.js", "const x = 2;\n")

	fake := &hostingtest.Fake{}
	op := newOperator(t, r, WithHosting(fake), WithAutoMerge(true))

	res, err := op.CommitAndCreatePR(context.Background(), "fix: bump x", "🤖 fix: bump x", "Modified src/app.js", "")
	if err != nil {
		t.Fatalf("CommitAndCreatePR() = %v", err)
	}

	want := &PullRequestResult{
		Status:      StatusOpened,
		Branch:      wantBranch,
		URL:         "https://github.com/acme/widgets/pull/1",
		Number:      1,
		NodeID:      "PR_1",
		MergeStatus: MergeEnabled,
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("CommitAndCreatePR() mismatch (-want +got):\n%s", diff)
	}
	wantReq := []hostingtest.Request{{Title: "🤖 fix: bump x", Body: "Modified src/app.js", Head: wantBranch, Base: gittest.Trunk}}
	if diff := cmp.Diff(wantReq, fake.Requests()); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"PR_1"}, fake.AutoMerged()); diff != "" {
		t.Errorf("auto-merge mismatch (-want +got):\n%s", diff)
	}

	// Only the branch was pushed.
	if got := gittest.Commit(t, r.Origin, gittest.Trunk).Hash.String(); got != r.Head {
		t.Errorf("origin trunk moved to %s", got)
	}
	c := gittest.Commit(t, r.Origin, wantBranch)
	if c == nil {
		t.Fatalf("branch %s missing on origin", wantBranch)
	}
	if got, _ := gittest.FileAt(t, c, "src/app.js"); got != "const x = 2;\n" {
		t.Errorf("src/app.js on branch = %q", got)
	}

	// The original branch is checked out again.
	if got := gittest.HeadBranch(t, r.Dir); got != gittest.Trunk {
		t.Errorf("HEAD = %s, want %s", got, gittest.Trunk)
	}
}

func TestCommitAndCreatePRBranchSuffix(t *testing.T) {
	r := gittest.NewRepo(t, testFiles())
	fake := &hostingtest.Fake{}
	op := newOperator(t, r, WithHosting(fake))

	gittest.WriteFile(t, r.Dir, "src/app.js", "const x = 2;\n")
	first, err := op.CommitAndCreatePR(context.Background(), "m", "t", "b", "")
	if err != nil {
		t.Fatalf("first CommitAndCreatePR() = %v", err)
	}
	gittest.WriteFile(t, r.Dir, "src/app.js", "const x = 3;\n")
	second, err := op.CommitAndCreatePR(context.Background(), "m", "t", "b", "")
	if err != nil {
		t.Fatalf("second CommitAndCreatePR() = %v", err)
	}

	if first.Branch != wantBranch || second.Branch != wantBranch+"-2" {
		t.Errorf("branches = %s, %s", first.Branch, second.Branch)
	}
	if first.MergeStatus != MergeDisabled {
		t.Errorf("MergeStatus = %q, want %q", first.MergeStatus, MergeDisabled)
	}
}

func TestCommitAndCreatePRNoChanges(t *testing.T) {
	r := gittest.NewRepo(t, testFiles())
	fake := &hostingtest.Fake{}
	op := newOperator(t, r, WithHosting(fake))

	res, err := op.CommitAndCreatePR(context.Background(), "m", "t", "b", "")
	if err != nil {
		t.Fatalf("CommitAndCreatePR() = %v", err)
	}
	if diff := cmp.Diff(&PullRequestResult{Status: StatusNoChanges}, res); diff != "" {
		t.Errorf("CommitAndCreatePR() mismatch (-want +got):\n%s", diff)
	}
	if len(fake.Requests()) != 0 {
		t.Error("pull request opened for a clean tree")
	}
	if slices.ContainsFunc(gittest.Branches(t, r.Dir), func(b string) bool { return b != gittest.Trunk }) {
		t.Errorf("unexpected branches: %v", gittest.Branches(t, r.Dir))
	}
}

func TestCommitAndCreatePRAutoMergeFailure(t *testing.T) {
	r := gittest.NewRepo(t, testFiles())
	gittest.WriteFile(t, r.Dir, "src/app.js", "const x = 2;\n")

	apiErr := &hosting.APIError{Op: "enable auto-merge", Body: "auto-merge is not allowed"}
	fake := &hostingtest.Fake{AutoMergeErr: apiErr}
	op := newOperator(t, r, WithHosting(fake), WithAutoMerge(true))

	res, err := op.CommitAndCreatePR(context.Background(), "m", "t", "b", "")
	var got *hosting.APIError
	if !errors.As(err, &got) {
		t.Fatalf("CommitAndCreatePR() error = %v, want *hosting.APIError", err)
	}
	if res == nil || res.URL == "" || res.MergeStatus != MergeFailed {
		t.Errorf("CommitAndCreatePR() = %+v, want the opened PR", res)
	}
	if got := gittest.HeadBranch(t, r.Dir); got != gittest.Trunk {
		t.Errorf("HEAD = %s, want %s", got, gittest.Trunk)
	}
}

func TestCommitAndCreatePRHostingFailure(t *testing.T) {
	r := gittest.NewRepo(t, testFiles())
	gittest.WriteFile(t, r.Dir, "src/app.js", "const x = 2;\n")

	fake := &hostingtest.Fake{CreateErr: &hosting.APIError{Op: "create pull request", StatusCode: 422, Body: "Validation Failed"}}
	op := newOperator(t, r, WithHosting(fake))

	res, err := op.CommitAndCreatePR(context.Background(), "m", "t", "b", "")
	var apiErr *hosting.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 422 {
		t.Fatalf("CommitAndCreatePR() error = %v, want 422 *hosting.APIError", err)
	}
	if res != nil {
		t.Errorf("CommitAndCreatePR() = %+v, want nil", res)
	}
	if got := gittest.HeadBranch(t, r.Dir); got != gittest.Trunk {
		t.Errorf("HEAD = %s, want %s", got, gittest.Trunk)
	}
}

func TestCommitAndCreatePRRequiresHosting(t *testing.T) {
	r := gittest.NewRepo(t, testFiles())
	if _, err := newOperator(t, r).CommitAndCreatePR(context.Background(), "m", "t", "b", ""); err == nil {
		t.Fatal("CommitAndCreatePR() without hosting succeeded")
	}
}

func TestExcluded(t *testing.T) {
	op := &Operator{exclude: []string{"*.json", "dist/*"}}
	tests := []struct {
		path string
		want bool
	}{
		{path: gitlock.MarkerName, want: true},
		{path: "package.json", want: true},
		{path: "config/app.json", want: true},
		{path: "dist/bundle.js", want: true},
		{path: "src/dist/bundle.js", want: false},
		{path: "src/app.js", want: false},
	}
	for _, tt := range tests {
		if got := op.excluded(tt.path); got != tt.want {
			t.Errorf("excluded(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
