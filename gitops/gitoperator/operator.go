/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gitoperator

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"chainguard.dev/autopatch/gitops/gitlock"
	"chainguard.dev/autopatch/gitops/hosting"
	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"golang.org/x/oauth2"
)

// Default committer identity.
const (
	DefaultName  = "AI-Auto-Bot"
	DefaultEmail = "ai-bot@automation.local"
)

// BranchPrefix starts every pull request branch name.
const BranchPrefix = "auto/"

const remoteName = "origin"

// Result statuses.
const (
	StatusCommitted = "committed"
	StatusOpened    = "opened"
	StatusNoChanges = "no_changes"
)

// Auto-merge outcomes recorded in PullRequestResult.MergeStatus.
const (
	MergeDisabled = "disabled"
	MergeEnabled  = "auto_merge_enabled"
	MergeFailed   = "auto_merge_failed"
)

// OperationError is returned when a git operation fails.
type OperationError struct {
	Op     string
	Output string
	Err    error
}

func (e *OperationError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("git %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("git %s: %v\n%s", e.Op, e.Err, e.Output)
}

func (e *OperationError) Unwrap() error { return e.Err }

func opError(op string, err error) error {
	return &OperationError{Op: op, Output: err.Error(), Err: err}
}

// CommitResult describes a direct push.
type CommitResult struct {
	Status string
	Branch string
	Head   string
}

// PullRequestResult describes a pull request publish. Branch, URL and
// Number are empty when Status is StatusNoChanges.
type PullRequestResult struct {
	Status      string
	Branch      string
	URL         string
	Number      int
	NodeID      string
	MergeStatus string
}

// Hosting opens pull requests. *hosting.Client implements it.
type Hosting interface {
	CreatePullRequest(ctx context.Context, title, body, head, base string) (*hosting.PullRequest, error)
	EnableAutoMerge(ctx context.Context, nodeID string) error
}

// Operator publishes the changes in one working tree.
type Operator struct {
	root        string
	remoteURL   string
	trunk       string
	tokenSource oauth2.TokenSource
	name        string
	email       string
	signer      git.Signer
	hosting     Hosting
	autoMerge   bool
	exclude     []string
	now         func() time.Time
}

// Option configures an Operator.
type Option func(*Operator)

// WithRemote sets the URL origin is configured to before every publish.
// Without it the existing origin is used as is.
func WithRemote(url string) Option {
	return func(o *Operator) { o.remoteURL = url }
}

// WithTrunk sets the branch direct pushes go to and the default pull
// request base. It defaults to "main".
func WithTrunk(branch string) Option {
	return func(o *Operator) {
		if branch != "" {
			o.trunk = branch
		}
	}
}

// WithTokenSource authenticates pushes with tokens from ts. The token is
// sent as basic auth and never written into the remote URL.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(o *Operator) { o.tokenSource = ts }
}

// WithIdentity overrides the committer name and email.
func WithIdentity(name, email string) Option {
	return func(o *Operator) {
		if name != "" {
			o.name = name
		}
		if email != "" {
			o.email = email
		}
	}
}

// WithSigner signs commits, for example with a gitsign signer.
func WithSigner(s git.Signer) Option {
	return func(o *Operator) { o.signer = s }
}

// WithHosting sets the client pull requests are opened with.
func WithHosting(h Hosting) Option {
	return func(o *Operator) { o.hosting = h }
}

// WithAutoMerge enables squash auto-merge on opened pull requests.
func WithAutoMerge(enabled bool) Option {
	return func(o *Operator) { o.autoMerge = enabled }
}

// WithStageExclude leaves paths matching any of the globs out of commits.
// A glob without a slash is also matched against base names.
// Tracked files that match are reset to HEAD when the branch is restored
// after a pull request, so local edits to them are lost.
func WithStageExclude(globs ...string) Option {
	return func(o *Operator) { o.exclude = append(o.exclude, globs...) }
}

// New creates an Operator for the repository at root.
func New(root string, opts ...Option) (*Operator, error) {
	if root == "" {
		return nil, errors.New("root cannot be empty")
	}
	o := &Operator{
		root:  root,
		trunk: "main",
		name:  DefaultName,
		email: DefaultEmail,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if _, err := git.PlainOpen(root); err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}
	return o, nil
}

// Trunk returns the branch direct pushes go to.
func (o *Operator) Trunk() string { return o.trunk }

// CommitAndPush commits every pending change and pushes it to trunk.
func (o *Operator) CommitAndPush(ctx context.Context, message string) (*CommitResult, error) {
	log := clog.FromContext(ctx)

	repo, err := o.open()
	if err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, opError("worktree", err)
	}

	changed, err := o.pending(wt)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		log.Info("Working tree is clean, nothing to commit")
		return &CommitResult{Status: StatusNoChanges, Branch: o.trunk}, nil
	}

	head, err := repo.Head()
	if err != nil {
		return nil, opError("rev-parse HEAD", err)
	}
	if !head.Name().IsBranch() {
		return nil, &OperationError{Op: "push", Output: "HEAD is detached", Err: errors.New("detached HEAD")}
	}

	hash, err := o.commit(wt, changed, message)
	if err != nil {
		return nil, err
	}

	spec := gitconfig.RefSpec(fmt.Sprintf("%s:%s", head.Name(), plumbing.NewBranchReferenceName(o.trunk)))
	if err := o.push(ctx, repo, spec); err != nil {
		return nil, err
	}

	log.With("head", hash.String(), "branch", o.trunk, "files", len(changed)).Info("Pushed commit")
	return &CommitResult{Status: StatusCommitted, Branch: o.trunk, Head: hash.String()}, nil
}

// CommitAndCreatePR commits every pending change on a fresh auto/<timestamp>
// branch, pushes only that branch and opens a pull request against base.
// The original branch is checked out again before returning.
//
// If enabling auto-merge fails, the opened pull request is returned along
// with the error.
func (o *Operator) CommitAndCreatePR(ctx context.Context, message, title, body, base string) (_ *PullRequestResult, err error) {
	if o.hosting == nil {
		return nil, errors.New("no hosting client configured")
	}
	if base == "" {
		base = o.trunk
	}
	log := clog.FromContext(ctx)

	repo, err := o.open()
	if err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, opError("worktree", err)
	}

	changed, err := o.pending(wt)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		log.Info("Working tree is clean, not opening a pull request")
		return &PullRequestResult{Status: StatusNoChanges}, nil
	}

	head, err := repo.Head()
	if err != nil {
		return nil, opError("rev-parse HEAD", err)
	}

	branch, err := o.createBranch(repo, head.Hash())
	if err != nil {
		return nil, err
	}
	log = log.With("branch", branch)
	defer func() {
		if rerr := o.restore(repo, head); rerr != nil {
			log.With("error", rerr).Error("Failed to restore original branch")
			if err == nil {
				err = rerr
			}
		}
	}()

	if _, err := o.commit(wt, changed, message); err != nil {
		return nil, err
	}

	ref := plumbing.NewBranchReferenceName(branch)
	if err := o.push(ctx, repo, gitconfig.RefSpec(fmt.Sprintf("%s:%s", ref, ref))); err != nil {
		return nil, err
	}

	pr, err := o.hosting.CreatePullRequest(ctx, title, body, branch, base)
	if err != nil {
		return nil, fmt.Errorf("creating pull request: %w", err)
	}
	res := &PullRequestResult{
		Status:      StatusOpened,
		Branch:      branch,
		URL:         pr.URL,
		Number:      pr.Number,
		NodeID:      pr.NodeID,
		MergeStatus: MergeDisabled,
	}

	if o.autoMerge {
		if err := o.hosting.EnableAutoMerge(ctx, pr.NodeID); err != nil {
			res.MergeStatus = MergeFailed
			return res, fmt.Errorf("enabling auto-merge: %w", err)
		}
		res.MergeStatus = MergeEnabled
	}

	log.With("pr", res.URL).Info("Opened pull request")
	return res, nil
}

func (o *Operator) open() (*git.Repository, error) {
	repo, err := git.PlainOpen(o.root)
	if err != nil {
		return nil, opError("open", err)
	}
	if err := o.configureRemote(repo); err != nil {
		return nil, err
	}
	return repo, nil
}

func (o *Operator) configureRemote(repo *git.Repository) error {
	remote, err := repo.Remote(remoteName)
	switch {
	case errors.Is(err, git.ErrRemoteNotFound):
		if o.remoteURL == "" {
			return opError("remote", err)
		}
	case err != nil:
		return opError("remote", err)
	case o.remoteURL == "" || slices.Equal(remote.Config().URLs, []string{o.remoteURL}):
		return nil
	default:
		if err := repo.DeleteRemote(remoteName); err != nil {
			return opError("remote remove", err)
		}
	}

	if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: remoteName,
		URLs: []string{o.remoteURL},
	}); err != nil {
		return opError("remote add", err)
	}
	return nil
}

// pending returns the sorted paths with changes that belong in a commit.
func (o *Operator) pending(wt *git.Worktree) ([]string, error) {
	status, err := wt.Status()
	if err != nil {
		return nil, opError("status", err)
	}

	var changed []string
	for p, s := range status {
		if s.Staging == git.Unmodified && s.Worktree == git.Unmodified {
			continue
		}
		if o.excluded(p) {
			continue
		}
		changed = append(changed, p)
	}
	slices.Sort(changed)
	return changed, nil
}

func (o *Operator) excluded(p string) bool {
	if p == gitlock.MarkerName {
		return true
	}
	for _, glob := range o.exclude {
		if ok, _ := path.Match(glob, p); ok {
			return true
		}
		if !strings.Contains(glob, "/") {
			if ok, _ := path.Match(glob, path.Base(p)); ok {
				return true
			}
		}
	}
	return false
}

func (o *Operator) commit(wt *git.Worktree, paths []string, message string) (plumbing.Hash, error) {
	status, err := wt.Status()
	if err != nil {
		return plumbing.ZeroHash, opError("status", err)
	}
	for _, p := range paths {
		if status.File(p).Worktree == git.Deleted {
			if _, err := wt.Remove(p); err != nil {
				return plumbing.ZeroHash, opError("rm "+p, err)
			}
			continue
		}
		if _, err := wt.Add(p); err != nil {
			return plumbing.ZeroHash, opError("add "+p, err)
		}
	}

	sig := &object.Signature{Name: o.name, Email: o.email, When: o.now()}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author:    sig,
		Committer: sig,
		Signer:    o.signer,
	})
	if err != nil {
		return plumbing.ZeroHash, opError("commit", err)
	}
	return hash, nil
}

func (o *Operator) push(ctx context.Context, repo *git.Repository, spec gitconfig.RefSpec) error {
	auth, err := o.auth()
	if err != nil {
		return opError("push", err)
	}
	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitconfig.RefSpec{spec},
		Auth:       auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return opError("push", err)
	}
	return nil
}

func (o *Operator) auth() (transport.AuthMethod, error) {
	if o.tokenSource == nil {
		return nil, nil
	}
	token, err := o.tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("getting token: %w", err)
	}
	return &githttp.BasicAuth{
		Username: "unused-when-using-access-tokens",
		Password: token.AccessToken,
	}, nil
}

// BranchName returns the pull request branch name for t.
func BranchName(t time.Time) string {
	ts := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return BranchPrefix + strings.NewReplacer(":", "-", ".", "-").Replace(ts)
}

// createBranch points a new branch at hash and moves HEAD onto it without
// touching the working tree, so pending changes carry over.
func (o *Operator) createBranch(repo *git.Repository, hash plumbing.Hash) (string, error) {
	base := BranchName(o.now())
	name := base
	for i := 2; ; i++ {
		_, err := repo.Reference(plumbing.NewBranchReferenceName(name), false)
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			break
		}
		if err != nil {
			return "", opError("show-ref", err)
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}

	ref := plumbing.NewBranchReferenceName(name)
	if err := repo.Storer.SetReference(plumbing.NewHashReference(ref, hash)); err != nil {
		return "", opError("branch "+name, err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, ref)); err != nil {
		return "", opError("symbolic-ref HEAD", err)
	}
	return name, nil
}

// restore checks out the branch (or commit) HEAD pointed at before a pull
// request branch was created.
func (o *Operator) restore(repo *git.Repository, orig *plumbing.Reference) error {
	wt, err := repo.Worktree()
	if err != nil {
		return opError("worktree", err)
	}
	opts := &git.CheckoutOptions{Force: true}
	if orig.Name().IsBranch() {
		opts.Branch = orig.Name()
	} else {
		opts.Hash = orig.Hash()
	}
	if err := wt.Checkout(opts); err != nil {
		return opError("checkout", err)
	}
	return nil
}
