/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package hosting talks to the code hosting API: pull requests are opened
// over REST and auto-merge is enabled over GraphQL.
package hosting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
	"github.com/shurcooL/githubv4"
)

// APIError is returned when the hosting API rejects a call. StatusCode is
// zero when the failure carried no HTTP status, as with GraphQL errors.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Body)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

// PullRequest identifies an opened pull request.
type PullRequest struct {
	Number int
	URL    string
	NodeID string
}

// Client opens pull requests against a single repository.
type Client struct {
	rest  *github.Client
	gql   *githubv4.Client
	owner string
	repo  string
}

// Option configures a Client.
type Option func(*Client) error

// WithEnterpriseURLs points the client at a GitHub Enterprise (or test)
// server. restURL is the REST API root and graphqlURL the GraphQL endpoint.
func WithEnterpriseURLs(restURL, graphqlURL string) Option {
	return func(c *Client) error {
		base, err := url.Parse(strings.TrimSuffix(restURL, "/") + "/")
		if err != nil {
			return fmt.Errorf("parsing REST URL: %w", err)
		}
		c.rest.BaseURL = base
		c.gql = githubv4.NewEnterpriseClient(graphqlURL, c.rest.Client())
		return nil
	}
}

// New creates a Client for owner/repo. httpClient must add authentication,
// for example an oauth2 client from the credentials package.
func New(httpClient *http.Client, owner, repo string, opts ...Option) (*Client, error) {
	if owner == "" {
		return nil, errors.New("owner cannot be empty")
	}
	if repo == "" {
		return nil, errors.New("repo cannot be empty")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	rest := github.NewClient(httpClient)
	c := &Client{
		rest:  rest,
		gql:   githubv4.NewClient(rest.Client()),
		owner: owner,
		repo:  repo,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Repository returns the owner/repo slug.
func (c *Client) Repository() string {
	return c.owner + "/" + c.repo
}

// CreatePullRequest opens a pull request merging head into base.
func (c *Client) CreatePullRequest(ctx context.Context, title, body, head, base string) (*PullRequest, error) {
	pr, resp, err := c.rest.PullRequests.Create(ctx, c.owner, c.repo, &github.NewPullRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
		Head:  github.Ptr(head),
		Base:  github.Ptr(base),
	})
	if err != nil {
		return nil, restError("create pull request", resp, err)
	}

	out := &PullRequest{
		Number: pr.GetNumber(),
		URL:    pr.GetHTMLURL(),
		NodeID: pr.GetNodeID(),
	}
	clog.FromContext(ctx).With("pr", out.URL).Info("Created pull request")
	return out, nil
}

// EnableAutoMerge turns on squash auto-merge for the pull request with the
// given GraphQL node id.
func (c *Client) EnableAutoMerge(ctx context.Context, nodeID string) error {
	if nodeID == "" {
		return &APIError{Op: "enable auto-merge", Body: "pull request has no node id"}
	}

	var m struct {
		EnablePullRequestAutoMerge struct {
			PullRequest struct {
				ID githubv4.ID
			}
		} `graphql:"enablePullRequestAutoMerge(input: $input)"`
	}
	method := githubv4.PullRequestMergeMethodSquash
	input := githubv4.EnablePullRequestAutoMergeInput{
		PullRequestID: githubv4.ID(nodeID),
		MergeMethod:   &method,
	}
	if err := c.gql.Mutate(ctx, &m, input, nil); err != nil {
		return &APIError{Op: "enable auto-merge", Body: err.Error()}
	}
	clog.FromContext(ctx).With("node_id", nodeID).Info("Enabled auto-merge")
	return nil
}

func restError(op string, resp *github.Response, err error) error {
	apiErr := &APIError{Op: op, Body: err.Error()}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		apiErr.Body = ghErr.Message
		for _, e := range ghErr.Errors {
			if e.Message != "" {
				apiErr.Body += ": " + e.Message
			}
		}
	}
	if resp != nil && resp.Response != nil {
		apiErr.StatusCode = resp.StatusCode
	}
	return apiErr
}
