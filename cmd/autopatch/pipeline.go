/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"chainguard.dev/autopatch/agents/metrics"
	"chainguard.dev/autopatch/agents/oracle"
	"chainguard.dev/autopatch/agents/planner"
	"chainguard.dev/autopatch/chatops/dedup"
	"chainguard.dev/autopatch/chatops/orchestrator"
	"chainguard.dev/autopatch/chatops/poster"
	"chainguard.dev/autopatch/codechange/diffgen"
	"chainguard.dev/autopatch/codechange/patchapply"
	"chainguard.dev/autopatch/codechange/testrunner"
	"chainguard.dev/autopatch/config"
	"chainguard.dev/autopatch/gitops/credentials"
	"chainguard.dev/autopatch/gitops/gitlock"
	"chainguard.dev/autopatch/gitops/gitoperator"
	"chainguard.dev/autopatch/gitops/gitsign"
	"chainguard.dev/autopatch/gitops/hosting"
	"chainguard.dev/autopatch/workspace/fileindex"
	"cloud.google.com/go/storage"
	"github.com/chainguard-dev/clog"
	"google.golang.org/api/option"
)

const meterName = "chainguard.dev/autopatch"

type pipeline struct {
	orch *orchestrator.Orchestrator
	lock *gitlock.Manager
}

// newPipeline wires every component from cfg. A nil post logs messages.
func newPipeline(ctx context.Context, cfg *config.Config, post poster.Interface) (*pipeline, error) {
	root, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("resolving WORK_DIR: %w", err)
	}
	s, err := cfg.Settings(root)
	if err != nil {
		return nil, err
	}

	o, err := newOracle(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pl, err := planner.New(o)
	if err != nil {
		return nil, err
	}
	gen, err := diffgen.New(o, root)
	if err != nil {
		return nil, err
	}

	var applyOpts []patchapply.Option
	creds, err := cfg.GoogleCredentials()
	if err != nil {
		return nil, err
	}
	if ar, err := newArchiver(ctx, cfg.DiffArchive, root, creds); err != nil {
		return nil, err
	} else if ar != nil {
		applyOpts = append(applyOpts, patchapply.WithArchiver(ar))
	}
	applier, err := patchapply.New(root, applyOpts...)
	if err != nil {
		return nil, err
	}

	runner, err := testrunner.New(root, testrunner.WithCommand(s.TestCommand), testrunner.WithTimeout(cfg.TestTimeout))
	if err != nil {
		return nil, err
	}
	lock, err := gitlock.New(root)
	if err != nil {
		return nil, err
	}
	op, err := newOperator(ctx, cfg, root, s.StageExclude)
	if err != nil {
		return nil, err
	}

	opts := []orchestrator.Option{
		orchestrator.WithDedup(dedup.New(dedup.WithTTL(cfg.DedupTTL))),
		orchestrator.WithPublishMode(cfg.PublishMode),
		orchestrator.WithTimeouts(orchestrator.Timeouts{
			Oracle:  cfg.OracleTimeout,
			Apply:   cfg.ApplyTimeout,
			Git:     cfg.GitTimeout,
			Hosting: cfg.HostingTimeout,
		}),
	}
	if post != nil {
		opts = append(opts, orchestrator.WithPoster(post))
	}
	orch, err := orchestrator.New(orchestrator.Components{
		Oracle: o,
		Indexer: func(ctx context.Context) (fileindex.Index, error) {
			// Re-read so edits to the settings file apply to the next event.
			s, err := cfg.Settings(root)
			if err != nil {
				return nil, err
			}
			return fileindex.Build(ctx, root, fileindex.WithExtensions(s.Extensions...), fileindex.WithIgnoreDirs(s.IgnoreDirs...))
		},
		Planner:   pl,
		Diffs:     gen,
		Applier:   applier,
		Tester:    runner,
		Lock:      lock,
		Publisher: op,
	}, opts...)
	if err != nil {
		return nil, err
	}
	return &pipeline{orch: orch, lock: lock}, nil
}

func newOracle(ctx context.Context, cfg *config.Config) (oracle.Interface, error) {
	creds, err := cfg.GoogleCredentials()
	if err != nil {
		return nil, err
	}
	gm := metrics.NewGenAI(meterName)
	gm.SetAttributeEnricher(metrics.StageEnricher)

	o, err := oracle.New(ctx, cfg.Model,
		oracle.WithProject(cfg.GCPProjectID),
		oracle.WithRegion(cfg.GCPRegion),
		oracle.WithCredentialsJSON(creds),
		oracle.WithAPIKey(cfg.OpenAIAPIKey),
		oracle.WithMetrics(gm),
	)
	if err != nil {
		return nil, fmt.Errorf("creating oracle: %w", err)
	}
	return oracle.WithRateLimit(o, cfg.OracleRateLimit, cfg.OracleBurst), nil
}

// newArchiver maps DIFF_ARCHIVE to an Archiver: "" disables archiving,
// "local" keeps the last diff under .git and gs://bucket/prefix uploads it.
func newArchiver(ctx context.Context, spec, root string, creds []byte) (patchapply.Archiver, error) {
	switch {
	case spec == "":
		return nil, nil
	case spec == "local":
		return patchapply.NewLocalArchiver(root), nil
	case strings.HasPrefix(spec, "gs://"):
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(spec, "gs://"), "/")
		if bucket == "" {
			return nil, fmt.Errorf("DIFF_ARCHIVE %q names no bucket", spec)
		}
		var opts []option.ClientOption
		if len(creds) > 0 {
			opts = append(opts, option.WithCredentialsJSON(creds))
		}
		client, err := storage.NewClient(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating storage client: %w", err)
		}
		return patchapply.NewGCSArchiver(client, bucket, prefix), nil
	}
	return nil, fmt.Errorf("unsupported DIFF_ARCHIVE %q (want \"\", local or gs://bucket/prefix)", spec)
}

func newOperator(ctx context.Context, cfg *config.Config, root string, exclude []string) (*gitoperator.Operator, error) {
	ts, err := cfg.TokenSource()
	if err != nil {
		return nil, err
	}
	opts := []gitoperator.Option{
		gitoperator.WithRemote(cfg.RemoteURL),
		gitoperator.WithTrunk(cfg.Trunk),
		gitoperator.WithIdentity(cfg.CommitName, cfg.CommitEmail),
		gitoperator.WithAutoMerge(cfg.AutoMerge),
		gitoperator.WithStageExclude(exclude...),
	}
	if ts != nil {
		opts = append(opts, gitoperator.WithTokenSource(ts))
	}

	if cfg.PublishMode == config.PublishPR {
		owner, repo, err := hosting.ParseRemote(cfg.RemoteURL)
		if err != nil {
			return nil, err
		}
		var hopts []hosting.Option
		if cfg.GitHubAPIURL != "" {
			gql := cfg.GitHubGraphQLURL
			if gql == "" {
				// GitHub Enterprise serves REST under /api/v3 and GraphQL at /api/graphql.
				gql = strings.TrimSuffix(strings.TrimSuffix(cfg.GitHubAPIURL, "/"), "/v3") + "/graphql"
			}
			hopts = append(hopts, hosting.WithEnterpriseURLs(cfg.GitHubAPIURL, gql))
		}
		var hc *http.Client
		if ts != nil {
			hc = credentials.HTTPClient(ts)
		}
		h, err := hosting.New(hc, owner, repo, hopts...)
		if err != nil {
			return nil, fmt.Errorf("creating hosting client: %w", err)
		}
		opts = append(opts, gitoperator.WithHosting(h))
	}

	if cfg.SignCommits {
		signer, err := gitsign.NewSigner(ctx, gitsign.PublicGood)
		if err != nil {
			return nil, fmt.Errorf("creating commit signer: %w", err)
		}
		clog.InfoContextf(ctx, "Signing commits with Sigstore")
		opts = append(opts, gitoperator.WithSigner(signer))
	}

	return gitoperator.New(root, opts...)
}
