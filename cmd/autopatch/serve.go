/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"chainguard.dev/autopatch/chatops/ingress"
	"chainguard.dev/autopatch/config"
	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownGrace = 30 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Receive chat events over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	p, err := newPipeline(ctx, cfg, nil)
	if err != nil {
		return err
	}
	// Nothing else runs against this working tree, so anything left
	// behind belongs to a previous process.
	if err := p.lock.Sweep(ctx); err != nil {
		return fmt.Errorf("sweeping stale locks: %w", err)
	}

	srv, err := ingress.New(p.orch, ingress.WithBotUserID(cfg.BotUserID))
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		clog.InfoContextf(ctx, "Serving chat events on port %d (model %s, publish mode %s)", cfg.Port, cfg.Model, cfg.PublishMode)
		return srv.Start(fmt.Sprintf(":%d", cfg.Port))
	})
	eg.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()

		clog.InfoContextf(ctx, "Shutting down, waiting up to %s for in-flight requests", shutdownGrace)
		return errors.Join(
			srv.Shutdown(sctx),
			metricsSrv.Shutdown(sctx),
			p.orch.Shutdown(sctx),
		)
	})
	return eg.Wait()
}
