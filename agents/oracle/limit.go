/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package oracle

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type limited struct {
	inner   Interface
	limiter *rate.Limiter
}

// WithRateLimit returns an Interface that waits for a token from a limiter
// allowing perSecond calls per second with the given burst before calling
// inner. A non-positive perSecond disables limiting.
func WithRateLimit(inner Interface, perSecond float64, burst int) Interface {
	if perSecond <= 0 {
		return inner
	}
	if burst < 1 {
		burst = 1
	}
	return &limited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Generate implements Interface.
func (l *limited) Generate(ctx context.Context, prompt string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}
	return l.inner.Generate(ctx, prompt)
}
