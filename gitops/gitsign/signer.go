/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package gitsign produces keyless commit signatures with Sigstore. The
// signing identity comes from the ambient OIDC provider of the runtime
// environment.
package gitsign

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	gogit "github.com/go-git/go-git/v5"
	"github.com/sigstore/cosign/v2/pkg/providers"
	"github.com/sigstore/gitsign/pkg/fulcio"
	"github.com/sigstore/gitsign/pkg/gitsign"
	"github.com/sigstore/gitsign/pkg/rekor"
	"github.com/sigstore/sigstore/pkg/oauthflow"
	"golang.org/x/oauth2"

	// Only the Google provider is needed on Cloud Run.
	_ "github.com/sigstore/cosign/v2/pkg/providers/google"
)

// ErrNoProvider is returned when no ambient OIDC provider is available.
var ErrNoProvider = errors.New("no sigstore providers enabled")

// Config selects the Sigstore instance used for signing.
type Config struct {
	FulcioURL string
	RekorURL  string
	Issuer    string
	ClientID  string
	Audience  string
}

// PublicGood is the public Sigstore instance.
var PublicGood = Config{
	FulcioURL: "https://fulcio.sigstore.dev",
	RekorURL:  "https://rekor.sigstore.dev",
	Issuer:    "https://oauth2.sigstore.dev/auth",
	ClientID:  "sigstore",
	Audience:  "sigstore",
}

// NewSigner returns a go-git Signer that obtains a short-lived certificate
// from Fulcio and records signatures in Rekor.
func NewSigner(ctx context.Context, cfg Config) (gogit.Signer, error) {
	if !providers.Enabled(ctx) {
		return nil, ErrNoProvider
	}

	fc, err := fulcio.NewClient(cfg.FulcioURL, fulcio.OIDCOptions{
		ClientID:    cfg.ClientID,
		Issuer:      cfg.Issuer,
		TokenGetter: &ambientToken{ctx: ctx, audience: cfg.Audience},
	})
	if err != nil {
		return nil, fmt.Errorf("creating fulcio client: %w", err)
	}
	rc, err := rekor.NewWithOptions(ctx, cfg.RekorURL)
	if err != nil {
		return nil, fmt.Errorf("creating rekor client: %w", err)
	}
	return gitsign.NewSigner(ctx, fc, rc)
}

// ambientToken hands Fulcio the runtime's identity token instead of
// running an interactive OAuth flow.
type ambientToken struct {
	ctx      context.Context
	audience string
}

func (a *ambientToken) GetIDToken(_ *oidc.Provider, _ oauth2.Config) (*oauthflow.OIDCIDToken, error) {
	token, err := providers.Provide(a.ctx, a.audience)
	if err != nil {
		return nil, fmt.Errorf("provide token: %w", err)
	}
	return idToken(token)
}

func idToken(raw string) (*oauthflow.OIDCIDToken, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, errors.New("invalid jwt format")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	subject, err := oauthflow.SubjectFromUnverifiedToken(payload)
	if err != nil {
		return nil, fmt.Errorf("extract subject: %w", err)
	}
	return &oauthflow.OIDCIDToken{RawString: raw, Subject: subject}, nil
}
