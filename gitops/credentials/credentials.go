/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package credentials builds the token sources used for git pushes and
// hosting API calls: either a static personal access token or a GitHub
// App installation token that is refreshed as it expires.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"golang.org/x/oauth2"
)

// Static returns a TokenSource for a fixed access token.
func Static(token string) (oauth2.TokenSource, error) {
	if token == "" {
		return nil, errors.New("token cannot be empty")
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}), nil
}

// App is a GitHub App installation.
type App struct {
	ID             int64
	InstallationID int64
	PrivateKey     []byte
}

// Installation returns a TokenSource minting installation tokens for app.
func Installation(app App) (oauth2.TokenSource, error) {
	switch {
	case app.ID == 0:
		return nil, errors.New("app id cannot be empty")
	case app.InstallationID == 0:
		return nil, errors.New("installation id cannot be empty")
	case len(app.PrivateKey) == 0:
		return nil, errors.New("private key cannot be empty")
	}
	tr, err := ghinstallation.New(http.DefaultTransport, app.ID, app.InstallationID, app.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("creating installation transport: %w", err)
	}
	return &installationSource{tr: tr}, nil
}

type installationSource struct {
	tr *ghinstallation.Transport
}

// Token implements oauth2.TokenSource. The transport caches the token and
// refreshes it shortly before it expires.
func (s *installationSource) Token() (*oauth2.Token, error) {
	tok, err := s.tr.Token(context.Background())
	if err != nil {
		return nil, fmt.Errorf("fetching installation token: %w", err)
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}

// HTTPClient returns a client authenticating every request with a token
// from ts. ts is consulted on each request, so refreshing sources stay
// current.
func HTTPClient(ts oauth2.TokenSource) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: http.DefaultTransport},
	}
}
