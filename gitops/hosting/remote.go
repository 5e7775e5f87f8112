/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package hosting

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseRemote extracts owner and repository from a git remote URL in
// either the https://host/owner/repo(.git) or git@host:owner/repo(.git)
// form.
func ParseRemote(remote string) (owner, repo string, err error) {
	var p string
	switch {
	case strings.Contains(remote, "://"):
		u, err := url.Parse(remote)
		if err != nil {
			return "", "", fmt.Errorf("parsing remote %q: %w", remote, err)
		}
		p = u.Path
	case strings.Contains(remote, ":"):
		p = remote[strings.Index(remote, ":")+1:]
	default:
		return "", "", fmt.Errorf("unrecognized remote %q", remote)
	}

	parts := strings.Split(strings.Trim(strings.TrimSuffix(p, ".git"), "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("remote %q does not name owner/repo", remote)
	}
	return parts[0], parts[1], nil
}
