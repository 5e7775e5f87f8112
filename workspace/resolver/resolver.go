/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package resolver maps a file mention in free text to exactly one indexed
// path. It never guesses: ambiguous mentions are reported with every
// candidate.
package resolver

import (
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"

	"chainguard.dev/autopatch/workspace/fileindex"
)

// AmbiguityError is returned when a mention matches more than one indexed
// file by base name.
type AmbiguityError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("file name %q is ambiguous, candidates:\n- %s", e.Name, strings.Join(e.Candidates, "\n- "))
}

// ResolveExact extracts the first file-like token from nameOrText and
// returns the single indexed path it names. A token that is itself an
// indexed path wins; otherwise base names are compared. It returns "" and a
// nil error when nothing matches.
func ResolveExact(idx fileindex.Index, nameOrText string) (string, error) {
	token := ExtractToken(idx, nameOrText)
	if token == "" {
		return "", nil
	}

	if idx.Contains(token) {
		return token, nil
	}

	base := path.Base(token)
	var matches []string
	for _, p := range idx {
		if path.Base(p) == base {
			matches = append(matches, p)
		}
	}

	switch len(matches) {
	case 0:
		return "", nil
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguityError{Name: base, Candidates: matches}
	}
}

// ExtractToken returns the first file-like token in text whose extension is
// one of those present in idx, or "" when there is none.
func ExtractToken(idx fileindex.Index, text string) string {
	re := tokenPattern(idx.Extensions())
	if re == nil {
		return ""
	}
	m := re.FindString(text)
	if m == "" {
		return ""
	}
	return path.Clean(strings.TrimPrefix(m, "./"))
}

func tokenPattern(exts []string) *regexp.Regexp {
	if len(exts) == 0 {
		return nil
	}

	// Longest first so .jsx is preferred over .js.
	sorted := slices.Clone(exts)
	slices.SortFunc(sorted, func(a, b string) int { return len(b) - len(a) })

	alts := make([]string, 0, len(sorted))
	for _, e := range sorted {
		alts = append(alts, regexp.QuoteMeta(strings.TrimPrefix(e, ".")))
	}
	return regexp.MustCompile(`[\w./-]+\.(?:` + strings.Join(alts, "|") + `)\b`)
}
