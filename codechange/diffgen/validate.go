/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package diffgen

import (
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/waigani/diffparser"
)

// FormatError is returned when a diff is not a single well-formed unified
// diff touching only the permitted file.
type FormatError struct {
	Reason string
	Diff   string
}

func (e *FormatError) Error() string {
	return "invalid diff: " + e.Reason
}

// Validated is a diff that passed Validate. Validate is the only way to
// obtain one, so holding a *Validated proves the checks ran.
type Validated struct {
	text  string
	paths []string
}

// Text returns the diff, newline terminated.
func (v *Validated) Text() string { return v.text }

// Paths returns the repository-relative paths the diff touches.
func (v *Validated) Paths() []string { return slices.Clone(v.paths) }

type validateOptions struct {
	allowed []string
}

// Option configures Validate.
type Option func(*validateOptions)

// WithAllowedPaths rejects diffs touching any path outside paths.
func WithAllowedPaths(paths ...string) Option {
	return func(o *validateOptions) { o.allowed = append(o.allowed, paths...) }
}

var hunkHeader = regexp.MustCompile(`(?m)^@@ -\d+(?:,\d+)? \+\d+(?:,\d+)? @@`)

// Validate checks that doc holds exactly one parseable file diff with at
// least one hunk. It performs no file system access.
func Validate(doc *Document, opts ...Option) (*Validated, error) {
	o := &validateOptions{}
	for _, opt := range opts {
		opt(o)
	}

	var text string
	if doc != nil {
		text = doc.Raw
	}
	fail := func(format string, args ...any) (*Validated, error) {
		return nil, &FormatError{Reason: fmt.Sprintf(format, args...), Diff: text}
	}

	if strings.TrimSpace(text) == "" {
		return fail("empty diff")
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	lines := strings.Split(text, "\n")

	var headers [][2]string
	hasGitHeader := false
	for i, l := range lines {
		if strings.HasPrefix(l, "diff --git ") {
			hasGitHeader = true
		}
		if isFileHeader(lines, i) {
			headers = append(headers, [2]string{headerPath(l), headerPath(lines[i+1])})
		}
	}
	if !hasGitHeader && len(headers) == 0 {
		return fail("missing diff header")
	}
	wantFirst := "--- "
	if hasGitHeader {
		wantFirst = "diff --git "
	}
	if first := firstLine(lines); !strings.HasPrefix(first, wantFirst) {
		return fail("unexpected text before diff header: %q", first)
	}
	if !hunkHeader.MatchString(text) {
		return fail("missing hunk header (@@ -a,b +c,d @@)")
	}
	if len(headers) != 1 {
		return fail("expected exactly one file diff, found %d", len(headers))
	}

	parsed, err := parse(text, hasGitHeader, headers[0])
	if err != nil {
		return fail("unparseable diff: %v", err)
	}
	if len(parsed.Files) != 1 {
		return fail("expected exactly one file diff, found %d", len(parsed.Files))
	}
	if len(parsed.Files[0].Hunks) == 0 {
		return fail("file diff has no hunks")
	}

	var paths []string
	for _, p := range headers[0] {
		if p != "" && !slices.Contains(paths, p) {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return fail("diff names no file")
	}
	if len(o.allowed) > 0 {
		for _, p := range paths {
			if !slices.Contains(o.allowed, p) {
				return fail("diff touches %s, only %s may change", p, strings.Join(o.allowed, ", "))
			}
		}
	}

	return &Validated{text: text, paths: paths}, nil
}

// parse runs the diff through diffparser, which expects a "diff " line
// before each file. Diffs made of bare ---/+++ pairs get one synthesized,
// and bare empty lines are read as empty context lines the way git does.
func parse(text string, hasGitHeader bool, names [2]string) (*diffparser.Diff, error) {
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, l := range lines {
		if l == "" {
			lines[i] = " "
		}
	}
	text = strings.Join(lines, "\n")
	if !hasGitHeader {
		name := names[1]
		if name == "" {
			name = names[0]
		}
		text = fmt.Sprintf("diff --git a/%s b/%s\n%s", name, name, text)
	}
	return diffparser.Parse(text)
}

func firstLine(lines []string) string {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return l
		}
	}
	return ""
}

// headerPath returns the path named by a "--- " or "+++ " line, without
// the a/ or b/ prefix. /dev/null yields "".
func headerPath(line string) string {
	p := strings.TrimSpace(line[4:])
	if tab := strings.IndexByte(p, '\t'); tab >= 0 {
		p = p[:tab]
	}
	if p == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(p, "a/") || strings.HasPrefix(p, "b/") {
		p = p[2:]
	}
	return path.Clean(p)
}
