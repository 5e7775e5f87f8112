/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package diffgen

import (
	"regexp"
	"strconv"
	"strings"
)

// ExtractUnifiedDiff pulls the first unified diff out of a model response.
// Prose and markdown fences around the diff are dropped, and the result is
// cut at the next top-level file header, either "diff --git" or a
// "--- "/"+++ " pair outside a hunk, so that exactly one document remains. It returns "" when the response holds no diff.
func ExtractUnifiedDiff(raw string) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	start := -1
	for i, l := range lines {
		if strings.HasPrefix(l, "diff --git ") || isFileHeader(lines, i) {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}

	end := len(lines)
	var h hunk
	seenHunk := false
	for i := start + 1; i < len(lines); i++ {
		l := lines[i]
		if h.active() {
			if l != "" && !strings.ContainsRune(" +-\\", rune(l[0])) {
				end = i
				break
			}
			h.consume(l)
			continue
		}
		if strings.HasPrefix(l, "diff --git ") || strings.HasPrefix(l, "```") || !isDiffLine(l) {
			end = i
			break
		}
		if seenHunk && isFileHeader(lines, i) {
			end = i
			break
		}
		if strings.HasPrefix(l, "@@ ") {
			h = parseHunk(l)
			seenHunk = true
		}
	}

	body := lines[start:end]
	for len(body) > 0 && strings.TrimSpace(body[len(body)-1]) == "" {
		body = body[:len(body)-1]
	}
	if len(body) == 0 {
		return ""
	}
	return strings.Join(body, "\n") + "\n"
}

var hunkRange = regexp.MustCompile(`^@@ -\d+(?:,(\d+))? \+\d+(?:,(\d+))? @@`)

// hunk tracks the old and new lines still owed to the current hunk.
type hunk struct {
	old, new int
}

// parseHunk reads the line counts of a hunk header. An unreadable header
// yields an exhausted hunk.
func parseHunk(l string) hunk {
	m := hunkRange.FindStringSubmatch(l)
	if m == nil {
		return hunk{}
	}
	count := func(s string) int {
		if s == "" {
			return 1
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0
		}
		return n
	}
	return hunk{old: count(m[1]), new: count(m[2])}
}

func (h *hunk) active() bool { return h.old > 0 || h.new > 0 }

func (h *hunk) consume(l string) {
	switch {
	case l == "", l[0] == ' ':
		h.old--
		h.new--
	case l[0] == '-':
		h.old--
	case l[0] == '+':
		h.new--
	}
	h.old, h.new = max(h.old, 0), max(h.new, 0)
}

// isFileHeader reports whether lines[i] starts a "--- "/"+++ " pair.
func isFileHeader(lines []string, i int) bool {
	return strings.HasPrefix(lines[i], "--- ") && i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ ")
}

var headerPrefixes = []string{
	"diff ", "index ", "--- ", "+++ ", "@@ ",
	"new file mode ", "deleted file mode ", "old mode ", "new mode ",
	"similarity index ", "rename from ", "rename to ",
}

func isDiffLine(l string) bool {
	if l == "" {
		// git treats a bare newline in a hunk as an empty context line.
		return true
	}
	switch l[0] {
	case ' ', '+', '-', '\\':
		return true
	}
	for _, p := range headerPrefixes {
		if strings.HasPrefix(l, p) {
			return true
		}
	}
	return false
}
