/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package planner

import (
	"encoding/xml"

	"chainguard.dev/autopatch/agents/promptbuilder"
)

var classifyPrompt = promptbuilder.MustNew(`You route automation requests for a software repository.
Read the request and reply with exactly one JSON object and nothing else: no prose and no markdown.

Choose "action" from this closed set:
- "modify_code": the request asks to change, fix, add or refactor code in a file. Set "targetFile" to the file path from the list below and "instruction" to what must change.
- "test_commit_push": the request asks to run the tests and then commit or push existing changes.
- "commit_push": the request only asks to commit and/or push, with no tests and no edits.
- "chat": anything else, including questions and requests you cannot map to a file.

Rules:
- Only name a "targetFile" that appears in the file list.
- Write "commitMessage" in conventional commit style when you can infer one.
- Put a short justification in "reason".

The response must match this JSON schema:
{{schema}}

Repository files:
{{files}}

{{request}}
`)

type fileList struct {
	XMLName xml.Name `xml:"files"`
	Paths   []string `xml:"file"`
}

type requestText struct {
	XMLName xml.Name `xml:"request"`
	Text    string   `xml:",cdata"`
}
