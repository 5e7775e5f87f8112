/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package diffgen

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"chainguard.dev/autopatch/agents/oracle"
	"chainguard.dev/autopatch/agents/promptbuilder"
	"github.com/chainguard-dev/clog"
)

// Document is a candidate diff produced by the oracle. It must pass
// Validate before it can be applied.
type Document struct {
	// Target is the file the diff was requested for.
	Target string
	// Raw is the extracted diff text, or "" when the response held none.
	Raw string
	// Response is the unprocessed oracle output.
	Response string
}

var diffPrompt = promptbuilder.MustNew(`You are editing one file in a software repository.
Apply the instruction to the file below and answer with a unified diff only.

Requirements:
- Output a single unified diff against the file, with "--- a/<path>" and "+++ b/<path>" headers and "@@ -a,b +c,d @@" hunk headers.
- Use the path exactly as given. Do not touch any other file.
- Include at least three lines of unchanged context around each change.
- Do not add explanations, comments about the change or markdown outside the diff.
- If the instruction cannot be carried out, output nothing at all.

{{instruction}}

{{file}}
`)

type fileContents struct {
	XMLName xml.Name `xml:"file"`
	Path    string   `xml:"path,attr"`
	Content string   `xml:",cdata"`
}

type instructionText struct {
	XMLName xml.Name `xml:"instruction"`
	Text    string   `xml:",cdata"`
}

// Generator asks the oracle for a diff implementing an instruction.
type Generator struct {
	oracle oracle.Interface
	root   string
}

// New creates a Generator reading files from the working tree at root.
func New(o oracle.Interface, root string) (*Generator, error) {
	if o == nil {
		return nil, errors.New("oracle cannot be nil")
	}
	if root == "" {
		return nil, errors.New("root cannot be empty")
	}
	return &Generator{oracle: o, root: root}, nil
}

// Generate reads target and asks the oracle to apply instruction to it.
// The returned Document is unvalidated.
func (g *Generator) Generate(ctx context.Context, target, instruction string) (*Document, error) {
	content, err := os.ReadFile(filepath.Join(g.root, filepath.FromSlash(target)))
	if err != nil {
		return nil, fmt.Errorf("reading target file: %w", err)
	}

	prompt, err := buildPrompt(target, string(content), instruction)
	if err != nil {
		return nil, fmt.Errorf("building prompt: %w", err)
	}

	resp, err := g.oracle.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating diff: %w", err)
	}

	doc := &Document{Target: target, Raw: ExtractUnifiedDiff(resp), Response: resp}
	clog.FromContext(ctx).With("target", target, "bytes", len(doc.Raw)).Info("Extracted diff from oracle response")
	return doc, nil
}

func buildPrompt(target, content, instruction string) (string, error) {
	p, err := diffPrompt.BindXML("instruction", instructionText{Text: instruction})
	if err != nil {
		return "", err
	}
	if p, err = p.BindXML("file", fileContents{Path: target, Content: content}); err != nil {
		return "", err
	}
	return p.Build()
}
