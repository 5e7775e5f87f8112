/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package promptbuilder assembles model prompts from developer-owned templates
and untrusted data, in the spirit of SQL prepared statements.

Templates and literal bindings only accept string constants, so request text,
file contents and other runtime data must go through an encoder:

	var tmpl = promptbuilder.MustNew(`Rewrite the file below.
	{{file}}
	Request: {{request}}`)

	p, err := tmpl.BindXML("file", sourceFile{Path: path, Content: src})
	if err != nil {
		return err
	}
	p, err = p.BindXML("request", requestText{Text: text})
	if err != nil {
		return err
	}
	prompt, err := p.Build()

Substitution is single pass: a bound value that itself contains {{name}}
is emitted verbatim rather than expanded.
*/
package promptbuilder
