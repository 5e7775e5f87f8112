/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

import (
	"fmt"
	"maps"
	"slices"
)

// literal only accepts untyped string constants at call sites, which keeps
// runtime data out of the template and the literal bindings.
type literal string

// Prompt is an immutable template with named {{placeholders}}. Every Bind
// method returns a new Prompt.
type Prompt struct {
	template string
	values   map[string]*string
}

// New parses template and records its placeholders.
func New(template literal) (*Prompt, error) {
	values := make(map[string]*string)
	if _, err := walkTemplate(string(template), func(name string) (string, error) {
		values[name] = nil
		return "", nil
	}); err != nil {
		return nil, err
	}
	return &Prompt{template: string(template), values: values}, nil
}

// MustNew is New for package-level templates; it panics on a malformed
// template.
func MustNew(template literal) *Prompt {
	p, err := New(template)
	if err != nil {
		panic(err)
	}
	return p
}

// Placeholders returns the sorted placeholder names.
func (p *Prompt) Placeholders() []string {
	return slices.Sorted(maps.Keys(p.values))
}

// BindLiteral binds a developer-supplied constant.
func (p *Prompt) BindLiteral(name string, value literal) (*Prompt, error) {
	return p.bind(name, string(value), nil)
}

// BindXML binds data rendered with encoding/xml. Use it for untrusted text:
// markup in the data is escaped (or wrapped in CDATA when the field says so)
// so it cannot close the surrounding element.
func (p *Prompt) BindXML(name string, data any) (*Prompt, error) {
	v, err := xmlValue(data)
	return p.bind(name, v, err)
}

// BindJSON binds data rendered as indented JSON.
func (p *Prompt) BindJSON(name string, data any) (*Prompt, error) {
	v, err := jsonValue(data)
	return p.bind(name, v, err)
}

// BindYAML binds data rendered as YAML.
func (p *Prompt) BindYAML(name string, data any) (*Prompt, error) {
	v, err := yamlValue(data)
	return p.bind(name, v, err)
}

func (p *Prompt) bind(name, value string, renderErr error) (*Prompt, error) {
	current, exists := p.values[name]
	switch {
	case !exists:
		return nil, fmt.Errorf("binding %q not found in template", name)
	case current != nil:
		return nil, fmt.Errorf("binding %q already bound", name)
	case renderErr != nil:
		return nil, fmt.Errorf("binding %q: %w", name, renderErr)
	}

	next := &Prompt{template: p.template, values: maps.Clone(p.values)}
	next.values[name] = &value
	return next, nil
}

// Build renders the prompt. Bound values are substituted in a single pass,
// so placeholders appearing inside bound data are left untouched.
func (p *Prompt) Build() (string, error) {
	return walkTemplate(p.template, func(name string) (string, error) {
		v := p.values[name]
		if v == nil {
			return "", fmt.Errorf("unbound placeholder: %s", name)
		}
		return *v, nil
	})
}
