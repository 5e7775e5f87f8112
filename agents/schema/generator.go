/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package schema derives JSON schemas for the structured responses we ask
// models to produce, so prompts can state the exact shape they expect.
package schema

import (
	"github.com/invopop/jsonschema"
)

var reflector = jsonschema.Reflector{
	RequiredFromJSONSchemaTags: true,
	ExpandedStruct:             true,
	DoNotReference:             true,
	// Responses may carry extra keys.
	AllowAdditionalProperties: true,
}

// For returns the schema of T with the $schema and $id keys removed, which
// only add noise to a prompt.
func For[T any]() *jsonschema.Schema {
	var zero T
	s := reflector.Reflect(&zero)
	s.Version = ""
	s.ID = ""
	return s
}
