/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package result extracts structured JSON from free-form model responses.

Models asked for "JSON only" still wrap their answer in markdown fences,
prepend a sentence of prose, or emit slightly malformed JSON. The helpers in
this package peel those layers off in a fixed order:

 1. StripFences removes a surrounding ``` or ```json fence.
 2. ExtractObject takes the first balanced {...} object, ignoring braces
    that appear inside string literals.
 3. Repair hands anything that still fails to parse to jsonrepair.

Extract combines the three steps with json.Unmarshal:

	type plan struct {
		Action string `json:"action"`
	}

	p, err := result.Extract[plan]("Sure! {\"action\": \"chat\"}")
	if errors.Is(err, result.ErrNoObject) {
		// the model did not answer with an object at all
	}
*/
package result
