/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrNoObject is returned when a response contains no JSON object.
var ErrNoObject = errors.New("no JSON object in response")

// StripFences removes a surrounding markdown code fence (``` or ```json)
// from a model response. Text without a fence is returned trimmed.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	// Drop the opening fence line, including any language tag.
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	if end := strings.LastIndex(text, "```"); end >= 0 {
		text = text[:end]
	}
	return strings.TrimSpace(text)
}

// ExtractObject returns the first balanced {...} substring of text. Braces
// inside JSON string literals are ignored. When the object is never closed,
// the remainder of text from the opening brace is returned with ok=false so
// callers may attempt a repair.
func ExtractObject(text string) (obj string, ok bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return text[start:], false
}

// Repair attempts to turn almost-JSON (trailing commas, single quotes,
// unquoted keys, truncated objects) into valid JSON.
func Repair(text string) (string, error) {
	if json.Valid([]byte(text)) {
		return text, nil
	}
	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return "", fmt.Errorf("repairing JSON: %w", err)
	}
	return repaired, nil
}

// Extract locates the first JSON object in a model response and unmarshals
// it into T. Markdown fences and surrounding prose are tolerated, and a
// malformed object gets one repair attempt before the error is returned.
func Extract[T any](responseText string) (T, error) {
	var out T

	obj, closed := ExtractObject(StripFences(responseText))
	if obj == "" {
		return out, ErrNoObject
	}

	if closed {
		if err := json.Unmarshal([]byte(obj), &out); err == nil {
			return out, nil
		}
	}

	repaired, err := Repair(obj)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return out, fmt.Errorf("unmarshaling repaired JSON: %w", err)
	}
	return out, nil
}
