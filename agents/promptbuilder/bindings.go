/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

func xmlValue(data any) (string, error) {
	b, err := xml.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling XML: %w", err)
	}
	return string(b), nil
}

func jsonValue(data any) (string, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	return string(b), nil
}

func yamlValue(data any) (string, error) {
	b, err := yaml.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	return strings.TrimSuffix(string(b), "\n"), nil
}
