/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package settings loads the optional per-repository overrides stored in
// .autopatch.yaml at the root of the working tree.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the settings file at the working tree root.
const FileName = ".autopatch.yaml"

// Settings holds the repository-specific knobs of the pipeline.
type Settings struct {
	// TestCommand is run through `sh -c` to gate publishing.
	TestCommand string `yaml:"testCommand,omitempty"`

	// Extensions lists the file extensions (with the leading dot) that are
	// indexed and resolvable.
	Extensions []string `yaml:"extensions,omitempty"`

	// IgnoreDirs lists directory names skipped while indexing.
	IgnoreDirs []string `yaml:"ignoreDirs,omitempty"`

	// StageExclude lists glob patterns that are never staged for commit.
	StageExclude []string `yaml:"stageExclude,omitempty"`
}

// Defaults mirrors the behaviour for a Node.js project.
func Defaults() Settings {
	return Settings{
		TestCommand: "npm test",
		Extensions:  []string{".js"},
		IgnoreDirs:  []string{".git", "node_modules", "dist", "build"},
	}
}

// Load reads FileName from root and overlays every non-empty field onto base.
// A missing file is not an error.
func Load(root string, base Settings) (Settings, error) {
	data, err := os.ReadFile(filepath.Join(root, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return base, nil
	}
	if err != nil {
		return base, fmt.Errorf("reading %s: %w", FileName, err)
	}

	var override Settings
	if err := yaml.Unmarshal(data, &override); err != nil {
		return base, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	return base.merge(override), nil
}

func (s Settings) merge(o Settings) Settings {
	if o.TestCommand != "" {
		s.TestCommand = o.TestCommand
	}
	if len(o.Extensions) > 0 {
		s.Extensions = o.Extensions
	}
	if len(o.IgnoreDirs) > 0 {
		s.IgnoreDirs = o.IgnoreDirs
	}
	if len(o.StageExclude) > 0 {
		s.StageExclude = o.StageExclude
	}
	return s
}
