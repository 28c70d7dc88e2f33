// Copyright 2017 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package config loads run configuration files.
// Files are JSON with optional "#" comment lines, or YAML if the name ends with .yaml/.yml.
// Unknown fields are an error in both formats.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

func LoadFile(filename string, cfg interface{}) error {
	if filename == "" {
		return fmt.Errorf("no config file specified")
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	switch filepath.Ext(filename) {
	case ".yaml", ".yml":
		return LoadYAML(data, cfg)
	default:
		return LoadData(data, cfg)
	}
}

var commentRe = regexp.MustCompile(`(^|\n)\s*#[^\n]*`)

func LoadData(data []byte, cfg interface{}) error {
	// Remove comment lines starting with #.
	data = commentRe.ReplaceAll(data, nil)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func LoadYAML(data []byte, cfg interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}
