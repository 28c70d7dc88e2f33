// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"fmt"
	"time"

	"github.com/google/crashtriage/pkg/backtrace"
	"github.com/google/crashtriage/pkg/config"
	"github.com/google/crashtriage/pkg/gdb"
)

const defaultTimeout = 120 * time.Second

// Config holds default option values; command line flags take precedence.
type Config struct {
	Debugger string `json:"debugger,omitempty" yaml:"debugger"`
	Signal   string `json:"signal,omitempty" yaml:"signal"`
	Suffix   string `json:"suffix,omitempty" yaml:"suffix"`
	// Per-run debugger timeout, e.g. "90s".
	Timeout     string `json:"timeout,omitempty" yaml:"timeout"`
	Parallel    bool   `json:"parallel,omitempty" yaml:"parallel"`
	Regex       string `json:"regex,omitempty" yaml:"regex"`
	SourceOnly  bool   `json:"source_only,omitempty" yaml:"source_only"`
	TopFrame    int    `json:"top_frame" yaml:"top_frame"`
	BottomFrame int    `json:"bottom_frame" yaml:"bottom_frame"`
	OneByGroup  bool   `json:"print_one_by_group,omitempty" yaml:"print_one_by_group"`
}

func defaultConfig() *Config {
	return &Config{
		Debugger:    gdb.DefaultDebugger,
		Signal:      gdb.DefaultSignal,
		Suffix:      gdb.DefaultSuffix,
		Timeout:     defaultTimeout.String(),
		TopFrame:    backtrace.DefaultTopFrame,
		BottomFrame: backtrace.DefaultBottomFrame,
	}
}

// loadConfig returns the defaults overridden by the file contents (if file is set).
func loadConfig(file string) (*Config, error) {
	cfg := defaultConfig()
	if file == "" {
		return cfg, nil
	}
	if err := config.LoadFile(file, cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.timeout(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) timeout() (time.Duration, error) {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return 0, fmt.Errorf("bad timeout %q: %w", cfg.Timeout, err)
	}
	return timeout, nil
}

func (cfg *Config) window() backtrace.Window {
	return backtrace.Window{
		TopFrame:    cfg.TopFrame,
		BottomFrame: cfg.BottomFrame,
		SourceOnly:  cfg.SourceOnly,
	}
}
