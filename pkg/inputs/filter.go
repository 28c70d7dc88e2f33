// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package inputs enumerates input files for the triage engines and dispatches
// per-file work over a bounded pool of workers.
package inputs

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/google/crashtriage/pkg/log"
)

// matchTimeout bounds a single match of a pathological pattern.
const matchTimeout = time.Second

// Filter selects files by base name.
// Patterns use ECMAScript syntax, so lookahead works: ^id(?!.*btfull).*$
type Filter struct {
	re *regexp2.Regexp
}

// NewFilter compiles pattern. An empty pattern matches every file.
func NewFilter(pattern string) (*Filter, error) {
	if pattern == "" {
		return &Filter{}, nil
	}
	re, err := regexp2.Compile(pattern, regexp2.ECMAScript)
	if err != nil {
		return nil, fmt.Errorf("bad file regex %q: %w", pattern, err)
	}
	re.MatchTimeout = matchTimeout
	return &Filter{re: re}, nil
}

// Match reports whether the base name of file matches.
// A match that hits the timeout counts as no match and is logged.
func (f *Filter) Match(file string) bool {
	if f == nil || f.re == nil {
		return true
	}
	ok, err := f.re.MatchString(filepath.Base(file))
	if err != nil {
		log.Logf(0, "skipping %v: regex %q: %v", file, f.re.String(), err)
		return false
	}
	return ok
}

func (f *Filter) String() string {
	if f == nil || f.re == nil {
		return ""
	}
	return f.re.String()
}
