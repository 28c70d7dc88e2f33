// Copyright 2016 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package log provides functionality similar to standard log package with some extensions:
//   - verbosity levels
//   - global verbosity setting that can be used by multiple packages
//   - ability to redirect all output (e.g. into a test log)
package log

import (
	"flag"
	"fmt"
	"io"
	golog "log"
	"os"
	"sync"
	"sync/atomic"
)

var (
	flagV     = flag.Int("vv", 0, "verbosity")
	verbosity atomic.Int64
	override  atomic.Bool
	mu        sync.Mutex
	logger    = golog.New(os.Stderr, "", golog.LstdFlags)
)

// SetVerbosity overrides the -vv flag value.
// Intended for programs that embed the engines without parsing flags.
func SetVerbosity(v int) {
	verbosity.Store(int64(v))
	override.Store(true)
}

// V reports whether messages at level v are currently printed.
func V(v int) bool {
	if override.Load() {
		return int64(v) <= verbosity.Load()
	}
	return v <= *flagV
}

// SetOutput redirects all log output to w and returns a function that restores the previous output.
func SetOutput(w io.Writer) (restore func()) {
	mu.Lock()
	defer mu.Unlock()
	prev := logger.Writer()
	logger.SetOutput(w)
	return func() {
		mu.Lock()
		defer mu.Unlock()
		logger.SetOutput(prev)
	}
}

func Logf(v int, msg string, args ...interface{}) {
	if !V(v) {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	logger.Output(2, fmt.Sprintf(msg, args...))
}

// Errorf logs unconditionally.
func Errorf(msg string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	logger.Output(2, "ERROR: "+fmt.Sprintf(msg, args...))
}

func Fatalf(msg string, args ...interface{}) {
	mu.Lock()
	logger.Output(2, fmt.Sprintf(msg, args...))
	mu.Unlock()
	os.Exit(1)
}
