// Copyright 2020 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package tool contains helpers shared by the command line tools.
package tool

import (
	"fmt"
	"os"
	"path/filepath"
)

// Failf prints the message prefixed with the program name and exits with status 1.
func Failf(msg string, args ...any) {
	fmt.Fprintln(os.Stderr, failMessage(filepath.Base(os.Args[0]), msg, args...))
	os.Exit(1)
}

func Fail(err error) {
	Failf("%v", err)
}

// UsageFailf is Failf for command line mistakes, it points to -help.
func UsageFailf(msg string, args ...any) {
	Failf("%v (run with -help for usage)", fmt.Sprintf(msg, args...))
}

func failMessage(prog, msg string, args ...any) string {
	return prog + ": " + fmt.Sprintf(msg, args...)
}
