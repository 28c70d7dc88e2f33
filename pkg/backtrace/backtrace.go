// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package backtrace parses "backtrace full" dumps produced by gdb and computes
// comparison signatures used to group crashes that share the same stack.
package backtrace

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/crashtriage/pkg/hash"
)

// Frame is a single stack frame. Index 0 is the innermost (top) frame.
type Frame struct {
	Index   int
	PC      uint64
	HasPC   bool
	Func    string
	File    string // empty if the source is unknown
	Line    int    // 0 if the source is unknown
	Library string // shared object for frames without debug info ("from lib.so")
}

func (f *Frame) HasSource() bool {
	return f.File != ""
}

// Key returns the identity of the frame used in signatures.
// Addresses never participate: the same code is mapped at different addresses
// across runs (ASLR, different builds of the same sources).
func (f *Frame) Key() FrameKey {
	if !f.HasSource() {
		return FrameKey{Func: f.Func}
	}
	return FrameKey{Func: f.Func, File: f.File, Line: f.Line}
}

func (f *Frame) String() string {
	buf := new(strings.Builder)
	fmt.Fprintf(buf, "#%-3v", f.Index)
	if f.HasPC {
		fmt.Fprintf(buf, "0x%016x in ", f.PC)
	}
	buf.WriteString(f.Func)
	switch {
	case f.HasSource():
		fmt.Fprintf(buf, " at %v:%v", f.File, f.Line)
	case f.Library != "":
		fmt.Fprintf(buf, " from %v", f.Library)
	}
	return buf.String()
}

// Backtrace is a parsed dump: frames ordered from the innermost one.
type Backtrace struct {
	File   string
	Frames []Frame
}

type FrameKey struct {
	Func string
	File string
	Line int
}

func (key FrameKey) String() string {
	if key.File == "" {
		return key.Func
	}
	return fmt.Sprintf("%v at %v:%v", key.Func, key.File, key.Line)
}

// Signature is the ordered sequence of frame identities selected by a Window.
type Signature []FrameKey

func (sig Signature) Equal(other Signature) bool {
	if len(sig) != len(other) {
		return false
	}
	for i := range sig {
		if sig[i] != other[i] {
			return false
		}
	}
	return true
}

// Hash returns a digest that is equal for structurally equal signatures.
func (sig Signature) Hash() hash.Sig {
	pieces := make([]string, 0, 3*len(sig))
	for _, key := range sig {
		pieces = append(pieces, key.Func, key.File, strconv.Itoa(key.Line))
	}
	return hash.Strings(pieces...)
}
