// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package event implements a synchronous publish/subscribe bus that decouples
// the triage engines from presentation of per-file failures.
package event

import (
	"fmt"
	"time"
)

type Kind int

const (
	KindRunTimedOut Kind = iota + 1
	KindReadFailed
	KindRunFailed
)

func (k Kind) String() string {
	switch k {
	case KindRunTimedOut:
		return "run-timed-out"
	case KindReadFailed:
		return "read-failed"
	case KindRunFailed:
		return "run-failed"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is one of RunTimedOut, ReadFailed or RunFailed.
// The set is closed: the unexported method prevents other implementations.
type Event interface {
	Kind() Kind
	// Path is the input file (or folder, or list file) the event is about.
	Path() string
	isEvent()
}

// RunTimedOut is published when the debugger was killed at the deadline.
type RunTimedOut struct {
	File    string
	Timeout time.Duration
}

// ReadFailed is published when an input could not be read or parsed.
type ReadFailed struct {
	File string
	Err  error
}

// RunFailed is published when the debugger could not be started,
// exited with an error or did not produce the backtrace file.
type RunFailed struct {
	File string
	Err  error
}

func (RunTimedOut) Kind() Kind { return KindRunTimedOut }
func (ReadFailed) Kind() Kind  { return KindReadFailed }
func (RunFailed) Kind() Kind   { return KindRunFailed }

func (ev RunTimedOut) Path() string { return ev.File }
func (ev ReadFailed) Path() string  { return ev.File }
func (ev RunFailed) Path() string   { return ev.File }

func (RunTimedOut) isEvent() {}
func (ReadFailed) isEvent()  {}
func (RunFailed) isEvent()   {}

func (ev RunTimedOut) String() string {
	return fmt.Sprintf("%v: timed out after %v", ev.File, ev.Timeout)
}

func (ev ReadFailed) String() string {
	return fmt.Sprintf("%v: read failed: %v", ev.File, ev.Err)
}

func (ev RunFailed) String() string {
	return fmt.Sprintf("%v: run failed: %v", ev.File, ev.Err)
}
