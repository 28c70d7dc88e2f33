// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package gdb runs a target program under gdb on crashing inputs
// and saves full backtraces next to the inputs.
package gdb

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/crashtriage/pkg/event"
	"github.com/google/crashtriage/pkg/inputs"
	"github.com/google/crashtriage/pkg/log"
	"github.com/google/crashtriage/pkg/osutil"
	"github.com/google/crashtriage/pkg/stat"
)

const (
	// Placeholder is replaced with the input file in the target command line.
	Placeholder = "@@"

	DefaultDebugger = "gdb"
	// DefaultSignal is used by fuzzing harnesses for internal purposes,
	// gdb must pass it to the program without stopping.
	DefaultSignal = "SIG33"
	DefaultSuffix = ".btfull"
)

var (
	statRuns = stat.New("debugger runs", "Debugger invocations",
		stat.Console, stat.Rate{}, stat.Prometheus("crashtriage_debugger_runs"))
	statTimeouts = stat.New("debugger timeouts", "Debugger runs killed at the deadline",
		stat.Console, stat.Prometheus("crashtriage_debugger_timeouts"))
	statFailed = stat.New("debugger failures", "Debugger runs that did not produce a backtrace",
		stat.Console, stat.Prometheus("crashtriage_debugger_failures"))
	statRunTime = stat.New("debugger run time", "Duration of debugger runs",
		stat.Console, stat.Distribution{}, stat.FormatDuration, stat.Prometheus("crashtriage_debugger_run_time_ms"))
)

type Config struct {
	// Debugger binary, gdb by default.
	Debugger string
	// Argv is the target command line, one of the arguments must contain Placeholder.
	Argv    []string
	Timeout time.Duration
	// Signal that gdb passes to the program silently.
	Signal string
	// Suffix appended to the input file name to form the backtrace file name.
	Suffix string
}

// Task is a single debugger invocation.
type Task struct {
	File    string
	Output  string
	Argv    []string
	Timeout time.Duration
}

type Runner struct {
	bus *event.Bus
	cfg Config
}

func NewRunner(bus *event.Bus, cfg Config) (*Runner, error) {
	if len(cfg.Argv) == 0 {
		return nil, fmt.Errorf("empty target command line")
	}
	if !slices.ContainsFunc(cfg.Argv, func(arg string) bool { return strings.Contains(arg, Placeholder) }) {
		return nil, fmt.Errorf("target command line %q does not contain %v", cfg.Argv, Placeholder)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("bad timeout %v", cfg.Timeout)
	}
	if cfg.Debugger == "" {
		cfg.Debugger = DefaultDebugger
	}
	if cfg.Signal == "" {
		cfg.Signal = DefaultSignal
	}
	if cfg.Suffix == "" {
		cfg.Suffix = DefaultSuffix
	}
	cfg.Argv = slices.Clone(cfg.Argv)
	return &Runner{bus: bus, cfg: cfg}, nil
}

func (r *Runner) task(file string) *Task {
	argv := make([]string, len(r.cfg.Argv))
	for i, arg := range r.cfg.Argv {
		argv[i] = strings.ReplaceAll(arg, Placeholder, file)
	}
	return &Task{
		File:    file,
		Output:  file + r.cfg.Suffix,
		Argv:    argv,
		Timeout: r.cfg.Timeout,
	}
}

// Args returns the debugger command line for the task.
func (task *Task) Args(signal string) []string {
	args := []string{"-q", "-batch"}
	for _, cmd := range []string{
		"set pagination off",
		"set logging file " + task.Output,
		"set logging overwrite on",
		"set logging redirect on",
		"set logging on",
		fmt.Sprintf("handle %v nostop noprint pass", signal),
		"run",
		"backtrace full",
		"set logging off",
		"quit",
	} {
		args = append(args, "-ex", cmd)
	}
	args = append(args, "--args")
	return append(args, task.Argv...)
}

// Run runs the target on file under the debugger and writes the backtrace
// into file+Suffix. Returns false if the debugger timed out or failed.
func (r *Runner) Run(file string) bool {
	task := r.task(file)
	// A stale backtrace must not be mistaken for the result of this run.
	os.Remove(task.Output)
	cmd := osutil.Command(r.cfg.Debugger, task.Args(r.cfg.Signal)...)
	start := time.Now()
	output, err := osutil.Run(task.Timeout, cmd)
	statRuns.Add(1)
	statRunTime.Add(int(time.Since(start).Milliseconds()))
	log.Logf(2, "%v on %v:\n%s", r.cfg.Debugger, file, output)
	if osutil.IsTimeout(err) {
		os.Remove(task.Output)
		statTimeouts.Add(1)
		log.Logf(1, "%v: timed out after %v", file, task.Timeout)
		r.bus.Publish(event.RunTimedOut{File: file, Timeout: task.Timeout})
		return false
	}
	if err == nil && !osutil.IsExist(task.Output) {
		err = fmt.Errorf("no backtrace in %v", task.Output)
	}
	if err != nil {
		statFailed.Add(1)
		err = osutil.PrependContext(fmt.Sprintf("debugging %v", file), err)
		log.Logf(1, "%v", err)
		r.bus.Publish(event.RunFailed{File: file, Err: err})
		return false
	}
	return true
}

// RunRecursive runs all files under folder whose base names match regex
// using procs workers. Returns true only if every run succeeded.
func (r *Runner) RunRecursive(folder string, procs int, regex string) bool {
	filter, err := inputs.NewFilter(regex)
	if err != nil {
		log.Errorf("%v", err)
		return false
	}
	files, err := inputs.Scan(folder, filter)
	if err != nil {
		r.bus.Publish(event.ReadFailed{File: folder, Err: err})
		return false
	}
	log.Logf(1, "debugging %v files from %v", len(files), folder)
	return inputs.ForEach(files, procs, r.Run)
}

// RunList runs all files named in the list file using procs workers.
func (r *Runner) RunList(list string, procs int) bool {
	files, err := inputs.ReadList(list)
	if err != nil {
		r.bus.Publish(event.ReadFailed{File: list, Err: err})
		return false
	}
	log.Logf(1, "debugging %v files from list %v", len(files), list)
	return inputs.ForEach(files, procs, r.Run)
}
