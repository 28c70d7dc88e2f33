// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package gdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/crashtriage/pkg/event"
	"github.com/google/crashtriage/pkg/log"
	"github.com/google/crashtriage/pkg/osutil"
	"github.com/google/crashtriage/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDebugger understands just enough of the gdb command line:
// it runs the program given after --args and redirects its output
// into the logging file.
const fakeDebugger = `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
	case "$1" in
	-ex)
		case "$2" in
		"set logging file "*) out="${2#set logging file }";;
		esac
		shift 2;;
	--args)
		shift
		break;;
	*)
		shift;;
	esac
done
"$@" > "$out" 2>&1
exit $?
`

// fakeTarget behaves according to the contents of the input file.
const fakeTarget = `#!/bin/sh
case "$(cat "$1")" in
hang)
	echo $$ > "$1.pid"
	exec sleep 30;;
fail)
	echo failing
	exit 3;;
*)
	echo "#0  crash (input=$1) at target.c:1";;
esac
`

type env struct {
	dir      string
	debugger string
	target   string
	bus      *event.Bus
	mu       sync.Mutex
	events   []event.Event
}

func newEnv(t *testing.T) *env {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	restore := log.SetOutput(&testutil.Writer{TB: t})
	t.Cleanup(restore)
	e := &env{
		dir: t.TempDir(),
		bus: event.NewBus(),
	}
	tools := t.TempDir()
	e.debugger = filepath.Join(tools, "gdb")
	e.target = filepath.Join(tools, "target")
	require.NoError(t, osutil.WriteExecFile(e.debugger, []byte(fakeDebugger)))
	require.NoError(t, osutil.WriteExecFile(e.target, []byte(fakeTarget)))
	e.bus.Subscribe(func(ev event.Event) {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.events = append(e.events, ev)
	})
	return e
}

func (e *env) runner(t *testing.T, timeout time.Duration) *Runner {
	r, err := NewRunner(e.bus, Config{
		Debugger: e.debugger,
		Argv:     []string{e.target, Placeholder},
		Timeout:  timeout,
	})
	require.NoError(t, err)
	return r
}

func (e *env) input(t *testing.T, name, content string) string {
	path := filepath.Join(e.dir, filepath.FromSlash(name))
	require.NoError(t, osutil.MkdirAll(filepath.Dir(path)))
	require.NoError(t, osutil.WriteFile(path, []byte(content)))
	return path
}

func (e *env) paths(kind event.Kind) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var res []string
	for _, ev := range e.events {
		if ev.Kind() == kind {
			res = append(res, ev.Path())
		}
	}
	sort.Strings(res)
	return res
}

func TestNewRunner(t *testing.T) {
	tests := []struct {
		cfg Config
		ok  bool
	}{
		{Config{Argv: []string{"./target", "@@"}, Timeout: time.Second}, true},
		{Config{Argv: []string{"./target", "--input=@@"}, Timeout: time.Second}, true},
		{Config{Timeout: time.Second}, false},
		{Config{Argv: []string{"./target", "input"}, Timeout: time.Second}, false},
		{Config{Argv: []string{"./target", "@@"}}, false},
		{Config{Argv: []string{"./target", "@@"}, Timeout: -time.Second}, false},
	}
	for i, test := range tests {
		_, err := NewRunner(nil, test.cfg)
		assert.Equal(t, test.ok, err == nil, "#%v: %v", i, err)
	}
	r, err := NewRunner(nil, Config{Argv: []string{"./target", "@@"}, Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, DefaultDebugger, r.cfg.Debugger)
	assert.Equal(t, DefaultSignal, r.cfg.Signal)
	assert.Equal(t, DefaultSuffix, r.cfg.Suffix)
}

func TestTaskArgs(t *testing.T) {
	r, err := NewRunner(nil, Config{
		Argv:    []string{"./target", "-f", "@@", "--copy=@@"},
		Timeout: time.Minute,
		Signal:  "SIGUSR1",
	})
	require.NoError(t, err)
	task := r.task("crashes/id:1")
	assert.Equal(t, &Task{
		File:    "crashes/id:1",
		Output:  "crashes/id:1.btfull",
		Argv:    []string{"./target", "-f", "crashes/id:1", "--copy=crashes/id:1"},
		Timeout: time.Minute,
	}, task)
	assert.Equal(t, []string{
		"-q", "-batch",
		"-ex", "set pagination off",
		"-ex", "set logging file crashes/id:1.btfull",
		"-ex", "set logging overwrite on",
		"-ex", "set logging redirect on",
		"-ex", "set logging on",
		"-ex", "handle SIGUSR1 nostop noprint pass",
		"-ex", "run",
		"-ex", "backtrace full",
		"-ex", "set logging off",
		"-ex", "quit",
		"--args", "./target", "-f", "crashes/id:1", "--copy=crashes/id:1",
	}, task.Args(r.cfg.Signal))
	// The configured command line is not modified by tasks.
	assert.Equal(t, []string{"./target", "-f", "@@", "--copy=@@"}, r.cfg.Argv)
}

func TestRun(t *testing.T) {
	e := newEnv(t)
	r := e.runner(t, time.Minute)
	file := e.input(t, "id:1", "crash")
	require.NoError(t, osutil.WriteFile(file+DefaultSuffix, []byte("stale")))
	assert.True(t, r.Run(file))
	data, err := os.ReadFile(file + DefaultSuffix)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("#0  crash (input=%v) at target.c:1\n", file), string(data))
	assert.Empty(t, e.events)
}

func TestRunFailure(t *testing.T) {
	e := newEnv(t)
	r := e.runner(t, time.Minute)
	file := e.input(t, "id:1", "fail")
	assert.False(t, r.Run(file))
	assert.Equal(t, []string{file}, e.paths(event.KindRunFailed))
	require.Len(t, e.events, 1)
	var verr *osutil.VerboseError
	require.True(t, errors.As(e.events[0].(event.RunFailed).Err, &verr))
	assert.Equal(t, 3, verr.ExitCode)
}

func TestRunNoBacktrace(t *testing.T) {
	e := newEnv(t)
	r, err := NewRunner(e.bus, Config{
		Debugger: "true",
		Argv:     []string{e.target, Placeholder},
		Timeout:  time.Minute,
	})
	require.NoError(t, err)
	file := e.input(t, "id:1", "crash")
	assert.False(t, r.Run(file))
	assert.Equal(t, []string{file}, e.paths(event.KindRunFailed))
}

func TestRunMissingDebugger(t *testing.T) {
	e := newEnv(t)
	r, err := NewRunner(e.bus, Config{
		Debugger: filepath.Join(e.dir, "no-such-debugger"),
		Argv:     []string{e.target, Placeholder},
		Timeout:  time.Minute,
	})
	require.NoError(t, err)
	file := e.input(t, "id:1", "crash")
	assert.False(t, r.Run(file))
	assert.Equal(t, []string{file}, e.paths(event.KindRunFailed))
}

func TestRunTimeout(t *testing.T) {
	e := newEnv(t)
	r := e.runner(t, 500*time.Millisecond)
	file := e.input(t, "id:1", "hang")
	start := time.Now()
	assert.False(t, r.Run(file))
	assert.Less(t, time.Since(start), 20*time.Second)
	assert.Equal(t, []string{file}, e.paths(event.KindRunTimedOut))
	assert.Empty(t, e.paths(event.KindRunFailed))
	assert.Equal(t, event.RunTimedOut{File: file, Timeout: 500 * time.Millisecond}, e.events[0])
	assert.False(t, osutil.IsExist(file+DefaultSuffix), "partial backtrace is not removed")
}

func TestRunRecursive(t *testing.T) {
	e := newEnv(t)
	r := e.runner(t, time.Minute)
	files := []string{
		e.input(t, "crashes/id:1", "crash"),
		e.input(t, "crashes/id:2", "crash"),
		e.input(t, "crashes/sub/id:3", "fail"),
	}
	e.input(t, "crashes/README", "fail")

	assert.False(t, r.RunRecursive(e.dir, 3, "^id(?!.*btfull).*$"))
	assert.Equal(t, []string{files[2]}, e.paths(event.KindRunFailed))
	assert.True(t, osutil.IsExist(files[0]+DefaultSuffix))
	assert.True(t, osutil.IsExist(files[1]+DefaultSuffix))
	assert.False(t, osutil.IsExist(filepath.Join(e.dir, "crashes", "README"+DefaultSuffix)))

	// Previously produced backtraces are excluded by the filter.
	e.events = nil
	require.NoError(t, os.Remove(files[2]))
	assert.True(t, r.RunRecursive(e.dir, 1, "^id(?!.*btfull).*$"))
	assert.Empty(t, e.events)
}

func TestRunRecursiveErrors(t *testing.T) {
	e := newEnv(t)
	r := e.runner(t, time.Minute)
	assert.True(t, r.RunRecursive(t.TempDir(), 2, ""))
	missing := filepath.Join(e.dir, "missing")
	assert.False(t, r.RunRecursive(missing, 2, ""))
	assert.Equal(t, []string{missing}, e.paths(event.KindReadFailed))
	assert.False(t, r.RunRecursive(e.dir, 2, "[bad"))
	assert.Len(t, e.events, 1)
}

func TestRunList(t *testing.T) {
	e := newEnv(t)
	r := e.runner(t, time.Minute)
	ok1 := e.input(t, "a", "crash")
	ok2 := e.input(t, "b", "crash")
	bad := e.input(t, "c", "fail")
	list := e.input(t, "list", fmt.Sprintf("%v\n\n%v\r\n%v\n", ok1, bad, ok2))

	assert.False(t, r.RunList(list, 2))
	assert.Equal(t, []string{bad}, e.paths(event.KindRunFailed))
	assert.True(t, osutil.IsExist(ok1+DefaultSuffix))
	assert.True(t, osutil.IsExist(ok2+DefaultSuffix))

	missing := filepath.Join(e.dir, "no-list")
	assert.False(t, r.RunList(missing, 2))
	assert.Equal(t, []string{missing}, e.paths(event.KindReadFailed))
}
