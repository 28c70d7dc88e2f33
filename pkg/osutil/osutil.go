// Copyright 2017 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package osutil

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

const (
	DefaultDirPerm  = 0755
	DefaultFilePerm = 0644
	DefaultExecPerm = 0755
)

// ErrTimeout is wrapped by the error returned from Run when the command was killed at the deadline.
var ErrTimeout = errors.New("timed out")

// waitDelay bounds how long Wait blocks on output pipes after the process is gone.
const waitDelay = 5 * time.Second

// RunCmd runs "bin args..." in dir with timeout and returns its output.
func RunCmd(timeout time.Duration, dir, bin string, args ...string) ([]byte, error) {
	cmd := Command(bin, args...)
	cmd.Dir = dir
	return Run(timeout, cmd)
}

// Run runs cmd with the specified timeout.
// Returns combined output. If the command fails, err includes output.
// The command runs in its own process group and the whole group is killed
// when the timeout fires, so grandchildren (e.g. a program started under
// a debugger) do not outlive the command.
func Run(timeout time.Duration, cmd *exec.Cmd) ([]byte, error) {
	output := new(bytes.Buffer)
	if cmd.Stdout == nil {
		cmd.Stdout = output
	}
	if cmd.Stderr == nil {
		cmd.Stderr = output
	}
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = waitDelay
	}
	setPdeathsig(cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %v %+v: %w", cmd.Path, cmd.Args, err)
	}
	done := make(chan bool)
	timedout := make(chan bool, 1)
	timer := time.NewTimer(timeout)
	go func() {
		select {
		case <-timer.C:
			timedout <- true
			killPgroup(cmd)
			cmd.Process.Kill()
		case <-done:
			timedout <- false
			timer.Stop()
		}
	}()
	err := cmd.Wait()
	close(done)
	if <-timedout {
		// Partial output of a killed command is never a success.
		return output.Bytes(), &VerboseError{
			Title:  fmt.Sprintf("timedout after %v %q", timeout, cmd.Args),
			Output: output.Bytes(),
			Err:    ErrTimeout,
		}
	}
	if err != nil {
		exitCode := 0
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return output.Bytes(), &VerboseError{
			Title:    fmt.Sprintf("failed to run %q: %v", cmd.Args, err),
			Output:   output.Bytes(),
			ExitCode: exitCode,
			Err:      err,
		}
	}
	return output.Bytes(), nil
}

// Command is similar to os/exec.Command, but also sets PDEATHSIG on linux
// and puts the command into a separate process group.
func Command(bin string, args ...string) *exec.Cmd {
	cmd := exec.Command(bin, args...)
	setPdeathsig(cmd)
	return cmd
}

type VerboseError struct {
	Title    string
	Output   []byte
	ExitCode int
	Err      error
}

func (err *VerboseError) Error() string {
	if len(err.Output) == 0 {
		return err.Title
	}
	return fmt.Sprintf("%v\n%s", err.Title, err.Output)
}

func (err *VerboseError) Unwrap() error {
	return err.Err
}

// IsTimeout says if err was produced by Run for a command killed at its deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

func PrependContext(ctx string, err error) error {
	var verr *VerboseError
	if errors.As(err, &verr) {
		verr.Title = fmt.Sprintf("%v: %v", ctx, verr.Title)
		return verr
	}
	return fmt.Errorf("%v: %w", ctx, err)
}

// IsExist returns true if the file name exists.
func IsExist(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// ReadFile reads the whole file name.
// Files with .xz suffix are transparently decompressed.
func ReadFile(name string) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if !strings.HasSuffix(name, ".xz") {
		return io.ReadAll(f)
	}
	r, err := xz.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("failed to open xz stream: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("xz decompression failed: %w", err)
	}
	return data, nil
}

func WriteFile(filename string, data []byte) error {
	return os.WriteFile(filename, data, DefaultFilePerm)
}

func WriteExecFile(filename string, data []byte) error {
	os.Remove(filename)
	return os.WriteFile(filename, data, DefaultExecPerm)
}

func MkdirAll(dir string) error {
	return os.MkdirAll(dir, DefaultDirPerm)
}
