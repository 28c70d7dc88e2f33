// Copyright 2017 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build unix

package osutil

import (
	"os/exec"

	"golang.org/x/sys/unix"
)

func killPgroup(cmd *exec.Cmd) {
	// The command is a group leader (see setPdeathsig), so -pid addresses the whole group.
	unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
}
