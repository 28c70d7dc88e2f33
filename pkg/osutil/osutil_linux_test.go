// Copyright 2017 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package osutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTimeoutKillsGroup(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "pid")
	script := fmt.Sprintf("sleep 30 & echo $! > %q; wait", pidFile)
	_, err := RunCmd(300*time.Millisecond, "", "sh", "-c", script)
	require.Error(t, err)
	require.True(t, IsTimeout(err), "err: %v", err)

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return processGone(pid) }, 10*time.Second, 50*time.Millisecond,
		"grandchild %v survived the timeout", pid)
}

// processGone says if pid no longer runs (either reaped or a zombie waiting for its new parent).
func processGone(pid int) bool {
	stat, err := os.ReadFile(fmt.Sprintf("/proc/%v/stat", pid))
	if err != nil {
		return true
	}
	// The state follows the parenthesized command name.
	pos := bytes.LastIndexByte(stat, ')')
	return pos == -1 || pos+2 >= len(stat) || stat[pos+2] == 'Z' || stat[pos+2] == 'X'
}
