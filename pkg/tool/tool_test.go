// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailMessage(t *testing.T) {
	assert.Equal(t, "triage-crash: bad timeout 5x", failMessage("triage-crash", "bad timeout %v", "5x"))
	assert.Equal(t, "triage-crash: 100%", failMessage("triage-crash", "%v", "100%"))
}
