// Copyright 2022 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package testutil

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// SeedEnv names the environment variable that fixes the seed of RandSource.
const SeedEnv = "CRASHTRIAGE_SEED"

// IterCount returns the number of iterations for randomized tests.
func IterCount() int {
	iters := 1000
	if testing.Short() {
		iters /= 10
	}
	if RaceEnabled {
		iters /= 10
	}
	return iters
}

// RandSource returns a random source and logs its seed,
// a failing run is reproduced by setting SeedEnv to the logged value.
func RandSource(t testing.TB) rand.Source {
	seed := time.Now().UnixNano()
	if fixed := os.Getenv(SeedEnv); fixed != "" {
		var err error
		if seed, err = strconv.ParseInt(fixed, 0, 64); err != nil {
			t.Fatalf("bad %v=%q: %v", SeedEnv, fixed, err)
		}
	}
	t.Logf("%v=%v", SeedEnv, seed)
	return rand.NewSource(seed)
}

// Writer forwards everything written to the test log.
type Writer struct {
	testing.TB
}

func (w *Writer) Write(data []byte) (int, error) {
	w.TB.Logf("%s", data)
	return len(data), nil
}
