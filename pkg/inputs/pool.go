// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package inputs

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Parallelism returns the default number of workers:
// 1 (sequential) or, if parallel is set, the number of CPUs.
func Parallelism(parallel bool) int {
	if parallel {
		return runtime.NumCPU()
	}
	return 1
}

// ForEach calls fn for every file using at most procs concurrent workers
// (procs <= 0 means 1) and returns true only if all calls returned true.
// A failure does not stop processing of the remaining files.
func ForEach(files []string, procs int, fn func(file string) bool) bool {
	if procs <= 0 {
		procs = 1
	}
	if procs == 1 {
		ok := true
		for _, file := range files {
			ok = fn(file) && ok
		}
		return ok
	}
	var failed atomic.Bool
	var eg errgroup.Group
	eg.SetLimit(procs)
	for _, file := range files {
		file := file
		eg.Go(func() error {
			if !fn(file) {
				failed.Store(true)
			}
			return nil
		})
	}
	eg.Wait()
	return !failed.Load()
}
