// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package cluster groups backtrace dumps by stack signature,
// so that one representative per distinct crash can be reviewed.
package cluster

import (
	"fmt"
	"sync"

	"github.com/google/crashtriage/pkg/backtrace"
	"github.com/google/crashtriage/pkg/event"
	"github.com/google/crashtriage/pkg/hash"
	"github.com/google/crashtriage/pkg/inputs"
	"github.com/google/crashtriage/pkg/log"
	"github.com/google/crashtriage/pkg/osutil"
	"github.com/google/crashtriage/pkg/stat"
)

var (
	statFiles = stat.New("clustered files", "Backtraces added to groups",
		stat.Console, stat.Rate{}, stat.Prometheus("crashtriage_clustered_files"))
	statReadFailed = stat.New("read failures", "Backtraces that could not be read or parsed",
		stat.Console, stat.Prometheus("crashtriage_read_failures"))
	statGroups = stat.New("groups", "Distinct stack signatures",
		stat.Console, stat.Prometheus("crashtriage_groups"))
	statFrames = stat.New("frames", "Frames per parsed backtrace",
		stat.Console, stat.Distribution{}, stat.Prometheus("crashtriage_backtrace_frames"))
)

type Config struct {
	Window backtrace.Window
	// OneByGroup keeps only the first file of each group and a member count.
	OneByGroup bool
}

// Group is a set of backtraces with equal signatures.
type Group struct {
	Signature backtrace.Signature
	// Files lists member files in the order they were added.
	// In one-by-group mode it contains only the first one.
	Files []string
	Count int
}

// Set is the table of groups. It is safe for concurrent use.
type Set struct {
	bus  *event.Bus
	cfg  Config
	mu   sync.Mutex
	m    map[hash.Sig][]*Group // groups are matched with Signature.Equal within a bucket
	list []*Group              // in order of creation
}

func NewSet(bus *event.Bus, cfg Config) (*Set, error) {
	if err := cfg.Window.Validate(); err != nil {
		return nil, fmt.Errorf("bad comparison window: %w", err)
	}
	return &Set{
		bus: bus,
		cfg: cfg,
		m:   make(map[hash.Sig][]*Group),
	}, nil
}

// Add parses the backtrace in file and adds it to the matching group
// (creating a new one if needed). Returns false if the file can't be read or parsed.
func (set *Set) Add(file string) bool {
	bt, err := readBacktrace(file)
	if err != nil {
		log.Logf(2, "%v", err)
		statReadFailed.Add(1)
		set.bus.Publish(event.ReadFailed{File: file, Err: err})
		return false
	}
	sig := set.cfg.Window.Signature(bt)
	statFrames.Add(len(bt.Frames))
	set.insert(file, sig.Hash(), sig)
	statFiles.Add(1)
	return true
}

func readBacktrace(file string) (*backtrace.Backtrace, error) {
	data, err := osutil.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %v: %w", file, err)
	}
	bt, err := backtrace.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %v: %w", file, err)
	}
	bt.File = file
	return bt, nil
}

func (set *Set) insert(file string, key hash.Sig, sig backtrace.Signature) {
	set.mu.Lock()
	defer set.mu.Unlock()
	var group *Group
	for _, g := range set.m[key] {
		if g.Signature.Equal(sig) {
			group = g
			break
		}
	}
	if group == nil {
		group = &Group{Signature: sig}
		set.m[key] = append(set.m[key], group)
		set.list = append(set.list, group)
		statGroups.Add(1)
		log.Logf(2, "new group #%v (%v): %v", len(set.list), key, file)
	}
	if !set.cfg.OneByGroup || len(group.Files) == 0 {
		group.Files = append(group.Files, file)
	}
	group.Count++
}

// AddRecursive adds all files under folder whose base names match regex
// using procs workers. Returns true only if every file was added.
func (set *Set) AddRecursive(folder string, procs int, regex string) bool {
	filter, err := inputs.NewFilter(regex)
	if err != nil {
		log.Errorf("%v", err)
		return false
	}
	files, err := inputs.Scan(folder, filter)
	if err != nil {
		statReadFailed.Add(1)
		set.bus.Publish(event.ReadFailed{File: folder, Err: err})
		return false
	}
	log.Logf(1, "clustering %v files from %v", len(files), folder)
	return inputs.ForEach(files, procs, set.Add)
}

// AddList adds all files named in the list file using procs workers.
func (set *Set) AddList(list string, procs int) bool {
	files, err := inputs.ReadList(list)
	if err != nil {
		statReadFailed.Add(1)
		set.bus.Publish(event.ReadFailed{File: list, Err: err})
		return false
	}
	log.Logf(1, "clustering %v files from list %v", len(files), list)
	return inputs.ForEach(files, procs, set.Add)
}

// Groups returns a snapshot of all groups in order of creation.
func (set *Set) Groups() []*Group {
	set.mu.Lock()
	defer set.mu.Unlock()
	res := make([]*Group, len(set.list))
	for i, group := range set.list {
		res[i] = &Group{
			Signature: group.Signature,
			Files:     append([]string{}, group.Files...),
			Count:     group.Count,
		}
	}
	return res
}

// Len returns the number of groups.
func (set *Set) Len() int {
	set.mu.Lock()
	defer set.mu.Unlock()
	return len(set.list)
}
