// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// triage-crash runs crashing inputs under gdb to collect full backtraces (gdb action)
// and groups the backtraces by stack signature (sort action).
//
//	triage-crash gdb [flags] -folder=out/crashes -regex='^id(?!.*btfull).*$' -- /path/app @@
//	triage-crash sort [flags] -folder=out/crashes -regex='^id.*\.btfull$'
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/crashtriage/pkg/backtrace"
	"github.com/google/crashtriage/pkg/cluster"
	"github.com/google/crashtriage/pkg/event"
	"github.com/google/crashtriage/pkg/gdb"
	"github.com/google/crashtriage/pkg/inputs"
	"github.com/google/crashtriage/pkg/log"
	"github.com/google/crashtriage/pkg/stat"
	"github.com/google/crashtriage/pkg/tool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	actionGdb  = "gdb"
	actionSort = "sort"
)

var (
	flagFiles   tool.StringsFlag
	flagFolders tool.StringsFlag
	flagLists   tool.StringsFlag

	flagConfig   = flag.String("config", "", "JSON or YAML file with default values of the flags")
	flagHTTP     = flag.String("http", "", "serve Prometheus metrics on this address")
	flagParallel = flag.Bool("parallel", false, "process files on all CPUs")
	flagRegex    = flag.String("regex", "", "with -folder only: process only files whose names match\n"+
		"(ECMAScript syntax, e.g. '^id(?!.*btfull).*$' for gdb and '^id.*\\.btfull$' for sort)")

	flagTimeout  = flag.Duration("timeout", defaultTimeout, "gdb: timeout for each debugger run")
	flagDebugger = flag.String("debugger", gdb.DefaultDebugger, "gdb: debugger binary")
	flagSignal   = flag.String("signal", gdb.DefaultSignal, "gdb: signal passed to the program without stopping")

	flagSourceOnly  = flag.Bool("source-only", false, "sort: ignore frames without known source file")
	flagTopFrame    = flag.Int("top-frame", backtrace.DefaultTopFrame, "sort: number of frames to compare, starting from the top")
	flagBottomFrame = flag.Int("bottom-frame", backtrace.DefaultBottomFrame, "sort: number of frames to compare, starting from the bottom")
	flagOneByGroup  = flag.Bool("print-one-by-group", false, "sort: show only one file per group (reduces memory usage)")
)

func init() {
	flag.Var(&flagFiles, "file", "add a single file (can be repeated)")
	flag.Var(&flagFolders, "folder", "add all files in the folder recursively (can be repeated)")
	flag.Var(&flagLists, "list", "add files listed in the file, one per line, -regex is not used (can be repeated)")
}

// actionFlags lists flags that are accepted only with one action.
var actionFlags = map[string]string{
	"timeout":            actionGdb,
	"debugger":           actionGdb,
	"signal":             actionGdb,
	"source-only":        actionSort,
	"top-frame":          actionSort,
	"bottom-frame":       actionSort,
	"print-one-by-group": actionSort,
}

type inputSet struct {
	files   []string
	folders []string
	lists   []string
}

func (in *inputSet) empty() bool {
	return len(in.files)+len(in.folders)+len(in.lists) == 0
}

func main() {
	flag.Usage = usage
	if len(os.Args) < 2 {
		usage()
	}
	action := os.Args[1]
	if action != actionGdb && action != actionSort {
		usage()
	}
	flag.CommandLine.Parse(os.Args[2:])
	set := tool.SetFlags(flag.CommandLine)
	if err := checkFlags(action, set, flag.Args()); err != nil {
		tool.UsageFailf("%v", err)
	}
	cfg, err := loadConfig(*flagConfig)
	if err != nil {
		tool.Fail(err)
	}
	applyFlags(cfg, set)
	in := &inputSet{files: flagFiles, folders: flagFolders, lists: flagLists}
	if in.empty() {
		tool.UsageFailf("no inputs: specify -file, -folder or -list")
	}
	if *flagHTTP != "" {
		go serveHTTP(*flagHTTP)
	}

	bus := event.NewBus()
	bus.Subscribe(func(ev event.Event) {
		fmt.Println(describe(ev))
	})
	var ok bool
	switch action {
	case actionGdb:
		ok, err = runGdb(cfg, in, flag.Args(), bus)
	case actionSort:
		ok, err = runSort(cfg, in, bus, os.Stdout)
	}
	if err != nil {
		tool.Fail(err)
	}
	if log.V(1) {
		for _, st := range stat.Collect(stat.Console) {
			log.Logf(1, "%-20v: %v", st.Name, st.Value)
		}
	}
	if !ok {
		os.Exit(1)
	}
}

// checkFlags rejects flags and arguments that do not apply to the action.
func checkFlags(action string, set map[string]bool, args []string) error {
	for name := range set {
		if want := actionFlags[name]; want != "" && want != action {
			return fmt.Errorf("-%v is only applicable with %v action", name, want)
		}
	}
	switch action {
	case actionGdb:
		if len(args) == 0 {
			return fmt.Errorf("missing -- followed by the program to run under %v (with %v for the input file)",
				actionGdb, gdb.Placeholder)
		}
	case actionSort:
		if len(args) != 0 {
			return fmt.Errorf("unexpected arguments %q for %v action", args, actionSort)
		}
	}
	return nil
}

// applyFlags overrides config values with explicitly passed flags.
func applyFlags(cfg *Config, set map[string]bool) {
	if set["parallel"] {
		cfg.Parallel = *flagParallel
	}
	if set["regex"] {
		cfg.Regex = *flagRegex
	}
	if set["timeout"] {
		cfg.Timeout = flagTimeout.String()
	}
	if set["debugger"] {
		cfg.Debugger = *flagDebugger
	}
	if set["signal"] {
		cfg.Signal = *flagSignal
	}
	if set["source-only"] {
		cfg.SourceOnly = *flagSourceOnly
	}
	if set["top-frame"] {
		cfg.TopFrame = *flagTopFrame
	}
	if set["bottom-frame"] {
		cfg.BottomFrame = *flagBottomFrame
	}
	if set["print-one-by-group"] {
		cfg.OneByGroup = *flagOneByGroup
	}
}

// describe formats per-file failures for the console.
func describe(ev event.Event) string {
	switch ev := ev.(type) {
	case event.RunTimedOut:
		return fmt.Sprintf("Gdb timeout: %v", ev.File)
	case event.RunFailed:
		return fmt.Sprintf("Gdb failed: %v", ev.File)
	case event.ReadFailed:
		return fmt.Sprintf("Failed to read: %v", ev.File)
	}
	return fmt.Sprintf("%v: %v", ev.Kind(), ev.Path())
}

func runGdb(cfg *Config, in *inputSet, argv []string, bus *event.Bus) (bool, error) {
	timeout, err := cfg.timeout()
	if err != nil {
		return false, err
	}
	runner, err := gdb.NewRunner(bus, gdb.Config{
		Debugger: cfg.Debugger,
		Argv:     argv,
		Timeout:  timeout,
		Signal:   cfg.Signal,
		Suffix:   cfg.Suffix,
	})
	if err != nil {
		return false, err
	}
	procs := inputs.Parallelism(cfg.Parallel)
	ok := true
	for _, folder := range in.folders {
		if !runner.RunRecursive(folder, procs, cfg.Regex) {
			fmt.Fprintf(os.Stderr, "Failed to run some files in folder %v.\n", folder)
			ok = false
		}
	}
	for _, file := range in.files {
		if !runner.Run(file) {
			fmt.Fprintf(os.Stderr, "Failed to run file %v.\n", file)
			ok = false
		}
	}
	for _, list := range in.lists {
		if !runner.RunList(list, procs) {
			fmt.Fprintf(os.Stderr, "Failed to run some files in list %v.\n", list)
			ok = false
		}
	}
	return ok, nil
}

func runSort(cfg *Config, in *inputSet, bus *event.Bus, w io.Writer) (bool, error) {
	set, err := cluster.NewSet(bus, cluster.Config{
		Window:     cfg.window(),
		OneByGroup: cfg.OneByGroup,
	})
	if err != nil {
		return false, err
	}
	procs := inputs.Parallelism(cfg.Parallel)
	ok := true
	for _, folder := range in.folders {
		if !set.AddRecursive(folder, procs, cfg.Regex) {
			fmt.Fprintf(os.Stderr, "Failed to read some files in folder %v.\n", folder)
			ok = false
		}
	}
	for _, file := range in.files {
		if !set.Add(file) {
			fmt.Fprintf(os.Stderr, "Failed to read file %v.\n", file)
			ok = false
		}
	}
	for _, list := range in.lists {
		if !set.AddList(list, procs) {
			fmt.Fprintf(os.Stderr, "Failed to read some files in list %v.\n", list)
			ok = false
		}
	}
	if err := set.Print(w, cfg.OneByGroup); err != nil {
		return false, err
	}
	return ok, nil
}

func serveHTTP(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))
	log.Logf(0, "serving metrics on http://%v/metrics", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("failed to serve http: %v", err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  triage-crash gdb [flags] -folder=dir|-file=file|-list=file -- /path/app @@\n")
	fmt.Fprintf(os.Stderr, "      run app under gdb for each file (@@ is replaced by the file)\n")
	fmt.Fprintf(os.Stderr, "      and save the full backtrace into file%v\n", gdb.DefaultSuffix)
	fmt.Fprintf(os.Stderr, "  triage-crash sort [flags] -folder=dir|-file=file|-list=file\n")
	fmt.Fprintf(os.Stderr, "      group backtraces by stack and print the groups\n")
	fmt.Fprintf(os.Stderr, "flags:\n")
	flag.PrintDefaults()
	os.Exit(1)
}
