// Copyright 2024 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package stat

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VividCortex/gohistogram"
	"github.com/prometheus/client_golang/prometheus"
)

// This file provides prometheus/streamz style metrics (Val type) for instrumenting code for monitoring.
// It also provides a registry for such metrics (set type) and a global default registry.
//
// Simple uses of metrics:
//
//	statFoo := stat.New("metric name", "metric description")
//	statFoo.Add(1)
//
// Summaries of all registered metrics are obtained with Collect.

type UI struct {
	Name  string
	Desc  string
	Level Level
	Value string
	V     int
}

func New(name, desc string, opts ...any) *Val {
	return global.New(name, desc, opts...)
}

func Collect(level Level) []UI {
	return global.Collect(level)
}

var global = newSet()

type set struct {
	mu    sync.Mutex
	vals  map[string]*Val
	start time.Time
}

func newSet() *set {
	return &set{
		vals:  make(map[string]*Val),
		start: time.Now(),
	}
}

func (s *set) Collect(level Level) []UI {
	s.mu.Lock()
	defer s.mu.Unlock()
	period := time.Since(s.start)
	if period < time.Second {
		period = time.Second
	}
	var res []UI
	for _, v := range s.vals {
		if v.level < level {
			continue
		}
		val := v.Val()
		value := v.fmt(val, period)
		if v.hist {
			value = fmt.Sprintf("%v (p50 %v, p90 %v)", value,
				v.fmt(int(v.Quantile(0.5)), period), v.fmt(int(v.Quantile(0.9)), period))
		}
		res = append(res, UI{
			Name:  v.name,
			Desc:  v.desc,
			Level: v.level,
			Value: value,
			V:     val,
		})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Level != res[j].Level {
			return res[i].Level > res[j].Level
		}
		return res[i].Name < res[j].Name
	})
	return res
}

// Additional options for Val metrics.

// Level controls if the metric should be printed to console in summaries,
// or is only available through Prometheus.
type Level int

const (
	All Level = iota
	Console
)

// Prometheus exports the metric to Prometheus under the given name.
// Distributions are exported as one gauge per quantile label.
type Prometheus string

// Rate says to show metric rate per unit of time in addition to the total value.
type Rate struct{}

// Distribution says to collect histogram of individual sample distributions.
// Summaries show the mean, p50 and p90.
type Distribution struct{}

// Additionally 'func(int, time.Duration) string' can be passed for custom formatting of the metric value.

var exportedQuantiles = []float64{0.5, 0.9}

func (s *set) New(name, desc string, opts ...any) *Val {
	v := &Val{
		name: name,
		desc: desc,
		fmt:  func(v int, period time.Duration) string { return strconv.Itoa(v) },
	}
	var exported []Prometheus
	for _, o := range opts {
		switch opt := o.(type) {
		case Level:
			v.level = opt
		case Rate:
			v.fmt = formatRate
		case Distribution:
			v.hist = true
		case func(int, time.Duration) string:
			v.fmt = opt
		case Prometheus:
			exported = append(exported, opt)
		default:
			panic(fmt.Sprintf("unknown stats option %#v", o))
		}
	}
	for _, name := range exported {
		v.export(string(name))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals[name] = v
	return v
}

// export registers v in the default Prometheus registry
// (https://prometheus.io/docs/guides/go-application).
func (v *Val) export(name string) {
	if !v.hist {
		prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: name,
			Help: v.desc,
		},
			func() float64 { return float64(v.Val()) },
		))
		return
	}
	for _, q := range exportedQuantiles {
		q := q
		prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        name,
			Help:        v.desc,
			ConstLabels: prometheus.Labels{"quantile": strconv.FormatFloat(q, 'f', -1, 64)},
		},
			func() float64 { return v.Quantile(q) },
		))
	}
}

type Val struct {
	name    string
	desc    string
	level   Level
	val     atomic.Uint64
	fmt     func(int, time.Duration) string
	hist    bool
	histMu  sync.Mutex
	histVal *gohistogram.NumericHistogram
}

func (v *Val) Add(val int) {
	if v.hist {
		v.histMu.Lock()
		if v.histVal == nil {
			v.histVal = gohistogram.NewHistogram(histogramBuckets)
		}
		v.histVal.Add(float64(val))
		v.histMu.Unlock()
		return
	}
	v.val.Add(uint64(val))
}

// Val returns the current value (the mean for distributions).
func (v *Val) Val() int {
	if v.hist {
		v.histMu.Lock()
		defer v.histMu.Unlock()
		if v.histVal == nil {
			return 0
		}
		return int(v.histVal.Mean())
	}
	return int(v.val.Load())
}

// Quantile returns the q-th quantile of a distribution metric.
func (v *Val) Quantile(q float64) float64 {
	if !v.hist {
		panic(fmt.Sprintf("stat %v is not a distribution", v.name))
	}
	v.histMu.Lock()
	defer v.histMu.Unlock()
	if v.histVal == nil {
		return 0
	}
	return v.histVal.Quantile(q)
}

const histogramBuckets = 255

func formatRate(v int, period time.Duration) string {
	secs := int(period.Seconds())
	if x := v / secs; x >= 10 {
		return fmt.Sprintf("%v (%v/sec)", v, x)
	}
	if x := v * 60 / secs; x >= 10 {
		return fmt.Sprintf("%v (%v/min)", v, x)
	}
	x := v * 60 * 60 / secs
	return fmt.Sprintf("%v (%v/hour)", v, x)
}

// FormatDuration formats metrics that hold durations in milliseconds.
func FormatDuration(v int, period time.Duration) string {
	return (time.Duration(v) * time.Millisecond).String()
}
