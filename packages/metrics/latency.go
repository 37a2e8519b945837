// Package metrics aggregates response latencies for reports.
package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	// Histogram range in microseconds: 1us to 60s.
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
	sigFigs      = 3
)

// Latency collects response times of the requests of a run. Requests that
// never got a response are counted but not timed.
type Latency struct {
	mu        sync.Mutex
	histogram *hdrhistogram.Histogram
	failures  int64
}

// Summary is a point-in-time view of a Latency.
type Summary struct {
	Count    int64         `json:"count"`
	Failures int64         `json:"failures"`
	Min      time.Duration `json:"min"`
	Max      time.Duration `json:"max"`
	Mean     time.Duration `json:"mean"`
	P50      time.Duration `json:"p50"`
	P95      time.Duration `json:"p95"`
	P99      time.Duration `json:"p99"`
}

func NewLatency() *Latency {
	return &Latency{
		histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, sigFigs),
	}
}

// Record adds one response time.
func (l *Latency) Record(d time.Duration) {
	us := d.Microseconds()
	if us < minLatencyUs {
		us = minLatencyUs
	}
	if us > maxLatencyUs {
		us = maxLatencyUs
	}

	l.mu.Lock()
	_ = l.histogram.RecordValue(us)
	l.mu.Unlock()
}

// RecordFailure counts a request that produced no response.
func (l *Latency) RecordFailure() {
	l.mu.Lock()
	l.failures++
	l.mu.Unlock()
}

// Merge folds other into l.
func (l *Latency) Merge(other *Latency) {
	if other == nil || other == l {
		return
	}

	other.mu.Lock()
	snapshot := hdrhistogram.Import(other.histogram.Export())
	failures := other.failures
	other.mu.Unlock()

	l.mu.Lock()
	l.histogram.Merge(snapshot)
	l.failures += failures
	l.mu.Unlock()
}

func (l *Latency) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Summary{
		Count:    l.histogram.TotalCount(),
		Failures: l.failures,
	}
	if s.Count == 0 {
		return s
	}

	s.Min = us(l.histogram.Min())
	s.Max = us(l.histogram.Max())
	s.Mean = time.Duration(l.histogram.Mean() * float64(time.Microsecond))
	s.P50 = us(l.histogram.ValueAtQuantile(50))
	s.P95 = us(l.histogram.ValueAtQuantile(95))
	s.P99 = us(l.histogram.ValueAtQuantile(99))
	return s
}

func us(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
