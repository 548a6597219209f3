// Copyright 2025 SQLGate
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package monitor records per-operation timing and error statistics for
// every gateway call, with p95/p99 from a bounded rolling history, and
// mirrors each sample into Prometheus.
package monitor

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// maxHistory bounds the rolling sample buffer per operation.
	maxHistory = 1000
	// minPercentileSamples gates percentile reporting to avoid noisy
	// single-sample p95/p99 values.
	minPercentileSamples = 10
)

// Prometheus metrics
var (
	promOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlgate_operations_total",
			Help: "Total number of gateway operations processed",
		},
		[]string{"operation", "status"},
	)
	promOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlgate_operation_duration_milliseconds",
			Help:    "Operation duration in milliseconds",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(promOperationsTotal)
	prometheus.MustRegister(promOperationDuration)
}

// opStats accumulates samples for one named operation.
type opStats struct {
	count      int64
	errorCount int64
	totalMS    float64
	minMS      float64
	maxMS      float64
	samples    []float64 // Last maxHistory durations in ms
}

// Stats is a read-only snapshot of one operation's counters.
type Stats struct {
	Operation  string  `json:"operation"`
	Count      int64   `json:"count"`
	ErrorCount int64   `json:"error_count"`
	MinMS      float64 `json:"min_ms"`
	MaxMS      float64 `json:"max_ms"`
	AvgMS      float64 `json:"avg_ms"`
	P95MS      float64 `json:"p95_ms"` // Zero until enough samples exist
	P99MS      float64 `json:"p99_ms"`
}

// SlowOperation names an operation and its average latency, for summaries.
type SlowOperation struct {
	Operation string  `json:"operation"`
	AvgMS     float64 `json:"avg_ms"`
	Count     int64   `json:"count"`
}

// Summary aggregates counters across all operations.
type Summary struct {
	OperationCount    int             `json:"operation_count"`
	TotalOperations   int64           `json:"total_operations"`
	TotalErrors       int64           `json:"total_errors"`
	SlowestOperations []SlowOperation `json:"slowest_operations"`
}

// Monitor is a concurrency-safe recorder of operation timings. Recording
// never blocks on external I/O.
type Monitor struct {
	mu  sync.RWMutex
	ops map[string]*opStats
}

// New creates an empty Monitor.
func New() *Monitor {
	return &Monitor{ops: make(map[string]*opStats)}
}

// Record adds one sample for the named operation.
func (m *Monitor) Record(operation string, elapsed time.Duration, isError bool) {
	ms := float64(elapsed.Microseconds()) / 1000.0

	status := "success"
	if isError {
		status = "error"
	}
	promOperationsTotal.WithLabelValues(operation, status).Inc()
	promOperationDuration.WithLabelValues(operation).Observe(ms)

	m.mu.Lock()
	defer m.mu.Unlock()

	st, exists := m.ops[operation]
	if !exists {
		st = &opStats{minMS: ms, maxMS: ms, samples: make([]float64, 0, maxHistory)}
		m.ops[operation] = st
	}

	st.count++
	if isError {
		st.errorCount++
	}
	st.totalMS += ms
	if ms < st.minMS {
		st.minMS = ms
	}
	if ms > st.maxMS {
		st.maxMS = ms
	}

	if len(st.samples) >= maxHistory {
		st.samples = st.samples[1:]
	}
	st.samples = append(st.samples, ms)
}

// Measure wraps fn in a timed sample for the named operation, recording the
// elapsed time and whether fn returned an error, regardless of outcome.
func (m *Monitor) Measure(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	m.Record(operation, time.Since(start), err != nil)
	return err
}

// OperationStats returns the snapshot for one operation.
func (m *Monitor) OperationStats(operation string) (Stats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, exists := m.ops[operation]
	if !exists {
		return Stats{}, false
	}
	return st.snapshot(operation), true
}

// AllStats returns snapshots for every recorded operation.
func (m *Monitor) AllStats() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Stats, len(m.ops))
	for name, st := range m.ops {
		out[name] = st.snapshot(name)
	}
	return out
}

// Summary returns cross-operation totals and the slowest operations by
// average latency.
func (m *Monitor) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Summary{OperationCount: len(m.ops)}
	for name, st := range m.ops {
		s.TotalOperations += st.count
		s.TotalErrors += st.errorCount
		s.SlowestOperations = append(s.SlowestOperations, SlowOperation{
			Operation: name,
			AvgMS:     st.totalMS / float64(st.count),
			Count:     st.count,
		})
	}

	sort.Slice(s.SlowestOperations, func(i, j int) bool {
		return s.SlowestOperations[i].AvgMS > s.SlowestOperations[j].AvgMS
	})
	if len(s.SlowestOperations) > 5 {
		s.SlowestOperations = s.SlowestOperations[:5]
	}

	return s
}

func (st *opStats) snapshot(operation string) Stats {
	snap := Stats{
		Operation:  operation,
		Count:      st.count,
		ErrorCount: st.errorCount,
		MinMS:      st.minMS,
		MaxMS:      st.maxMS,
		AvgMS:      st.totalMS / float64(st.count),
	}

	if len(st.samples) >= minPercentileSamples {
		sorted := make([]float64, len(st.samples))
		copy(sorted, st.samples)
		sort.Float64s(sorted)
		snap.P95MS = percentile(sorted, 0.95)
		snap.P99MS = percentile(sorted, 0.99)
	}

	return snap
}

// percentile returns the p-th percentile of an already sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted))*p+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
