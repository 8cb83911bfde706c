// Package benchmark provides scoped timing with percentile history for
// the simulator's hot-path stages (orderbook updates, each model
// invocation, full simulations).
package benchmark

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const historyCapacity = 1000

// stageLatency exports every Measure label as a Prometheus histogram
// alongside the in-process percentile history, so the same
// measurement is visible both to callers of Results() and to scraping.
var stageLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "costsim",
		Subsystem: "simulator",
		Name:      "stage_latency_ms",
		Help:      "Latency of a benchmarked simulator stage, in milliseconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500},
	},
	[]string{"label"},
)

// labelStats holds the running aggregate and bounded sample history
// for one timing label.
type labelStats struct {
	count   int64
	total   time.Duration
	min     time.Duration
	max     time.Duration
	last    time.Duration
	history []time.Duration // ring buffer, most recent historyCapacity samples
	next    int
}

func (s *labelStats) record(d time.Duration) {
	if s.count == 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
	s.last = d
	s.total += d
	s.count++

	if len(s.history) < historyCapacity {
		s.history = append(s.history, d)
	} else {
		s.history[s.next] = d
		s.next = (s.next + 1) % historyCapacity
	}
}

func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// LabelResult is the aggregate view returned by Results() for one label.
type LabelResult struct {
	Count   int64
	Total   time.Duration
	Min     time.Duration
	Max     time.Duration
	Last    time.Duration
	Avg     time.Duration
	P50     time.Duration
	P90     time.Duration
	P99     time.Duration
}

// Results is the full performance snapshot returned by Benchmarker.Results.
type Results struct {
	Labels      map[string]LabelResult
	TotalUptime time.Duration
}

// Benchmarker records elapsed-time samples per label under a short
// internal mutex and reports count/min/max/avg/percentiles.
type Benchmarker struct {
	mu     sync.Mutex
	labels map[string]*labelStats
	start  time.Time
}

// New builds an empty Benchmarker, stamping its start time.
func New() *Benchmarker {
	return &Benchmarker{
		labels: make(map[string]*labelStats),
		start:  time.Now(),
	}
}

// stopFunc, returned by Measure, stops the timer and records the sample.
type stopFunc func()

// Measure starts a scoped timer for label. The caller must invoke the
// returned function exactly once, typically via defer, guaranteeing
// the sample is recorded on every exit path including errors.
func (b *Benchmarker) Measure(label string) stopFunc {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		stageLatency.WithLabelValues(label).Observe(float64(elapsed) / float64(time.Millisecond))

		b.mu.Lock()
		defer b.mu.Unlock()
		stats, ok := b.labels[label]
		if !ok {
			stats = &labelStats{}
			b.labels[label] = stats
		}
		stats.record(elapsed)
	}
}

// Results computes avg/p50/p90/p99 over each label's stored history
// plus a total-uptime entry, observing a consistent snapshot of the
// aggregates at call time.
func (b *Benchmarker) Results() Results {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := Results{
		Labels:      make(map[string]LabelResult, len(b.labels)),
		TotalUptime: time.Since(b.start),
	}

	for label, stats := range b.labels {
		var avg time.Duration
		if stats.count > 0 {
			avg = stats.total / time.Duration(stats.count)
		}
		out.Labels[label] = LabelResult{
			Count: stats.count,
			Total: stats.total,
			Min:   stats.min,
			Max:   stats.max,
			Last:  stats.last,
			Avg:   avg,
			P50:   percentile(stats.history, 0.50),
			P90:   percentile(stats.history, 0.90),
			P99:   percentile(stats.history, 0.99),
		}
	}

	return out
}

// Reset clears all recorded timings and re-stamps the start time.
func (b *Benchmarker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.labels = make(map[string]*labelStats)
	b.start = time.Now()
}
