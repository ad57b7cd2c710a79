// Package metrics provides in-process latency tracking for pipeline stages.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// StageTracker tracks per-stage latencies (rule, pattern, ai, webhook, persist)
// over a sliding window and reports percentiles.
type StageTracker struct {
	mu       sync.RWMutex
	byStage  map[string]*window
	maxTrack int
}

type window struct {
	samples []int64 // microseconds
	sorted  bool
}

// NewStageTracker creates a tracker keeping windowSize samples per stage.
func NewStageTracker(windowSize int) *StageTracker {
	if windowSize <= 0 {
		windowSize = 500
	}
	return &StageTracker{
		byStage:  make(map[string]*window),
		maxTrack: windowSize,
	}
}

// Record records one latency sample for a stage.
func (t *StageTracker) Record(stage string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.byStage[stage]
	if !ok {
		w = &window{samples: make([]int64, 0, t.maxTrack)}
		t.byStage[stage] = w
	}

	if len(w.samples) >= t.maxTrack {
		// Drop the oldest tenth instead of shifting one at a time
		drop := t.maxTrack / 10
		if drop < 1 {
			drop = 1
		}
		w.samples = w.samples[drop:]
	}

	w.samples = append(w.samples, d.Microseconds())
	w.sorted = false
}

// StageStats holds latency statistics for one stage.
type StageStats struct {
	Stage string        `json:"stage"`
	Count int           `json:"count"`
	Avg   time.Duration `json:"avg"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	Max   time.Duration `json:"max"`
}

// Stats returns statistics for every tracked stage.
func (t *StageTracker) Stats() []StageStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]StageStats, 0, len(t.byStage))
	for stage, w := range t.byStage {
		n := len(w.samples)
		if n == 0 {
			continue
		}
		if !w.sorted {
			sort.Slice(w.samples, func(i, j int) bool { return w.samples[i] < w.samples[j] })
			w.sorted = true
		}

		var sum int64
		for _, v := range w.samples {
			sum += v
		}

		out = append(out, StageStats{
			Stage: stage,
			Count: n,
			Avg:   time.Duration(sum/int64(n)) * time.Microsecond,
			P50:   time.Duration(w.samples[(n-1)*50/100]) * time.Microsecond,
			P95:   time.Duration(w.samples[(n-1)*95/100]) * time.Microsecond,
			Max:   time.Duration(w.samples[n-1]) * time.Microsecond,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Stage < out[j].Stage })
	return out
}

// Reset clears all samples.
func (t *StageTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byStage = make(map[string]*window)
}
