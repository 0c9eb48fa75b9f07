// Package telemetry maintains the miner's sliding-window hashrate
// averages and, optionally, exposes them via Prometheus.
package telemetry

import "sync"

// Sample window sizes in one-minute samples, per spec.md §9: 6/90/360
// samples approximate 1m/15m/1h averages.
const (
	window1m  = 6
	window15m = 90
	window1h  = 360
)

// Tracker records one hashrate sample per minute and reports moving
// averages over the last 6/90/360 samples.
type Tracker struct {
	mu      sync.Mutex
	samples []float64
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// AddSample appends a per-minute hash-rate sample (hashes/second),
// capping the retained history at 360 samples (1 hour).
func (t *Tracker) AddSample(hashesPerSecond float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.samples = append(t.samples, hashesPerSecond)
	if len(t.samples) > window1h {
		t.samples = t.samples[len(t.samples)-window1h:]
	}
}

// Averages returns the 1-minute, 15-minute, and 1-hour moving averages
// over however many samples have been collected so far (fewer than the
// full window is fine — the average is over what's available).
func (t *Tracker) Averages() (avg1m, avg15m, avg1h float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	avg1m = meanOfLast(t.samples, window1m)
	avg15m = meanOfLast(t.samples, window15m)
	avg1h = meanOfLast(t.samples, window1h)
	return
}

func meanOfLast(samples []float64, n int) float64 {
	if len(samples) < n {
		n = len(samples)
	}
	if n == 0 {
		return 0
	}
	start := len(samples) - n
	var sum float64
	for _, s := range samples[start:] {
		sum += s
	}
	return sum / float64(n)
}
