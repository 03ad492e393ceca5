package source

import (
	"math"
	"sort"
)

// latencyWindowSize is how many recent calls feed the percentiles.
const latencyWindowSize = 256

// latencyWindow keeps the last N call durations in a circular buffer.
// Callers hold the adapter lock.
type latencyWindow struct {
	samples []float64 // ms
	pos     int
	count   int
}

func newLatencyWindow(capacity int) *latencyWindow {
	if capacity <= 0 {
		capacity = latencyWindowSize
	}
	return &latencyWindow{samples: make([]float64, capacity)}
}

func (w *latencyWindow) add(ms float64) {
	w.samples[w.pos] = ms
	w.pos = (w.pos + 1) % len(w.samples)
	if w.count < len(w.samples) {
		w.count++
	}
}

// percentiles returns p50 and p95 over the window, zero when empty.
func (w *latencyWindow) percentiles() (p50, p95 float64) {
	if w.count == 0 {
		return 0, 0
	}
	sorted := make([]float64, w.count)
	if w.count == len(w.samples) {
		copy(sorted, w.samples[w.pos:])
		copy(sorted[len(w.samples)-w.pos:], w.samples[:w.pos])
	} else {
		copy(sorted, w.samples[:w.count])
	}
	sort.Float64s(sorted)
	return percentile(sorted, 0.50), percentile(sorted, 0.95)
}

// percentile interpolates the p-th quantile (0..1) of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	switch n {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}
	rank := p * float64(n-1)
	lower := int(math.Floor(rank))
	if lower+1 >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[lower+1]*frac
}
