package indicator

import "math"

// EMA returns the exponential moving average of closes. The first defined
// value, at index window-1, is the SMA of the first window closes; after that
// each value is prev + (close-prev) * 2/(window+1).
func EMA(closes []float64, window int) Values {
	out := nanValues(len(closes))
	if window <= 0 || window > len(closes) {
		return out
	}

	k := 2.0 / float64(window+1)
	sum := 0.0
	for i := 0; i < window; i++ {
		sum += closes[i]
	}
	prev := sum / float64(window)
	out[window-1] = prev

	for i := window; i < len(closes); i++ {
		prev += (closes[i] - prev) * k
		out[i] = prev
	}
	return out
}

// EMAFromValues applies an EMA to a derived series that may contain NaN.
// Leading NaN entries are skipped and the seed is the mean of the first window
// defined values. A NaN met after seeding carries the previous EMA forward.
func EMAFromValues(values []float64, window int) Values {
	out := nanValues(len(values))
	if window <= 0 {
		return out
	}

	start := 0
	for start < len(values) && math.IsNaN(values[start]) {
		start++
	}

	k := 2.0 / float64(window+1)
	var (
		seeded bool
		count  int
		sum    float64
		prev   float64
	)
	for i := start; i < len(values); i++ {
		v := values[i]
		if !seeded {
			if math.IsNaN(v) {
				continue
			}
			sum += v
			count++
			if count == window {
				prev = sum / float64(window)
				out[i] = prev
				seeded = true
			}
			continue
		}
		if math.IsNaN(v) {
			out[i] = prev
			continue
		}
		prev += (v - prev) * k
		out[i] = prev
	}
	return out
}
