package indicator

// SMA returns the simple moving average of the trailing window closes.
// The first window-1 positions are NaN. Runs in O(n) with a rolling sum.
func SMA(closes []float64, window int) Values {
	out := nanValues(len(closes))
	if window <= 0 || window > len(closes) {
		return out
	}

	sum := 0.0
	for i, c := range closes {
		sum += c
		if i >= window {
			sum -= closes[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}
