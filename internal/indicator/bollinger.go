package indicator

import "math"

// BollingerResult holds the three bands.
type BollingerResult struct {
	Upper  Values `json:"upper"`
	Middle Values `json:"middle"`
	Lower  Values `json:"lower"`
}

// Bollinger returns SMA(window) ± k population standard deviations of the
// trailing window closes.
func Bollinger(closes []float64, window int, k float64) BollingerResult {
	mid := SMA(closes, window)
	upper := nanValues(len(closes))
	lower := nanValues(len(closes))

	for i := range closes {
		if math.IsNaN(mid[i]) {
			continue
		}
		sd := stddev(closes[i-window+1:i+1], mid[i])
		upper[i] = mid[i] + k*sd
		lower[i] = mid[i] - k*sd
	}
	return BollingerResult{Upper: upper, Middle: mid, Lower: lower}
}

// stddev is the population standard deviation of xs around mean.
func stddev(xs []float64, mean float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}
