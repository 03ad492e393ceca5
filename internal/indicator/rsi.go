package indicator

// RSI returns the relative strength index over the trailing window of
// day-over-day close changes. Gains and losses are plain trailing means, not
// Wilder-smoothed. Index 0 has no prior close and indexes below window lack
// a full window of changes; both are NaN. A window with no losses yields 100.
func RSI(closes []float64, window int) Values {
	out := nanValues(len(closes))
	if window <= 0 || len(closes) <= window {
		return out
	}

	for i := window; i < len(closes); i++ {
		var gain, loss float64
		for j := i - window + 1; j <= i; j++ {
			d := closes[j] - closes[j-1]
			if d > 0 {
				gain += d
			} else {
				loss -= d
			}
		}
		if loss == 0 {
			out[i] = 100
			continue
		}
		avgGain := gain / float64(window)
		avgLoss := loss / float64(window)
		out[i] = 100 - 100/(1+avgGain/avgLoss)
	}
	return out
}
