package indicator

// MACDResult holds the three MACD series.
type MACDResult struct {
	Line      Values `json:"line"`
	Signal    Values `json:"signal"`
	Histogram Values `json:"histogram"`
}

// MACD computes EMA(fast)-EMA(slow), its EMA(signal) and the difference.
func MACD(closes []float64, fast, slow, signal int) MACDResult {
	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)

	line := make(Values, len(closes))
	for i := range closes {
		line[i] = emaFast[i] - emaSlow[i] // NaN propagates
	}

	sig := EMAFromValues(line, signal)
	hist := make(Values, len(closes))
	for i := range closes {
		hist[i] = line[i] - sig[i]
	}
	return MACDResult{Line: line, Signal: sig, Histogram: hist}
}
