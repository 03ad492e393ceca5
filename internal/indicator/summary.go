package indicator

import "math"

// Trend labels.
const (
	Bullish = "bullish"
	Bearish = "bearish"
	Neutral = "neutral"
)

// Recommendation labels.
const (
	Buy  = "buy"
	Sell = "sell"
	Hold = "hold"
)

// Vote weights for the composite summary.
const (
	WeightMovingAverage = 0.30
	WeightRSI           = 0.25
	WeightMACD          = 0.20

	RSIOverbought = 70.0
	RSIOversold   = 30.0

	trendThreshold  = 0.6
	strongThreshold = 0.8
)

// Summary is the composite signal derived from the latest indicator values.
type Summary struct {
	Trend          string  `json:"trend"`
	Strength       string  `json:"strength"`
	Recommendation string  `json:"recommendation"`
	Confidence     float64 `json:"confidence"`
}

// Inputs are the latest values fed to Summarize. NaN means the signal is
// unavailable and does not vote.
type Inputs struct {
	Price      float64
	SMA20      float64
	SMA50      float64
	RSI        float64
	MACD       float64
	MACDSignal float64
}

// Summarize runs a weighted vote over three signals. Each signal that is not
// neutral adds its weight to the bullish or bearish bucket; a bucket holding
// more than 60% of the active weight sets the trend.
func Summarize(in Inputs) Summary {
	var bull, bear float64

	switch {
	case anyNaN(in.Price, in.SMA20, in.SMA50):
	case in.Price > in.SMA20 && in.SMA20 > in.SMA50:
		bull += WeightMovingAverage
	case in.Price < in.SMA20 && in.SMA20 < in.SMA50:
		bear += WeightMovingAverage
	}

	switch {
	case math.IsNaN(in.RSI):
	case in.RSI > RSIOverbought:
		bear += WeightRSI
	case in.RSI < RSIOversold:
		bull += WeightRSI
	}

	switch {
	case anyNaN(in.MACD, in.MACDSignal):
	case in.MACD > in.MACDSignal:
		bull += WeightMACD
	case in.MACD < in.MACDSignal:
		bear += WeightMACD
	}

	total := bull + bear
	if total == 0 {
		return neutralSummary()
	}

	bullFrac, bearFrac := bull/total, bear/total
	switch {
	case bullFrac > trendThreshold:
		return Summary{Trend: Bullish, Strength: strength(bullFrac), Recommendation: Buy, Confidence: bullFrac}
	case bearFrac > trendThreshold:
		return Summary{Trend: Bearish, Strength: strength(bearFrac), Recommendation: Sell, Confidence: bearFrac}
	}
	return neutralSummary()
}

func neutralSummary() Summary {
	return Summary{Trend: Neutral, Strength: "weak", Recommendation: Hold, Confidence: 0.5}
}

func strength(frac float64) string {
	if frac > strongThreshold {
		return "strong"
	}
	return "moderate"
}

func anyNaN(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}
