package indicator

import (
	"math"

	"marketdata-hub/internal/model"
)

// TradingDaysPerYear annualizes daily volatility.
const TradingDaysPerYear = 252

// SupportResistance returns the lowest low and highest high of the trailing
// lookback points. It is a range marker, not a forecast.
func SupportResistance(points []model.Point, lookback int) (support, resistance float64) {
	if len(points) == 0 {
		return math.NaN(), math.NaN()
	}
	if lookback > 0 && lookback < len(points) {
		points = points[len(points)-lookback:]
	}
	support, resistance = points[0].Low, points[0].High
	for _, p := range points[1:] {
		support = math.Min(support, p.Low)
		resistance = math.Max(resistance, p.High)
	}
	return support, resistance
}

// Volatility returns the annualized population standard deviation of daily
// simple returns over the last period returns (period+1 closes). Shorter
// inputs use what is available; fewer than two closes gives NaN.
func Volatility(closes []float64, period int) float64 {
	if period > 0 && len(closes) > period+1 {
		closes = closes[len(closes)-period-1:]
	}
	if len(closes) < 2 {
		return math.NaN()
	}

	rets := make([]float64, 0, len(closes)-1)
	var sum float64
	for i := 1; i < len(closes); i++ {
		r := closes[i]/closes[i-1] - 1
		rets = append(rets, r)
		sum += r
	}
	return stddev(rets, sum/float64(len(rets))) * math.Sqrt(TradingDaysPerYear)
}
