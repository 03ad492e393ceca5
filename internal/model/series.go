package model

import (
	"math"
	"time"
)

// Point is one trading period of an instrument.
// Prices are positive, High >= max(Open, Close) and Low <= min(Open, Close).
type Point struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
	AdjClose *float64  `json:"adj_close,omitempty"`
}

// Valid reports whether the point satisfies the OHLC invariants.
func (p Point) Valid() bool {
	if p.Open <= 0 || p.High <= 0 || p.Low <= 0 || p.Close <= 0 {
		return false
	}
	if p.High < math.Max(p.Open, p.Close) {
		return false
	}
	if p.Low > math.Min(p.Open, p.Close) {
		return false
	}
	return p.High >= p.Low
}

// DateRange is an inclusive span of trading dates.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Series is a date-ordered history for one symbol. Points are ascending with
// unique dates. A Series is not mutated after construction; slicing helpers
// return new values sharing the underlying array.
type Series struct {
	Symbol      string    `json:"symbol"`
	Points      []Point   `json:"points"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	TotalPoints int       `json:"total_points"`
	Columns     []string  `json:"columns"`
}

// NewSeries builds a Series from already-sorted points.
func NewSeries(symbol string, points []Point, columns []string) *Series {
	s := &Series{
		Symbol:      symbol,
		Points:      points,
		TotalPoints: len(points),
		Columns:     columns,
	}
	if len(points) > 0 {
		s.StartDate = points[0].Date
		s.EndDate = points[len(points)-1].Date
	}
	return s
}

// WithPoints returns a copy of s restricted to the given points.
func (s *Series) WithPoints(points []Point) *Series {
	return NewSeries(s.Symbol, points, s.Columns)
}

// Range returns the date span covered by the series.
func (s *Series) Range() DateRange {
	return DateRange{Start: s.StartDate, End: s.EndDate}
}

// Closes extracts closing prices in order.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Close
	}
	return out
}

// Last returns the most recent point. ok is false for an empty series.
func (s *Series) Last() (p Point, ok bool) {
	if len(s.Points) == 0 {
		return Point{}, false
	}
	return s.Points[len(s.Points)-1], true
}
