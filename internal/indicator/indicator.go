// Package indicator computes technical indicators over daily price series.
//
// Every series-valued indicator returns Values aligned index-for-index with
// its input. Positions without enough history hold NaN, never zero.
package indicator

import (
	"encoding/json"
	"fmt"
	"math"
)

// Values is an indicator series aligned with the input closes.
// NaN marks positions where the indicator is undefined.
type Values []float64

// MarshalJSON encodes NaN entries as null.
func (v Values) MarshalJSON() ([]byte, error) {
	out := make([]*float64, len(v))
	for i := range v {
		if !math.IsNaN(v[i]) && !math.IsInf(v[i], 0) {
			x := v[i]
			out[i] = &x
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes null entries back to NaN.
func (v *Values) UnmarshalJSON(b []byte) error {
	var in []*float64
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	out := make(Values, len(in))
	for i, x := range in {
		if x == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *x
	}
	*v = out
	return nil
}

// Latest returns the last defined value.
func (v Values) Latest() (float64, bool) {
	for i := len(v) - 1; i >= 0; i-- {
		if !math.IsNaN(v[i]) {
			return v[i], true
		}
	}
	return math.NaN(), false
}

// Last returns the final element, NaN when empty.
func (v Values) Last() float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	return v[len(v)-1]
}

func nanValues(n int) Values {
	v := make(Values, n)
	for i := range v {
		v[i] = math.NaN()
	}
	return v
}

// InsufficientDataError is returned when a series is too short to analyse.
type InsufficientDataError struct {
	Symbol string
	Have   int
	Need   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("indicator %s: %d points, need at least %d", e.Symbol, e.Have, e.Need)
}
