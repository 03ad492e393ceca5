package indicator

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/markcheno/go-talib"

	"marketdata-hub/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

func assertNaN(t *testing.T, label string, got float64) {
	t.Helper()
	if !math.IsNaN(got) {
		t.Errorf("%s: got %.6f, want NaN", label, got)
	}
}

// wave is a deterministic, non-monotonic price path.
func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 10*math.Sin(float64(i)/7) + 3*math.Cos(float64(i)/3) + float64(i)*0.05
	}
	return out
}

func seriesFromCloses(symbol string, closes []float64) *model.Series {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	pts := make([]model.Point, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		pts[i] = model.Point{
			Date:   start.AddDate(0, 0, i),
			Open:   open,
			High:   math.Max(open, c) * 1.01,
			Low:    math.Min(open, c) * 0.99,
			Close:  c,
			Volume: 1000,
		}
	}
	return model.NewSeries(symbol, pts, []string{"date", "open", "high", "low", "close", "volume"})
}

// ────────────────────────────────────────────────────────────
// SMA / EMA
// ────────────────────────────────────────────────────────────

func TestSMA_Window3(t *testing.T) {
	got := SMA([]float64{10, 20, 30, 40}, 3)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	assertNaN(t, "SMA[0]", got[0])
	assertNaN(t, "SMA[1]", got[1])
	assertClose(t, "SMA[2]", got[2], 20, 1e-12)
	assertClose(t, "SMA[3]", got[3], 30, 1e-12)
}

func TestSMA_WindowLongerThanInput(t *testing.T) {
	for _, v := range SMA([]float64{1, 2}, 5) {
		assertNaN(t, "SMA", v)
	}
}

func TestEMA_SeededFromSMA(t *testing.T) {
	// closes 1..5, window 3: seed=(1+2+3)/3=2, k=0.5
	// idx3 = 2 + (4-2)*0.5 = 3, idx4 = 3 + (5-3)*0.5 = 4
	got := EMA([]float64{1, 2, 3, 4, 5}, 3)
	assertNaN(t, "EMA[1]", got[1])
	assertClose(t, "EMA[2]", got[2], 2, 1e-12)
	assertClose(t, "EMA[3]", got[3], 3, 1e-12)
	assertClose(t, "EMA[4]", got[4], 4, 1e-12)
}

func TestEMAFromValues_SkipsLeadingAndCarriesGaps(t *testing.T) {
	nan := math.NaN()
	// window 2, k=2/3: seed at idx3 = (1+2)/2 = 1.5
	// idx4 = 1.5 + (3-1.5)*2/3 = 2.5; idx5 NaN carries 2.5
	// idx6 = 2.5 + (5-2.5)*2/3 = 4.166667
	got := EMAFromValues([]float64{nan, nan, 1, 2, 3, nan, 5}, 2)
	assertNaN(t, "EMAv[0]", got[0])
	assertNaN(t, "EMAv[2]", got[2])
	assertClose(t, "EMAv[3]", got[3], 1.5, 1e-12)
	assertClose(t, "EMAv[4]", got[4], 2.5, 1e-12)
	assertClose(t, "EMAv[5]", got[5], 2.5, 1e-12)
	assertClose(t, "EMAv[6]", got[6], 4.166667, 1e-6)
}

func TestSMA_EMA_MatchTalib(t *testing.T) {
	closes := wave(120)
	for _, w := range []int{5, 20, 50} {
		ours := SMA(closes, w)
		ref := talib.Sma(closes, w)
		for i := w - 1; i < len(closes); i++ {
			assertClose(t, "SMA vs talib", ours[i], ref[i], 1e-9)
		}

		oursE := EMA(closes, w)
		refE := talib.Ema(closes, w)
		for i := w - 1; i < len(closes); i++ {
			assertClose(t, "EMA vs talib", oursE[i], refE[i], 1e-9)
		}
	}
}

// ────────────────────────────────────────────────────────────
// RSI
// ────────────────────────────────────────────────────────────

func TestRSI_HandCalculated(t *testing.T) {
	// window 2 over deltas +1,-1 → avgGain 0.5, avgLoss 0.5 → 50
	got := RSI([]float64{1, 2, 1, 2}, 2)
	assertNaN(t, "RSI[0]", got[0])
	assertNaN(t, "RSI[1]", got[1])
	assertClose(t, "RSI[2]", got[2], 50, 1e-12)
	// deltas -1,+1 → 50
	assertClose(t, "RSI[3]", got[3], 50, 1e-12)
}

func TestRSI_Extremes(t *testing.T) {
	up := make([]float64, 30)
	down := make([]float64, 30)
	for i := range up {
		up[i] = float64(100 + i)
		down[i] = float64(100 - i)
	}
	assertClose(t, "RSI all gains", RSI(up, 14).Last(), 100, 1e-12)
	assertClose(t, "RSI all losses", RSI(down, 14).Last(), 0, 1e-12)
}

func TestRSI_Bounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		closes := make([]float64, 15+rng.Intn(200))
		price := 50.0
		for i := range closes {
			price *= 1 + (rng.Float64()-0.5)*0.08
			closes[i] = price
		}
		rsi := RSI(closes, 14)
		assertNaN(t, "RSI[0]", rsi[0])
		for i, v := range rsi {
			if i < 14 {
				assertNaN(t, "RSI warmup", v)
				continue
			}
			if v < 0 || v > 100 {
				t.Fatalf("trial %d idx %d: RSI %.4f out of [0,100]", trial, i, v)
			}
		}
	}
}

// ────────────────────────────────────────────────────────────
// MACD / Bollinger
// ────────────────────────────────────────────────────────────

func TestMACD_Alignment(t *testing.T) {
	closes := wave(80)
	m := MACD(closes, 12, 26, 9)
	if len(m.Line) != 80 || len(m.Signal) != 80 || len(m.Histogram) != 80 {
		t.Fatal("MACD outputs not aligned with input")
	}
	assertNaN(t, "line[24]", m.Line[24])
	if math.IsNaN(m.Line[25]) {
		t.Error("line[25] should be defined")
	}
	// signal seeds after 9 defined MACD values: index 25+8
	assertNaN(t, "signal[32]", m.Signal[32])
	if math.IsNaN(m.Signal[33]) {
		t.Error("signal[33] should be defined")
	}
	for i := 33; i < 80; i++ {
		assertClose(t, "histogram", m.Histogram[i], m.Line[i]-m.Signal[i], 1e-12)
	}
}

func TestBollinger_HandCalculated(t *testing.T) {
	// [1,2,3]: mean 2, population sd sqrt(2/3)
	b := Bollinger([]float64{1, 2, 3}, 3, 2)
	sd := math.Sqrt(2.0 / 3.0)
	assertClose(t, "middle", b.Middle[2], 2, 1e-12)
	assertClose(t, "upper", b.Upper[2], 2+2*sd, 1e-12)
	assertClose(t, "lower", b.Lower[2], 2-2*sd, 1e-12)
	assertNaN(t, "upper[1]", b.Upper[1])
}

func TestBollinger_MatchesTalib(t *testing.T) {
	closes := wave(100)
	b := Bollinger(closes, 20, 2)
	up, mid, lo := talib.BBands(closes, 20, 2, 2, talib.SMA)
	for i := 19; i < len(closes); i++ {
		assertClose(t, "upper vs talib", b.Upper[i], up[i], 1e-6)
		assertClose(t, "middle vs talib", b.Middle[i], mid[i], 1e-6)
		assertClose(t, "lower vs talib", b.Lower[i], lo[i], 1e-6)
	}
}

// ────────────────────────────────────────────────────────────
// Levels / volatility
// ────────────────────────────────────────────────────────────

func TestSupportResistance_TrailingWindow(t *testing.T) {
	s := seriesFromCloses("X", wave(120))
	sup, res := SupportResistance(s.Points, 50)

	wantSup, wantRes := math.Inf(1), math.Inf(-1)
	for _, p := range s.Points[70:] {
		wantSup = math.Min(wantSup, p.Low)
		wantRes = math.Max(wantRes, p.High)
	}
	assertClose(t, "support", sup, wantSup, 1e-12)
	assertClose(t, "resistance", res, wantRes, 1e-12)
}

func TestVolatility(t *testing.T) {
	// constant growth: every return identical, sd 0
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 * math.Pow(1.01, float64(i))
	}
	assertClose(t, "constant returns", Volatility(closes, 30), 0, 1e-9)

	// alternating +1%/-1% has population sd ≈ 0.01
	alt := []float64{100}
	for i := 1; i <= 31; i++ {
		if i%2 == 1 {
			alt = append(alt, alt[i-1]*1.01)
		} else {
			alt = append(alt, alt[i-1]*0.99)
		}
	}
	want := 0.01 * math.Sqrt(252)
	got := Volatility(alt, 30)
	if math.Abs(got-want) > 0.002 {
		t.Errorf("alternating: got %.5f, want ≈ %.5f", got, want)
	}

	assertNaN(t, "single close", Volatility([]float64{100}, 30))
}

// ────────────────────────────────────────────────────────────
// Summary / end-to-end
// ────────────────────────────────────────────────────────────

func TestSummarize(t *testing.T) {
	nan := math.NaN()
	cases := []struct {
		name string
		in   Inputs
		want Summary
	}{
		{
			name: "all bullish",
			in:   Inputs{Price: 110, SMA20: 105, SMA50: 100, RSI: 25, MACD: 1, MACDSignal: 0.5},
			want: Summary{Trend: Bullish, Strength: "strong", Recommendation: Buy, Confidence: 1},
		},
		{
			name: "all bearish",
			in:   Inputs{Price: 90, SMA20: 95, SMA50: 100, RSI: 75, MACD: -1, MACDSignal: 0},
			want: Summary{Trend: Bearish, Strength: "strong", Recommendation: Sell, Confidence: 1},
		},
		{
			name: "ma and macd bullish, rsi overbought",
			in:   Inputs{Price: 110, SMA20: 105, SMA50: 100, RSI: 80, MACD: 1, MACDSignal: 0.5},
			want: Summary{Trend: Bullish, Strength: "moderate", Recommendation: Buy, Confidence: 0.5 / 0.75},
		},
		{
			name: "split vote",
			in:   Inputs{Price: 110, SMA20: 105, SMA50: 100, RSI: 50, MACD: -1, MACDSignal: 0},
			want: Summary{Trend: Neutral, Strength: "weak", Recommendation: Hold, Confidence: 0.5},
		},
		{
			name: "nothing active",
			in:   Inputs{Price: 100, SMA20: nan, SMA50: nan, RSI: nan, MACD: nan, MACDSignal: nan},
			want: Summary{Trend: Neutral, Strength: "weak", Recommendation: Hold, Confidence: 0.5},
		},
	}
	for _, c := range cases {
		got := Summarize(c.in)
		if got.Trend != c.want.Trend || got.Strength != c.want.Strength || got.Recommendation != c.want.Recommendation {
			t.Errorf("%s: got %+v, want %+v", c.name, got, c.want)
		}
		assertClose(t, c.name+" confidence", got.Confidence, c.want.Confidence, 1e-9)
	}
}

func TestCompute_SteadyUptrendIsBullish(t *testing.T) {
	closes := make([]float64, 300)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		closes[i] = closes[i-1] * 1.005
	}

	b, err := Compute(seriesFromCloses("UP", closes))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if b.Summary.Trend != Bullish {
		t.Errorf("trend = %s, want bullish", b.Summary.Trend)
	}
	if b.Summary.Recommendation != Buy {
		t.Errorf("recommendation = %s, want buy", b.Summary.Recommendation)
	}
	if b.Summary.Confidence <= 0.6 || b.Summary.Confidence > 1 {
		t.Errorf("confidence = %.3f", b.Summary.Confidence)
	}
	for _, w := range []int{5, 10, 20, 50, 200} {
		if len(b.SMA[w]) != 300 {
			t.Errorf("SMA(%d) length %d", w, len(b.SMA[w]))
		}
	}
	if b.Support >= b.Resistance {
		t.Errorf("support %.2f >= resistance %.2f", b.Support, b.Resistance)
	}
}

func TestCompute_InsufficientData(t *testing.T) {
	_, err := Compute(seriesFromCloses("ONE", []float64{100}))
	var ide *InsufficientDataError
	if !errors.As(err, &ide) {
		t.Fatalf("got %v, want InsufficientDataError", err)
	}
	if ide.Have != 1 || ide.Need != 2 {
		t.Errorf("error = %+v", ide)
	}

	// Two points is enough; long windows are simply all-NaN.
	b, err := Compute(seriesFromCloses("TWO", []float64{100, 101}))
	if err != nil {
		t.Fatalf("two points: %v", err)
	}
	if _, ok := b.SMA[200].Latest(); ok {
		t.Error("SMA(200) should be undefined for two points")
	}
}

func TestValues_JSONNull(t *testing.T) {
	b, err := json.Marshal(Values{math.NaN(), 1.5})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "[null,1.5]" {
		t.Errorf("got %s", b)
	}

	var v Values
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatal(err)
	}
	assertNaN(t, "v[0]", v[0])
	assertClose(t, "v[1]", v[1], 1.5, 0)
}

func TestNewEngine_Defaults(t *testing.T) {
	e := NewEngine(Params{RSIPeriod: 7})
	p := e.Params()
	if p.RSIPeriod != 7 || p.MACDSlow != 26 || len(p.SMAWindows) != 5 {
		t.Errorf("params = %+v", p)
	}
}
