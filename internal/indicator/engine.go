package indicator

import (
	"time"

	"marketdata-hub/internal/model"
)

// Params configures the windows used by an Engine.
type Params struct {
	SMAWindows      []int
	EMAWindows      []int
	RSIPeriod       int
	MACDFast        int
	MACDSlow        int
	MACDSignal      int
	BollingerWindow int
	BollingerK      float64
	LevelsLookback  int
	VolatilityDays  int
}

// DefaultParams returns the standard daily-chart configuration.
func DefaultParams() Params {
	return Params{
		SMAWindows:      []int{5, 10, 20, 50, 200},
		EMAWindows:      []int{12, 26},
		RSIPeriod:       14,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		BollingerWindow: 20,
		BollingerK:      2,
		LevelsLookback:  50,
		VolatilityDays:  30,
	}
}

// Bundle is the full set of indicators for one series. It is derived per
// request and never cached by the engine.
type Bundle struct {
	Symbol     string          `json:"symbol"`
	Dates      []time.Time     `json:"dates"`
	Closes     []float64       `json:"closes"`
	SMA        map[int]Values  `json:"sma"`
	EMA        map[int]Values  `json:"ema"`
	RSI        Values          `json:"rsi"`
	MACD       MACDResult      `json:"macd"`
	Bollinger  BollingerResult `json:"bollinger"`
	Support    float64         `json:"support"`
	Resistance float64         `json:"resistance"`
	Volatility float64         `json:"volatility"`
	Summary    Summary         `json:"summary"`
}

// Engine computes Bundles with a fixed parameter set. It holds no per-series
// state and is safe for concurrent use.
type Engine struct {
	params Params
}

// NewEngine creates an engine. Zero-valued fields fall back to DefaultParams.
func NewEngine(p Params) *Engine {
	d := DefaultParams()
	if len(p.SMAWindows) == 0 {
		p.SMAWindows = d.SMAWindows
	}
	if len(p.EMAWindows) == 0 {
		p.EMAWindows = d.EMAWindows
	}
	if p.RSIPeriod <= 0 {
		p.RSIPeriod = d.RSIPeriod
	}
	if p.MACDFast <= 0 {
		p.MACDFast = d.MACDFast
	}
	if p.MACDSlow <= 0 {
		p.MACDSlow = d.MACDSlow
	}
	if p.MACDSignal <= 0 {
		p.MACDSignal = d.MACDSignal
	}
	if p.BollingerWindow <= 0 {
		p.BollingerWindow = d.BollingerWindow
	}
	if p.BollingerK <= 0 {
		p.BollingerK = d.BollingerK
	}
	if p.LevelsLookback <= 0 {
		p.LevelsLookback = d.LevelsLookback
	}
	if p.VolatilityDays <= 0 {
		p.VolatilityDays = d.VolatilityDays
	}
	return &Engine{params: p}
}

// Params returns the effective configuration.
func (e *Engine) Params() Params { return e.params }

// minPoints is the shortest series Compute accepts.
const minPoints = 2

// Compute derives every indicator for s.
func (e *Engine) Compute(s *model.Series) (*Bundle, error) {
	if s == nil || len(s.Points) < minPoints {
		have, sym := 0, ""
		if s != nil {
			have, sym = len(s.Points), s.Symbol
		}
		return nil, &InsufficientDataError{Symbol: sym, Have: have, Need: minPoints}
	}

	p := e.params
	closes := s.Closes()
	dates := make([]time.Time, len(s.Points))
	for i, pt := range s.Points {
		dates[i] = pt.Date
	}

	b := &Bundle{
		Symbol: s.Symbol,
		Dates:  dates,
		Closes: closes,
		SMA:    make(map[int]Values, len(p.SMAWindows)),
		EMA:    make(map[int]Values, len(p.EMAWindows)),
	}
	for _, w := range p.SMAWindows {
		b.SMA[w] = SMA(closes, w)
	}
	for _, w := range p.EMAWindows {
		b.EMA[w] = EMA(closes, w)
	}
	b.RSI = RSI(closes, p.RSIPeriod)
	b.MACD = MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	b.Bollinger = Bollinger(closes, p.BollingerWindow, p.BollingerK)
	b.Support, b.Resistance = SupportResistance(s.Points, p.LevelsLookback)
	b.Volatility = Volatility(closes, p.VolatilityDays)

	sma20, sma50 := b.SMA[20], b.SMA[50]
	if sma20 == nil {
		sma20 = SMA(closes, 20)
	}
	if sma50 == nil {
		sma50 = SMA(closes, 50)
	}
	b.Summary = Summarize(Inputs{
		Price:      closes[len(closes)-1],
		SMA20:      sma20.Last(),
		SMA50:      sma50.Last(),
		RSI:        b.RSI.Last(),
		MACD:       b.MACD.Line.Last(),
		MACDSignal: b.MACD.Signal.Last(),
	})
	return b, nil
}

var defaultEngine = NewEngine(DefaultParams())

// Compute derives every indicator for s using DefaultParams.
func Compute(s *model.Series) (*Bundle, error) {
	return defaultEngine.Compute(s)
}
