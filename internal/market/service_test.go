package market

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"marketdata-hub/internal/cache"
	"marketdata-hub/internal/indicator"
	"marketdata-hub/internal/model"
	"marketdata-hub/internal/source"
)

// stubProvider answers from fixed data and counts calls.
type stubProvider struct {
	calls  atomic.Int32
	info   map[string]*model.StockInfo
	series map[string]*model.Series
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) StockInfo(_ context.Context, sym string) (*model.StockInfo, error) {
	p.calls.Add(1)
	if v, ok := p.info[sym]; ok {
		return v, nil
	}
	return nil, source.ErrNoData
}

func (p *stubProvider) MarketOverview(context.Context) (*model.MarketOverview, error) {
	p.calls.Add(1)
	return &model.MarketOverview{Indices: []model.IndexQuote{{Symbol: "SPY", Value: 500}}, MarketStatus: model.MarketOpen}, nil
}

func (p *stubProvider) HistoricalSeries(_ context.Context, sym, _ string) (*model.Series, error) {
	p.calls.Add(1)
	if v, ok := p.series[sym]; ok {
		return v, nil
	}
	return nil, source.ErrNoData
}

func (p *stubProvider) SectorPerformance(context.Context) ([]model.SectorPerformance, error) {
	p.calls.Add(1)
	return nil, errors.New("sector feed down")
}

func (p *stubProvider) Search(context.Context, string) ([]model.SearchResult, error) {
	p.calls.Add(1)
	return []model.SearchResult{{Symbol: "AAPL"}}, nil
}

// rising is a steady geometric uptrend of n daily points.
func rising(symbol string, n int) *model.Series {
	pts := make([]model.Point, n)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := 100.0
	for i := range pts {
		c *= 1.005
		pts[i] = model.Point{Date: day.AddDate(0, 0, i), Open: c - 0.5, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return model.NewSeries(symbol, pts, []string{"date", "open", "high", "low", "close", "volume"})
}

func newTestService(p *stubProvider) *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	coord := source.NewCoordinator(log, source.Wrap(p, source.Descriptor{Priority: source.PriorityHigh, Timeout: time.Second}))
	return NewService(coord, cache.NewMemory(), cache.DefaultTTLs(), nil, log)
}

func TestStockInfo_CacheAside(t *testing.T) {
	p := &stubProvider{info: map[string]*model.StockInfo{"AAPL": {Symbol: "AAPL", Price: 190}}}
	svc := newTestService(p)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		info, err := svc.StockInfo(ctx, " aapl ")
		if err != nil {
			t.Fatal(err)
		}
		if info.Price != 190 {
			t.Fatalf("price = %v", info.Price)
		}
	}
	if p.calls.Load() != 1 {
		t.Errorf("provider calls = %d, want 1", p.calls.Load())
	}
	st := svc.CacheStats(ctx)
	if st.Hits != 2 || st.Misses != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestStockInfo_AbsenceIsNotFoundAndNotCached(t *testing.T) {
	p := &stubProvider{}
	svc := newTestService(p)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.StockInfo(ctx, "NOPE"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	}
	if p.calls.Load() != 2 {
		t.Errorf("provider calls = %d, want 2", p.calls.Load())
	}
}

func TestSectors_FailureIsNotFound(t *testing.T) {
	svc := newTestService(&stubProvider{})
	if _, err := svc.Sectors(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestHistoryRange(t *testing.T) {
	p := &stubProvider{series: map[string]*model.Series{"MSFT": rising("MSFT", 30)}}
	svc := newTestService(p)
	from := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC)

	s, err := svc.HistoryRange(context.Background(), "msft", from, to)
	if err != nil {
		t.Fatal(err)
	}
	if s.TotalPoints != 5 || !s.StartDate.Equal(from) || !s.EndDate.Equal(to) {
		t.Errorf("got %d points %v..%v", s.TotalPoints, s.StartDate, s.EndDate)
	}

	_, err = svc.HistoryRange(context.Background(), "MSFT", to.AddDate(1, 0, 0), time.Time{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("empty range err = %v", err)
	}
}

func TestHistoryBatch_SkipsMissing(t *testing.T) {
	series := map[string]*model.Series{}
	var syms []string
	for i := 0; i < 7; i++ {
		sym := fmt.Sprintf("S%d", i)
		series[sym] = rising(sym, 5)
		syms = append(syms, sym)
	}
	syms = append(syms, "MISSING")
	svc := newTestService(&stubProvider{series: series})

	got := svc.HistoryBatch(context.Background(), syms, "")
	if len(got) != 7 {
		t.Errorf("got %d series, want 7", len(got))
	}
}

func TestAnalysis(t *testing.T) {
	p := &stubProvider{series: map[string]*model.Series{"UP": rising("UP", 120), "ONE": rising("ONE", 1)}}
	svc := newTestService(p)

	b, err := svc.Analysis(context.Background(), "UP", "max")
	if err != nil {
		t.Fatal(err)
	}
	if b.Summary.Trend != indicator.Bullish {
		t.Errorf("trend = %q", b.Summary.Trend)
	}

	_, err = svc.Analysis(context.Background(), "ONE", "max")
	var ide *indicator.InsufficientDataError
	if !errors.As(err, &ide) {
		t.Errorf("err = %v, want InsufficientDataError", err)
	}
}

func TestClearCache(t *testing.T) {
	p := &stubProvider{}
	svc := newTestService(p)
	ctx := context.Background()
	if _, err := svc.MarketOverview(ctx); err != nil {
		t.Fatal(err)
	}
	svc.ClearCache(ctx)
	if _, err := svc.MarketOverview(ctx); err != nil {
		t.Fatal(err)
	}
	if p.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 after clear", p.calls.Load())
	}
}
