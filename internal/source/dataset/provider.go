// Package dataset is the source adapter backed by a static repository of
// per-symbol delimited history files.
package dataset

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"marketdata-hub/internal/history"
	"marketdata-hub/internal/markethours"
	"marketdata-hub/internal/model"
	"marketdata-hub/internal/source"
)

// DefaultSearchLimit caps Search results.
const DefaultSearchLimit = 10

// Config describes what the dataset serves beyond plain symbol lookups.
type Config struct {
	Name        string             // default "dataset"
	Exchange    string             // reported on quotes and search hits
	Indices     []model.Instrument // composite indices for MarketOverview
	Sectors     []model.Instrument // sector proxies, Name is the sector label
	SearchLimit int
}

// Provider implements source.Provider over a history.Orchestrator.
type Provider struct {
	orch *history.Orchestrator
	cfg  Config
	log  *slog.Logger
	now  func() time.Time
}

var _ source.Provider = (*Provider)(nil)

// New creates the adapter.
func New(orch *history.Orchestrator, cfg Config, log *slog.Logger) *Provider {
	if cfg.Name == "" {
		cfg.Name = "dataset"
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = DefaultSearchLimit
	}
	if log == nil {
		log = slog.Default()
	}
	return &Provider{orch: orch, cfg: cfg, log: log.With("adapter", cfg.Name), now: time.Now}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) series(ctx context.Context, symbol string) (*model.Series, error) {
	s, err := p.orch.GetSeries(ctx, symbol)
	if errors.Is(err, history.ErrNotFound) {
		return nil, source.ErrNoData
	}
	return s, err
}

// StockInfo derives a quote from the last two points of the stored series.
func (p *Provider) StockInfo(ctx context.Context, symbol string) (*model.StockInfo, error) {
	s, err := p.series(ctx, symbol)
	if err != nil {
		return nil, err
	}
	last, ok := s.Last()
	if !ok {
		return nil, source.ErrNoData
	}
	prev := last.Open
	if n := len(s.Points); n > 1 {
		prev = s.Points[n-2].Close
	}
	return &model.StockInfo{
		Symbol:        s.Symbol,
		Name:          p.displayName(s.Symbol),
		Price:         last.Close,
		Change:        last.Close - prev,
		ChangePercent: model.PercentChange(last.Close, prev),
		PreviousClose: prev,
		Open:          last.Open,
		DayHigh:       last.High,
		DayLow:        last.Low,
		Volume:        last.Volume,
		Currency:      "USD",
		Exchange:      p.cfg.Exchange,
		Source:        p.cfg.Name,
		UpdatedAt:     last.Date,
	}, nil
}

// MarketOverview reports the configured indices that have data.
func (p *Provider) MarketOverview(ctx context.Context) (*model.MarketOverview, error) {
	if len(p.cfg.Indices) == 0 {
		return nil, source.ErrNoData
	}
	got := p.orch.GetMultiple(ctx, model.Symbols(p.cfg.Indices))

	ov := &model.MarketOverview{
		MarketStatus: markethours.Status(p.now()),
		Source:       p.cfg.Name,
	}
	for _, in := range p.cfg.Indices {
		s, ok := got[in.Key()]
		if !ok {
			continue
		}
		cur, prev, ok := lastChange(s)
		if !ok {
			continue
		}
		ov.Indices = append(ov.Indices, model.IndexQuote{
			Symbol:        in.Key(),
			Name:          in.Name,
			Value:         cur,
			Change:        cur - prev,
			ChangePercent: model.PercentChange(cur, prev),
		})
		if s.EndDate.After(ov.UpdatedAt) {
			ov.UpdatedAt = s.EndDate
		}
	}
	if len(ov.Indices) == 0 {
		return nil, source.ErrNoData
	}
	return ov, nil
}

// HistoricalSeries returns the period slice of the stored series.
func (p *Provider) HistoricalSeries(ctx context.Context, symbol, period string) (*model.Series, error) {
	s, err := p.orch.GetPeriod(ctx, symbol, period)
	if errors.Is(err, history.ErrNotFound) {
		return nil, source.ErrNoData
	}
	if err != nil {
		return nil, err
	}
	if len(s.Points) == 0 {
		return nil, source.ErrNoData
	}
	return s, nil
}

// SectorPerformance reports the last daily move of each sector proxy.
func (p *Provider) SectorPerformance(ctx context.Context) ([]model.SectorPerformance, error) {
	if len(p.cfg.Sectors) == 0 {
		return nil, source.ErrNoData
	}
	got := p.orch.GetMultiple(ctx, model.Symbols(p.cfg.Sectors))

	var out []model.SectorPerformance
	for _, in := range p.cfg.Sectors {
		s, ok := got[in.Key()]
		if !ok {
			continue
		}
		cur, prev, ok := lastChange(s)
		if !ok {
			continue
		}
		out = append(out, model.SectorPerformance{
			Sector:        in.Name,
			Symbol:        in.Key(),
			ChangePercent: model.PercentChange(cur, prev),
			Source:        p.cfg.Name,
		})
	}
	return out, nil
}

// Search matches the query against the dataset catalog and configured
// instrument names. Exact symbol hits rank first, then prefixes.
func (p *Provider) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	q := strings.ToUpper(strings.TrimSpace(query))
	if q == "" {
		return nil, source.ErrNoData
	}
	syms, err := p.orch.ListAvailableSymbols(ctx)
	if err != nil {
		return nil, err
	}

	type hit struct {
		res  model.SearchResult
		rank int
	}
	var hits []hit
	seen := make(map[string]bool)
	add := func(sym, name, typ string) {
		if seen[sym] {
			return
		}
		rank := matchRank(q, sym, strings.ToUpper(name))
		if rank < 0 {
			return
		}
		seen[sym] = true
		hits = append(hits, hit{
			res:  model.SearchResult{Symbol: sym, Name: name, Exchange: p.cfg.Exchange, Type: typ},
			rank: rank,
		})
	}
	for _, in := range p.cfg.Indices {
		add(in.Key(), in.Name, "index")
	}
	for _, in := range p.cfg.Sectors {
		add(in.Key(), in.Name, "etf")
	}
	for _, sym := range syms {
		add(strings.ToUpper(sym), "", "equity")
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].rank != hits[j].rank {
			return hits[i].rank < hits[j].rank
		}
		return hits[i].res.Symbol < hits[j].res.Symbol
	})
	if len(hits) > p.cfg.SearchLimit {
		hits = hits[:p.cfg.SearchLimit]
	}
	out := make([]model.SearchResult, len(hits))
	for i, h := range hits {
		out[i] = h.res
	}
	return out, nil
}

// matchRank is 0 for an exact symbol, 1 for a symbol prefix, 2 for a symbol
// or name substring, -1 for no match.
func matchRank(q, sym, name string) int {
	switch {
	case sym == q:
		return 0
	case strings.HasPrefix(sym, q):
		return 1
	case strings.Contains(sym, q), name != "" && strings.Contains(name, q):
		return 2
	}
	return -1
}

func (p *Provider) displayName(symbol string) string {
	for _, list := range [][]model.Instrument{p.cfg.Indices, p.cfg.Sectors} {
		for _, in := range list {
			if in.Key() == symbol {
				return in.Name
			}
		}
	}
	return ""
}

// lastChange returns the last close and the one before it.
func lastChange(s *model.Series) (cur, prev float64, ok bool) {
	n := len(s.Points)
	switch n {
	case 0:
		return 0, 0, false
	case 1:
		return s.Points[0].Close, s.Points[0].Open, true
	}
	return s.Points[n-1].Close, s.Points[n-2].Close, true
}
