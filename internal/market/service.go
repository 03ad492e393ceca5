// Package market is the read path used by the HTTP API: cache-aside lookups
// in front of the source coordinator, with absence reported as ErrNotFound.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"marketdata-hub/internal/cache"
	"marketdata-hub/internal/indicator"
	"marketdata-hub/internal/model"
	"marketdata-hub/internal/parser"
	"marketdata-hub/internal/source"
)

// ErrNotFound means no source had the requested data.
var ErrNotFound = errors.New("not_found")

// DefaultPeriod is used when a request names no period.
const DefaultPeriod = "1y"

// batchSize bounds concurrent lookups in HistoryBatch.
const batchSize = 5

// Sources is the capability set of source.Coordinator.
type Sources interface {
	StockInfo(ctx context.Context, symbol string) source.Result[*model.StockInfo]
	MarketOverview(ctx context.Context) source.Result[*model.MarketOverview]
	HistoricalSeries(ctx context.Context, symbol, period string) source.Result[*model.Series]
	SectorPerformance(ctx context.Context) source.Result[[]model.SectorPerformance]
	Search(ctx context.Context, query string) source.Result[[]model.SearchResult]
}

// Service serves market data with per-category caching.
type Service struct {
	sources Sources
	cache   cache.Store
	ttl     cache.TTLs
	engine  *indicator.Engine
	log     *slog.Logger
}

// NewService wires the read path. A nil engine uses indicator defaults.
func NewService(src Sources, store cache.Store, ttl cache.TTLs, engine *indicator.Engine, log *slog.Logger) *Service {
	if engine == nil {
		engine = indicator.NewEngine(indicator.DefaultParams())
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		sources: src,
		cache:   store,
		ttl:     ttl,
		engine:  engine,
		log:     log.With("component", "market"),
	}
}

// cached runs the cache-aside sequence for one key. Absent results are not
// cached so a recovering source is seen on the next request.
func cached[T any](ctx context.Context, s *Service, key string, ttl time.Duration, load func() source.Result[T]) (T, error) {
	var v T
	if cache.GetJSON(ctx, s.cache, key, &v) {
		return v, nil
	}
	r := load()
	if !r.OK {
		s.log.Debug("no source had data", "key", key, "last_source", r.Source, "reason", r.Reason)
		var zero T
		if r.Reason != nil {
			return zero, fmt.Errorf("%w: %v", ErrNotFound, r.Reason)
		}
		return zero, ErrNotFound
	}
	cache.SetJSON(ctx, s.cache, key, r.Value, ttl)
	return r.Value, nil
}

func (s *Service) StockInfo(ctx context.Context, symbol string) (*model.StockInfo, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	return cached(ctx, s, cache.StockInfoKey(symbol), s.ttl.StockInfo, func() source.Result[*model.StockInfo] {
		return s.sources.StockInfo(ctx, symbol)
	})
}

func (s *Service) MarketOverview(ctx context.Context) (*model.MarketOverview, error) {
	return cached(ctx, s, cache.MarketOverviewKey(), s.ttl.MarketOverview, func() source.Result[*model.MarketOverview] {
		return s.sources.MarketOverview(ctx)
	})
}

func (s *Service) Sectors(ctx context.Context) ([]model.SectorPerformance, error) {
	return cached(ctx, s, cache.SectorKey(), s.ttl.Sector, func() source.Result[[]model.SectorPerformance] {
		return s.sources.SectorPerformance(ctx)
	})
}

func (s *Service) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrNotFound
	}
	return cached(ctx, s, cache.SearchKey(query), s.ttl.Search, func() source.Result[[]model.SearchResult] {
		return s.sources.Search(ctx, query)
	})
}

// History returns the series for a period token. Unknown tokens are passed
// through and yield the full series.
func (s *Service) History(ctx context.Context, symbol, period string) (*model.Series, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	period = strings.ToLower(strings.TrimSpace(period))
	if period == "" {
		period = DefaultPeriod
	}
	return cached(ctx, s, cache.HistoricalKey(symbol, period), s.ttl.Historical, func() source.Result[*model.Series] {
		return s.sources.HistoricalSeries(ctx, symbol, period)
	})
}

// HistoryRange returns the points within [from, to] of the full history.
func (s *Service) HistoryRange(ctx context.Context, symbol string, from, to time.Time) (*model.Series, error) {
	full, err := s.History(ctx, symbol, "max")
	if err != nil {
		return nil, err
	}
	out := parser.SliceRange(full, from, to)
	if len(out.Points) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// HistoryBatch looks up several symbols, batchSize at a time. Symbols without
// data are left out.
func (s *Service) HistoryBatch(ctx context.Context, symbols []string, period string) map[string]*model.Series {
	out := make(map[string]*model.Series, len(symbols))
	var mu sync.Mutex
	for start := 0; start < len(symbols) && ctx.Err() == nil; start += batchSize {
		end := min(start+batchSize, len(symbols))
		var wg sync.WaitGroup
		for _, sym := range symbols[start:end] {
			wg.Add(1)
			go func(sym string) {
				defer wg.Done()
				series, err := s.History(ctx, sym, period)
				if err != nil {
					s.log.Debug("batch member unavailable", "symbol", sym, "error", err)
					return
				}
				mu.Lock()
				out[series.Symbol] = series
				mu.Unlock()
			}(sym)
		}
		wg.Wait()
	}
	return out
}

// Analysis computes indicators over the period's series. Bundles are derived
// per request and not cached.
func (s *Service) Analysis(ctx context.Context, symbol, period string) (*indicator.Bundle, error) {
	series, err := s.History(ctx, symbol, period)
	if err != nil {
		return nil, err
	}
	return s.engine.Compute(series)
}

// CacheStats reports the cache counters.
func (s *Service) CacheStats(ctx context.Context) cache.Stats { return s.cache.Stats(ctx) }

// ClearCache drops every cached entry.
func (s *Service) ClearCache(ctx context.Context) {
	s.cache.Clear(ctx)
	s.log.Info("cache cleared")
}
