package source

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"marketdata-hub/internal/model"
)

// Health rule: an adapter is unhealthy once errors exceed half of its
// attempts, with at least minHealthSample attempts assumed.
const (
	minHealthSample    = 10
	maxErrorRatio      = 0.5
	defaultCallTimeout = 10 * time.Second
)

// Stats is a snapshot of an adapter's rolling statistics.
type Stats struct {
	Success       int64     `json:"success_count"`
	Errors        int64     `json:"error_count"`
	AvgResponseMs float64   `json:"average_response_time_ms"`
	P50ResponseMs float64   `json:"p50_response_time_ms"`
	P95ResponseMs float64   `json:"p95_response_time_ms"`
	LastRequestAt time.Time `json:"last_request_at"`
	Healthy       bool      `json:"is_healthy"`
}

// Total is the number of recorded attempts.
func (s Stats) Total() int64 { return s.Success + s.Errors }

func healthy(success, errs int64) bool {
	total := success + errs
	if total < minHealthSample {
		total = minHealthSample
	}
	return float64(errs)/float64(total) <= maxErrorRatio
}

// Adapter wraps a Provider with a per-call timeout, panic recovery and
// statistics. Every capability returns a Result; errors never escape.
type Adapter struct {
	p    Provider
	desc Descriptor
	now  func() time.Time

	mu      sync.Mutex
	stats   Stats
	latency *latencyWindow
}

// Wrap decorates p. An empty descriptor name defaults to p.Name().
func Wrap(p Provider, d Descriptor) *Adapter {
	if d.Name == "" {
		d.Name = p.Name()
	}
	if d.Timeout <= 0 {
		d.Timeout = defaultCallTimeout
	}
	if d.Priority == 0 {
		d.Priority = PriorityMedium
	}
	return &Adapter{
		p:       p,
		desc:    d,
		now:     time.Now,
		stats:   Stats{Healthy: true},
		latency: newLatencyWindow(latencyWindowSize),
	}
}

func (a *Adapter) Name() string           { return a.desc.Name }
func (a *Adapter) Descriptor() Descriptor { return a.desc }

// Stats returns a copy of the current statistics.
func (a *Adapter) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Healthy reports the health derived from the latest counts.
func (a *Adapter) Healthy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats.Healthy
}

func (a *Adapter) StockInfo(ctx context.Context, symbol string) Result[*model.StockInfo] {
	return invoke(ctx, a, "stock_info", func(ctx context.Context) (*model.StockInfo, error) {
		return a.p.StockInfo(ctx, symbol)
	})
}

func (a *Adapter) MarketOverview(ctx context.Context) Result[*model.MarketOverview] {
	return invoke(ctx, a, "market_overview", a.p.MarketOverview)
}

func (a *Adapter) HistoricalSeries(ctx context.Context, symbol, period string) Result[*model.Series] {
	return invoke(ctx, a, "historical", func(ctx context.Context) (*model.Series, error) {
		return a.p.HistoricalSeries(ctx, symbol, period)
	})
}

func (a *Adapter) SectorPerformance(ctx context.Context) Result[[]model.SectorPerformance] {
	return invoke(ctx, a, "sector_performance", a.p.SectorPerformance)
}

func (a *Adapter) Search(ctx context.Context, query string) Result[[]model.SearchResult] {
	return invoke(ctx, a, "search", func(ctx context.Context) ([]model.SearchResult, error) {
		return a.p.Search(ctx, query)
	})
}

type outcome[T any] struct {
	v   T
	err error
}

// invoke races fn against the adapter timeout. On timeout the goroutine is
// left to finish on its own; its result is discarded.
func invoke[T any](ctx context.Context, a *Adapter, op string, fn func(context.Context) (T, error)) Result[T] {
	start := a.now()
	ch := make(chan outcome[T], 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome[T]{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		ch <- outcome[T]{v: v, err: err}
	}()

	timer := time.NewTimer(a.desc.Timeout)
	defer timer.Stop()

	var o outcome[T]
	select {
	case o = <-ch:
	case <-timer.C:
		a.record(false, a.now().Sub(start))
		return absent[T](&TimeoutError{Adapter: a.desc.Name, Op: op, After: a.desc.Timeout}, a.desc.Name)
	case <-ctx.Done():
		// the caller gave up; the adapter's stats and health are left alone
		return absent[T](&UnavailableError{Adapter: a.desc.Name, Op: op, Err: ctx.Err()}, a.desc.Name)
	}

	elapsed := a.now().Sub(start)
	switch {
	case o.err != nil && ctx.Err() != nil:
		return absent[T](&UnavailableError{Adapter: a.desc.Name, Op: op, Err: o.err}, a.desc.Name)
	case errors.Is(o.err, ErrNoData):
		a.record(true, elapsed)
		return absent[T](ErrNoData, a.desc.Name)
	case o.err != nil:
		a.record(false, elapsed)
		return absent[T](&UnavailableError{Adapter: a.desc.Name, Op: op, Err: o.err}, a.desc.Name)
	case isEmpty(o.v):
		a.record(true, elapsed)
		return absent[T](ErrNoData, a.desc.Name)
	}
	a.record(true, elapsed)
	return found(o.v, a.desc.Name)
}

// record updates counters, the running mean and health before the call
// returns, so the next call sees the new health.
func (a *Adapter) record(ok bool, elapsed time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if ok {
		a.stats.Success++
	} else {
		a.stats.Errors++
	}
	n := float64(a.stats.Total())
	ms := float64(elapsed) / float64(time.Millisecond)
	a.stats.AvgResponseMs += (ms - a.stats.AvgResponseMs) / n
	a.latency.add(ms)
	a.stats.P50ResponseMs, a.stats.P95ResponseMs = a.latency.percentiles()
	a.stats.LastRequestAt = a.now()
	a.stats.Healthy = healthy(a.stats.Success, a.stats.Errors)
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map:
		return rv.IsNil()
	case reflect.Slice:
		return rv.Len() == 0
	}
	return false
}
