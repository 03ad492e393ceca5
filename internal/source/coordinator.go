package source

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"marketdata-hub/internal/model"
)

// Attempt describes one adapter call made by the coordinator.
type Attempt struct {
	Adapter  string
	Op       string
	OK       bool
	Reason   error
	Duration time.Duration
}

// AdapterStatus is one row of Coordinator.Status.
type AdapterStatus struct {
	Name     string        `json:"name"`
	Priority Priority      `json:"priority"`
	Timeout  time.Duration `json:"timeout_ns"`
	Stats    Stats         `json:"stats"`
}

// Coordinator tries adapters in priority order. Only healthy adapters are
// tried; when none is healthy every adapter is tried. Attempts within one call
// are strictly sequential and the first present value wins.
type Coordinator struct {
	adapters []*Adapter
	log      *slog.Logger

	// OnAttempt, when set, is called after every adapter call.
	OnAttempt func(Attempt)
	// OnHealthChange, when set, is called when an adapter's health flips.
	OnHealthChange func(adapter string, healthy bool)
}

// NewCoordinator orders adapters by descending priority, keeping the given
// order among equals.
func NewCoordinator(log *slog.Logger, adapters ...*Adapter) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	sorted := append([]*Adapter(nil), adapters...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].desc.Priority > sorted[j].desc.Priority
	})
	return &Coordinator{adapters: sorted, log: log.With("component", "coordinator")}
}

// Adapters returns the adapters in attempt order.
func (c *Coordinator) Adapters() []*Adapter {
	return append([]*Adapter(nil), c.adapters...)
}

// Status snapshots every adapter in attempt order.
func (c *Coordinator) Status() []AdapterStatus {
	out := make([]AdapterStatus, len(c.adapters))
	for i, a := range c.adapters {
		out[i] = AdapterStatus{
			Name:     a.desc.Name,
			Priority: a.desc.Priority,
			Timeout:  a.desc.Timeout,
			Stats:    a.Stats(),
		}
	}
	return out
}

func (c *Coordinator) StockInfo(ctx context.Context, symbol string) Result[*model.StockInfo] {
	return attempt(ctx, c, "stock_info", func(ctx context.Context, a *Adapter) Result[*model.StockInfo] {
		return a.StockInfo(ctx, symbol)
	})
}

func (c *Coordinator) MarketOverview(ctx context.Context) Result[*model.MarketOverview] {
	return attempt(ctx, c, "market_overview", func(ctx context.Context, a *Adapter) Result[*model.MarketOverview] {
		return a.MarketOverview(ctx)
	})
}

func (c *Coordinator) HistoricalSeries(ctx context.Context, symbol, period string) Result[*model.Series] {
	return attempt(ctx, c, "historical", func(ctx context.Context, a *Adapter) Result[*model.Series] {
		return a.HistoricalSeries(ctx, symbol, period)
	})
}

func (c *Coordinator) SectorPerformance(ctx context.Context) Result[[]model.SectorPerformance] {
	return attempt(ctx, c, "sector_performance", func(ctx context.Context, a *Adapter) Result[[]model.SectorPerformance] {
		return a.SectorPerformance(ctx)
	})
}

func (c *Coordinator) Search(ctx context.Context, query string) Result[[]model.SearchResult] {
	return attempt(ctx, c, "search", func(ctx context.Context, a *Adapter) Result[[]model.SearchResult] {
		return a.Search(ctx, query)
	})
}

func (c *Coordinator) healthy() []*Adapter {
	out := make([]*Adapter, 0, len(c.adapters))
	for _, a := range c.adapters {
		if a.Healthy() {
			out = append(out, a)
		}
	}
	return out
}

func attempt[T any](ctx context.Context, c *Coordinator, op string, call func(context.Context, *Adapter) Result[T]) Result[T] {
	candidates := c.healthy()
	if len(candidates) == 0 {
		c.log.Warn("no healthy adapters, trying all", "op", op, "adapters", len(c.adapters))
		candidates = c.adapters
	}

	for _, a := range candidates {
		if ctx.Err() != nil {
			return absent[T](ctx.Err(), "")
		}
		was := a.Healthy()
		start := time.Now()
		r := call(ctx, a)

		if c.OnAttempt != nil {
			c.OnAttempt(Attempt{Adapter: a.desc.Name, Op: op, OK: r.OK, Reason: r.Reason, Duration: time.Since(start)})
		}
		if now := a.Healthy(); now != was {
			c.log.Warn("adapter health changed", "adapter", a.desc.Name, "healthy", now)
			if c.OnHealthChange != nil {
				c.OnHealthChange(a.desc.Name, now)
			}
		}

		if r.OK {
			return r
		}
		if r.Reason != ErrNoData {
			c.log.Debug("adapter attempt failed", "adapter", a.desc.Name, "op", op, "reason", r.Reason)
		}
	}
	return absent[T](fmt.Errorf("%s: %w from %d adapters", op, ErrNoData, len(candidates)), "")
}
