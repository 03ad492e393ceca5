// Package history serves historical price series from a raw-text dataset,
// keeping a parsed copy per symbol in a durable record store.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"marketdata-hub/internal/model"
	"marketdata-hub/internal/parser"
)

const (
	// DefaultTTL is how long a stored record is served without refetching.
	DefaultTTL = 24 * time.Hour
	// BatchSize bounds concurrent fetches in GetMultiple.
	BatchSize = 5
)

type options struct {
	useCache bool
	force    bool
	ttl      time.Duration
}

// Option adjusts a single request.
type Option func(*options)

// WithoutCache ignores stored records. The fetched result is still saved.
func WithoutCache() Option { return func(o *options) { o.useCache = false } }

// ForceRefresh refetches even when a fresh record exists.
func ForceRefresh() Option { return func(o *options) { o.force = true } }

// WithCacheTTL overrides the orchestrator's TTL for this request.
func WithCacheTTL(d time.Duration) Option { return func(o *options) { o.ttl = d } }

func buildOptions(ttl time.Duration, opts []Option) options {
	o := options{useCache: true, ttl: ttl}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// FetchEvent reports one upstream fetch, for metrics.
type FetchEvent struct {
	Symbol   string
	Bytes    int
	Points   int
	Skipped  int
	Duration time.Duration
	Err      error
}

// Orchestrator combines a Fetcher, the parser and a RecordStore.
type Orchestrator struct {
	fetcher Fetcher
	store   RecordStore
	log     *slog.Logger
	now     func() time.Time

	// TTL is the default record freshness window; zero means DefaultTTL.
	TTL time.Duration
	// OnFetch, when set, is called after every upstream fetch.
	OnFetch func(FetchEvent)
}

// New creates an orchestrator.
func New(fetcher Fetcher, store RecordStore, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		fetcher: fetcher,
		store:   store,
		log:     log.With("component", "history"),
		now:     time.Now,
	}
}

// GetSeries returns the full parsed history for symbol.
func (o *Orchestrator) GetSeries(ctx context.Context, symbol string, opts ...Option) (*model.Series, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("history: empty symbol")
	}
	ttl := o.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	op := buildOptions(ttl, opts)

	var stale *model.Series
	if op.useCache && !op.force {
		s, meta, err := o.store.Load(ctx, symbol)
		switch {
		case err == nil && meta.Fresh(o.now(), op.ttl):
			return s, nil
		case err == nil:
			stale = s
		case !errors.Is(err, ErrNotFound):
			o.log.Warn("stored record unreadable, refetching", "symbol", symbol, "error", err)
		}
	}

	s, err := o.refresh(ctx, symbol)
	if err != nil {
		if stale != nil && !errors.Is(err, ErrNotFound) {
			o.log.Warn("fetch failed, serving stale record", "symbol", symbol, "error", err)
			return stale, nil
		}
		return nil, err
	}
	return s, nil
}

func (o *Orchestrator) refresh(ctx context.Context, symbol string) (*model.Series, error) {
	start := o.now()
	ev := FetchEvent{Symbol: symbol}
	defer func() {
		ev.Duration = o.now().Sub(start)
		if o.OnFetch != nil {
			o.OnFetch(ev)
		}
	}()

	raw, err := o.fetcher.Fetch(ctx, symbol)
	if err != nil {
		ev.Err = err
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	ev.Bytes = len(raw)

	s, rep, err := parser.ParseWithReport(string(raw), symbol)
	ev.Skipped = rep.Skipped
	if err != nil {
		ev.Err = err
		return nil, err
	}
	ev.Points = s.TotalPoints
	if rep.Skipped > 0 || rep.Duplicates > 0 {
		o.log.Info("parsed with dropped rows", "symbol", symbol,
			"rows", rep.Rows, "accepted", rep.Accepted, "skipped", rep.Skipped, "duplicates", rep.Duplicates)
	}

	meta := Metadata{
		Symbol:      symbol,
		LastUpdated: o.now(),
		DataPoints:  s.TotalPoints,
		DateRange:   s.Range(),
		RawBytes:    len(raw),
		Columns:     s.Columns,
	}
	if err := o.store.Save(ctx, s, meta); err != nil {
		// the parsed series is still good for this request
		o.log.Error("persist failed", "symbol", symbol, "error", err)
	}
	return s, nil
}

// GetPeriod returns the suffix of the series covered by a period token.
func (o *Orchestrator) GetPeriod(ctx context.Context, symbol, period string, opts ...Option) (*model.Series, error) {
	s, err := o.GetSeries(ctx, symbol, opts...)
	if err != nil {
		return nil, err
	}
	return parser.SliceForPeriod(s, period, o.now()), nil
}

// GetRange returns the points within [from, to]; zero bounds are open.
func (o *Orchestrator) GetRange(ctx context.Context, symbol string, from, to time.Time, opts ...Option) (*model.Series, error) {
	s, err := o.GetSeries(ctx, symbol, opts...)
	if err != nil {
		return nil, err
	}
	return parser.SliceRange(s, from, to), nil
}

// GetMultiple fetches symbols in sequential batches of BatchSize, concurrently
// within a batch. Failed symbols are logged and left out of the result.
func (o *Orchestrator) GetMultiple(ctx context.Context, symbols []string, opts ...Option) map[string]*model.Series {
	out := make(map[string]*model.Series, len(symbols))
	var mu sync.Mutex

	for start := 0; start < len(symbols); start += BatchSize {
		if ctx.Err() != nil {
			o.log.Warn("batch fetch cancelled", "done", start, "total", len(symbols))
			break
		}
		end := start + BatchSize
		if end > len(symbols) {
			end = len(symbols)
		}

		var wg sync.WaitGroup
		for _, sym := range symbols[start:end] {
			wg.Add(1)
			go func(sym string) {
				defer wg.Done()
				s, err := o.GetSeries(ctx, sym, opts...)
				if err != nil {
					o.log.Warn("batch member failed", "symbol", sym, "error", err)
					return
				}
				mu.Lock()
				out[s.Symbol] = s
				mu.Unlock()
			}(sym)
		}
		wg.Wait()
	}
	return out
}

// ListAvailableSymbols lists the upstream catalog when the fetcher has one,
// otherwise the symbols already stored.
func (o *Orchestrator) ListAvailableSymbols(ctx context.Context) ([]string, error) {
	if cat, ok := o.fetcher.(Catalog); ok {
		syms, err := cat.Symbols(ctx)
		if err == nil {
			return syms, nil
		}
		o.log.Warn("catalog unavailable, listing stored symbols", "error", err)
	}
	return o.store.Symbols(ctx)
}

// Coverage summarizes the stored records.
type Coverage struct {
	Symbols     int        `json:"symbols"`
	TotalPoints int        `json:"total_points"`
	TotalBytes  int        `json:"total_bytes"`
	Earliest    time.Time  `json:"earliest"`
	Latest      time.Time  `json:"latest"`
	Records     []Metadata `json:"records"`
}

// RepositoryMetadata builds a Coverage from metadata records only.
func (o *Orchestrator) RepositoryMetadata(ctx context.Context) (*Coverage, error) {
	syms, err := o.store.Symbols(ctx)
	if err != nil {
		return nil, err
	}
	c := &Coverage{Records: make([]Metadata, 0, len(syms))}
	for _, sym := range syms {
		m, err := o.store.LoadMetadata(ctx, sym)
		if err != nil {
			o.log.Warn("metadata unreadable", "symbol", sym, "error", err)
			continue
		}
		c.Records = append(c.Records, *m)
		c.TotalPoints += m.DataPoints
		c.TotalBytes += m.RawBytes
		if c.Earliest.IsZero() || m.DateRange.Start.Before(c.Earliest) {
			c.Earliest = m.DateRange.Start
		}
		if m.DateRange.End.After(c.Latest) {
			c.Latest = m.DateRange.End
		}
	}
	c.Symbols = len(c.Records)
	sort.Slice(c.Records, func(i, j int) bool { return c.Records[i].Symbol < c.Records[j].Symbol })
	return c, nil
}
