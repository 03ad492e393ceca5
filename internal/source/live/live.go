// Package live is the source adapter for a Yahoo-style quote API: a batch
// quote endpoint, a chart endpoint for daily history and a symbol search.
// Responses are read with gjson paths rather than mirrored structs.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"marketdata-hub/internal/markethours"
	"marketdata-hub/internal/model"
	"marketdata-hub/internal/parser"
	"marketdata-hub/internal/platform/httpclient"
	"marketdata-hub/internal/source"
)

// Config configures the adapter.
type Config struct {
	Name        string // default "live"
	BaseURL     string
	Indices     []model.Instrument
	Sectors     []model.Instrument
	SearchLimit int
}

// Provider implements source.Provider over HTTP JSON.
type Provider struct {
	client *httpclient.Client
	cfg    Config
	base   string
	log    *slog.Logger
	now    func() time.Time
}

var _ source.Provider = (*Provider)(nil)

// New creates the adapter.
func New(client *httpclient.Client, cfg Config, log *slog.Logger) (*Provider, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("live: base url: %w", err)
	}
	if cfg.Name == "" {
		cfg.Name = "live"
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 10
	}
	if log == nil {
		log = slog.Default()
	}
	return &Provider{
		client: client,
		cfg:    cfg,
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		log:    log.With("adapter", cfg.Name),
		now:    time.Now,
	}, nil
}

func (p *Provider) Name() string { return p.cfg.Name }

// get fetches path and validates it as JSON. 404 becomes ErrNoData.
func (p *Provider) get(ctx context.Context, path string, q url.Values) (gjson.Result, error) {
	u := p.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	body, err := p.client.Get(ctx, u)
	if err != nil {
		if httpclient.IsNotFound(err) {
			return gjson.Result{}, source.ErrNoData
		}
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%s: invalid JSON response", path)
	}
	return gjson.ParseBytes(body), nil
}

// quotes returns quoteResponse.result items keyed by upper-case symbol.
func (p *Provider) quotes(ctx context.Context, symbols []string) (map[string]gjson.Result, error) {
	doc, err := p.get(ctx, "/v7/finance/quote", url.Values{"symbols": {strings.Join(symbols, ",")}})
	if err != nil {
		return nil, err
	}
	if e := doc.Get("quoteResponse.error"); e.Exists() && e.Type != gjson.Null {
		return nil, fmt.Errorf("quote: %s", e.Get("description").String())
	}
	out := make(map[string]gjson.Result)
	for _, r := range doc.Get("quoteResponse.result").Array() {
		if sym := strings.ToUpper(r.Get("symbol").String()); sym != "" {
			out[sym] = r
		}
	}
	return out, nil
}

func (p *Provider) StockInfo(ctx context.Context, symbol string) (*model.StockInfo, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	qs, err := p.quotes(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	r, ok := qs[symbol]
	if !ok || !r.Get("regularMarketPrice").Exists() {
		return nil, source.ErrNoData
	}
	info := &model.StockInfo{
		Symbol:        symbol,
		Name:          firstString(r, "longName", "shortName"),
		Price:         r.Get("regularMarketPrice").Float(),
		Change:        r.Get("regularMarketChange").Float(),
		ChangePercent: r.Get("regularMarketChangePercent").Float(),
		PreviousClose: r.Get("regularMarketPreviousClose").Float(),
		Open:          r.Get("regularMarketOpen").Float(),
		DayHigh:       r.Get("regularMarketDayHigh").Float(),
		DayLow:        r.Get("regularMarketDayLow").Float(),
		Volume:        r.Get("regularMarketVolume").Float(),
		MarketCap:     r.Get("marketCap").Float(),
		Currency:      r.Get("currency").String(),
		Exchange:      firstString(r, "fullExchangeName", "exchange"),
		Source:        p.cfg.Name,
		UpdatedAt:     p.now().UTC(),
	}
	if ts := r.Get("regularMarketTime").Int(); ts > 0 {
		info.UpdatedAt = time.Unix(ts, 0).UTC()
	}
	if info.Change == 0 && info.PreviousClose > 0 {
		info.Change = info.Price - info.PreviousClose
		info.ChangePercent = model.PercentChange(info.Price, info.PreviousClose)
	}
	return info, nil
}

func (p *Provider) MarketOverview(ctx context.Context) (*model.MarketOverview, error) {
	if len(p.cfg.Indices) == 0 {
		return nil, source.ErrNoData
	}
	qs, err := p.quotes(ctx, model.Symbols(p.cfg.Indices))
	if err != nil {
		return nil, err
	}
	now := p.now()
	ov := &model.MarketOverview{
		MarketStatus: markethours.Status(now),
		Source:       p.cfg.Name,
		UpdatedAt:    now.UTC(),
	}
	for _, in := range p.cfg.Indices {
		r, ok := qs[in.Key()]
		if !ok {
			continue
		}
		ov.Indices = append(ov.Indices, model.IndexQuote{
			Symbol:        in.Key(),
			Name:          in.Name,
			Value:         r.Get("regularMarketPrice").Float(),
			Change:        r.Get("regularMarketChange").Float(),
			ChangePercent: r.Get("regularMarketChangePercent").Float(),
		})
	}
	if len(ov.Indices) == 0 {
		return nil, source.ErrNoData
	}
	return ov, nil
}

func (p *Provider) SectorPerformance(ctx context.Context) ([]model.SectorPerformance, error) {
	if len(p.cfg.Sectors) == 0 {
		return nil, source.ErrNoData
	}
	qs, err := p.quotes(ctx, model.Symbols(p.cfg.Sectors))
	if err != nil {
		return nil, err
	}
	var out []model.SectorPerformance
	for _, in := range p.cfg.Sectors {
		r, ok := qs[in.Key()]
		if !ok {
			continue
		}
		out = append(out, model.SectorPerformance{
			Sector:        in.Name,
			Symbol:        in.Key(),
			ChangePercent: r.Get("regularMarketChangePercent").Float(),
			Source:        p.cfg.Name,
		})
	}
	return out, nil
}

func (p *Provider) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, source.ErrNoData
	}
	doc, err := p.get(ctx, "/v1/finance/search", url.Values{
		"q":           {query},
		"quotesCount": {fmt.Sprint(p.cfg.SearchLimit)},
		"newsCount":   {"0"},
	})
	if err != nil {
		return nil, err
	}
	var out []model.SearchResult
	doc.Get("quotes").ForEach(func(_, q gjson.Result) bool {
		sym := q.Get("symbol").String()
		if sym == "" {
			return true
		}
		out = append(out, model.SearchResult{
			Symbol:   sym,
			Name:     firstString(q, "longname", "shortname"),
			Exchange: firstString(q, "exchDisp", "exchange"),
			Type:     strings.ToLower(q.Get("quoteType").String()),
		})
		return len(out) < p.cfg.SearchLimit
	})
	return out, nil
}

// chartRanges maps period tokens to the smallest chart range covering them.
var chartRanges = map[string]string{
	"1d": "5d", "1w": "1mo", "1m": "1mo", "3m": "3mo", "6m": "6mo",
	"1y": "1y", "2y": "2y", "5y": "5y", "ytd": "ytd", "max": "max",
}

func (p *Provider) HistoricalSeries(ctx context.Context, symbol, period string) (*model.Series, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	rng, ok := chartRanges[strings.ToLower(period)]
	if !ok {
		rng = "max"
	}
	doc, err := p.get(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), url.Values{
		"range":    {rng},
		"interval": {"1d"},
	})
	if err != nil {
		return nil, err
	}
	if e := doc.Get("chart.error"); e.Exists() && e.Type != gjson.Null {
		if strings.EqualFold(e.Get("code").String(), "Not Found") {
			return nil, source.ErrNoData
		}
		return nil, fmt.Errorf("chart %s: %s", symbol, e.Get("description").String())
	}

	s, err := decodeChart(symbol, doc.Get("chart.result.0"))
	if err != nil {
		return nil, err
	}
	s = parser.SliceForPeriod(s, period, p.now())
	if len(s.Points) == 0 {
		return nil, source.ErrNoData
	}
	return s, nil
}

var chartColumns = []string{"timestamp", "open", "high", "low", "close", "volume", "adjclose"}

var errNoChart = errors.New("chart result missing")

// decodeChart turns the column arrays of a chart result into points. Rows with
// null prices or broken OHLC relations are dropped, as the parser does.
func decodeChart(symbol string, res gjson.Result) (*model.Series, error) {
	if !res.Exists() {
		return nil, errNoChart
	}
	ts := res.Get("timestamp").Array()
	q := res.Get("indicators.quote.0")
	open, high := q.Get("open").Array(), q.Get("high").Array()
	low, cls := q.Get("low").Array(), q.Get("close").Array()
	vol := q.Get("volume").Array()
	adj := res.Get("indicators.adjclose.0.adjclose").Array()

	at := func(a []gjson.Result, i int) (float64, bool) {
		if i >= len(a) || a[i].Type != gjson.Number {
			return 0, false
		}
		return a[i].Float(), true
	}

	points := make([]model.Point, 0, len(ts))
	for i, t := range ts {
		var pt model.Point
		var ok1, ok2, ok3, ok4 bool
		pt.Open, ok1 = at(open, i)
		pt.High, ok2 = at(high, i)
		pt.Low, ok3 = at(low, i)
		pt.Close, ok4 = at(cls, i)
		if !(ok1 && ok2 && ok3 && ok4) {
			continue
		}
		pt.Volume, _ = at(vol, i)
		if a, ok := at(adj, i); ok {
			pt.AdjClose = &a
		}
		et := time.Unix(t.Int(), 0).In(markethours.Eastern)
		pt.Date = time.Date(et.Year(), et.Month(), et.Day(), 0, 0, 0, 0, time.UTC)
		if !pt.Valid() {
			continue
		}
		if n := len(points); n > 0 && points[n-1].Date.Equal(pt.Date) {
			points[n-1] = pt
			continue
		}
		points = append(points, pt)
	}
	if len(points) == 0 {
		return nil, source.ErrNoData
	}
	return model.NewSeries(symbol, points, chartColumns), nil
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if s := r.Get(p).String(); s != "" {
			return s
		}
	}
	return ""
}
