// Package scrape is the lowest-priority source adapter: it reads quotes,
// index levels, sector moves and history tables out of HTML pages.
package scrape

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"marketdata-hub/internal/markethours"
	"marketdata-hub/internal/model"
	"marketdata-hub/internal/parser"
	"marketdata-hub/internal/platform/httpclient"
	"marketdata-hub/internal/source"
)

// Config configures the adapter.
type Config struct {
	Name    string // default "scrape"
	BaseURL string
	Layout  Layout
}

// Provider implements source.Provider by scraping HTML.
type Provider struct {
	client *httpclient.Client
	name   string
	base   string
	layout Layout
	log    *slog.Logger
	now    func() time.Time
}

var _ source.Provider = (*Provider)(nil)

// New creates the adapter. Empty Layout fields take DefaultLayout values.
func New(client *httpclient.Client, cfg Config, log *slog.Logger) (*Provider, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("scrape: base url: %w", err)
	}
	if cfg.Name == "" {
		cfg.Name = "scrape"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Provider{
		client: client,
		name:   cfg.Name,
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		layout: cfg.Layout.merge(DefaultLayout()),
		log:    log.With("adapter", cfg.Name),
		now:    time.Now,
	}, nil
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) page(ctx context.Context, path string) (*goquery.Document, error) {
	body, err := p.client.Get(ctx, p.base+path)
	if err != nil {
		if httpclient.IsNotFound(err) {
			return nil, source.ErrNoData
		}
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func (p *Provider) StockInfo(ctx context.Context, symbol string) (*model.StockInfo, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	doc, err := p.page(ctx, fmt.Sprintf(p.layout.QuotePath, url.PathEscape(symbol)))
	if err != nil {
		return nil, err
	}
	l := p.layout
	price, ok := number(doc.Find(l.Price))
	if !ok {
		return nil, source.ErrNoData
	}
	info := &model.StockInfo{
		Symbol:    symbol,
		Name:      text(doc.Find(l.Name)),
		Price:     price,
		Exchange:  text(doc.Find(l.Exchange)),
		Currency:  "USD",
		Source:    p.name,
		UpdatedAt: p.now().UTC(),
	}
	info.Change, _ = number(doc.Find(l.Change))
	info.ChangePercent, _ = number(doc.Find(l.ChangePercent))
	info.PreviousClose, _ = number(doc.Find(l.PreviousClose))
	info.Open, _ = number(doc.Find(l.Open))
	info.DayHigh, _ = number(doc.Find(l.DayHigh))
	info.DayLow, _ = number(doc.Find(l.DayLow))
	info.Volume, _ = number(doc.Find(l.Volume))
	info.MarketCap, _ = number(doc.Find(l.MarketCap))
	if info.Change == 0 && info.PreviousClose > 0 {
		info.Change = info.Price - info.PreviousClose
		info.ChangePercent = model.PercentChange(info.Price, info.PreviousClose)
	}
	return info, nil
}

func (p *Provider) MarketOverview(ctx context.Context) (*model.MarketOverview, error) {
	doc, err := p.page(ctx, p.layout.OverviewPath)
	if err != nil {
		return nil, err
	}
	now := p.now()
	ov := &model.MarketOverview{
		MarketStatus: markethours.Status(now),
		Source:       p.name,
		UpdatedAt:    now.UTC(),
	}
	doc.Find(p.layout.IndexRows).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 5 {
			return
		}
		value, ok := number(cells.Eq(2))
		if !ok {
			return
		}
		q := model.IndexQuote{
			Symbol: strings.ToUpper(text(cells.Eq(0))),
			Name:   text(cells.Eq(1)),
			Value:  value,
		}
		q.Change, _ = number(cells.Eq(3))
		q.ChangePercent, _ = number(cells.Eq(4))
		ov.Indices = append(ov.Indices, q)
	})
	if len(ov.Indices) == 0 {
		return nil, source.ErrNoData
	}
	return ov, nil
}

func (p *Provider) SectorPerformance(ctx context.Context) ([]model.SectorPerformance, error) {
	doc, err := p.page(ctx, p.layout.SectorsPath)
	if err != nil {
		return nil, err
	}
	var out []model.SectorPerformance
	doc.Find(p.layout.SectorRows).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		pct, ok := number(cells.Eq(1))
		if !ok {
			return
		}
		out = append(out, model.SectorPerformance{
			Sector:        text(cells.Eq(0)),
			Symbol:        strings.ToUpper(text(cells.Eq(2))),
			ChangePercent: pct,
			Source:        p.name,
		})
	})
	return out, nil
}

func (p *Provider) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, source.ErrNoData
	}
	doc, err := p.page(ctx, fmt.Sprintf(p.layout.SearchPath, url.QueryEscape(query)))
	if err != nil {
		return nil, err
	}
	var out []model.SearchResult
	doc.Find(p.layout.SearchRows).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		sym := strings.ToUpper(text(cells.Eq(0)))
		if sym == "" {
			return
		}
		out = append(out, model.SearchResult{
			Symbol:   sym,
			Name:     text(cells.Eq(1)),
			Exchange: text(cells.Eq(2)),
			Type:     strings.ToLower(text(cells.Eq(3))),
		})
	})
	return out, nil
}

// HistoricalSeries re-emits the history table as CSV and runs it through the
// column-inferring parser, so scraped tables get the same row validation as
// dataset files.
func (p *Provider) HistoricalSeries(ctx context.Context, symbol, period string) (*model.Series, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	doc, err := p.page(ctx, fmt.Sprintf(p.layout.HistoryPath, url.PathEscape(symbol)))
	if err != nil {
		return nil, err
	}
	raw, err := tableCSV(doc.Find(p.layout.HistoryTable).First())
	if err != nil {
		return nil, err
	}
	if strings.Count(raw, "\n") < 2 {
		// header only: the symbol has no history rows
		return nil, source.ErrNoData
	}
	s, err := parser.Parse(raw, symbol)
	if err != nil {
		var pe *parser.ParseError
		var de *parser.DataError
		if errors.As(err, &pe) || errors.As(err, &de) {
			// rows are there but unreadable: the page layout has drifted
			p.log.Warn("history table unusable", "symbol", symbol, "error", err)
			return nil, fmt.Errorf("history table for %s: %w", symbol, err)
		}
		return nil, err
	}
	s = parser.SliceForPeriod(s, period, p.now())
	if len(s.Points) == 0 {
		return nil, source.ErrNoData
	}
	return s, nil
}

// tableCSV writes the header cells (th) and each body row (td) as CSV.
func tableCSV(table *goquery.Selection) (string, error) {
	if table.Length() == 0 {
		return "", source.ErrNoData
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	var header []string
	table.Find("tr").First().Find("th").Each(func(_ int, th *goquery.Selection) {
		header = append(header, text(th))
	})
	if len(header) == 0 {
		return "", source.ErrNoData
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	var werr error
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() == 0 || werr != nil {
			return
		}
		rec := make([]string, 0, tds.Length())
		tds.Each(func(_ int, td *goquery.Selection) { rec = append(rec, text(td)) })
		werr = w.Write(rec)
	})
	if werr != nil {
		return "", werr
	}
	w.Flush()
	return buf.String(), w.Error()
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.First().Text()), " ")
}

// number reads a cell like "+1.25", "(-0.4%)" or "1.2M".
func number(s *goquery.Selection) (float64, bool) {
	t := strings.NewReplacer("%", "", "(", "", ")", "").Replace(text(s))
	return parser.ParseNumber(t)
}
