package scrape

// Layout locates data on the scraped site. Paths are relative to the base URL
// and take the escaped symbol or query through a single %s verb. Selectors
// are goquery (CSS) selectors.
type Layout struct {
	QuotePath    string `yaml:"quote_path"`
	HistoryPath  string `yaml:"history_path"`
	SearchPath   string `yaml:"search_path"`
	OverviewPath string `yaml:"overview_path"`
	SectorsPath  string `yaml:"sectors_path"`

	Name          string `yaml:"name"`
	Price         string `yaml:"price"`
	Change        string `yaml:"change"`
	ChangePercent string `yaml:"change_percent"`
	PreviousClose string `yaml:"previous_close"`
	Open          string `yaml:"open"`
	DayHigh       string `yaml:"day_high"`
	DayLow        string `yaml:"day_low"`
	Volume        string `yaml:"volume"`
	MarketCap     string `yaml:"market_cap"`
	Exchange      string `yaml:"exchange"`

	// HistoryTable is the table whose header row names the columns.
	HistoryTable string `yaml:"history_table"`
	// Row selectors; cells are read in the documented order.
	IndexRows  string `yaml:"index_rows"`  // symbol, name, value, change, change %
	SectorRows string `yaml:"sector_rows"` // sector, change %, [symbol]
	SearchRows string `yaml:"search_rows"` // symbol, name, exchange, type
}

// DefaultLayout matches pages that tag fields with data-field attributes.
func DefaultLayout() Layout {
	return Layout{
		QuotePath:    "/quote/%s",
		HistoryPath:  "/quote/%s/history",
		SearchPath:   "/lookup?s=%s",
		OverviewPath: "/markets",
		SectorsPath:  "/sectors",

		Name:          `[data-field="name"]`,
		Price:         `[data-field="price"]`,
		Change:        `[data-field="change"]`,
		ChangePercent: `[data-field="change-percent"]`,
		PreviousClose: `[data-field="previous-close"]`,
		Open:          `[data-field="open"]`,
		DayHigh:       `[data-field="day-high"]`,
		DayLow:        `[data-field="day-low"]`,
		Volume:        `[data-field="volume"]`,
		MarketCap:     `[data-field="market-cap"]`,
		Exchange:      `[data-field="exchange"]`,

		HistoryTable: "table.history",
		IndexRows:    "table.indices tbody tr",
		SectorRows:   "table.sectors tbody tr",
		SearchRows:   "table.lookup tbody tr",
	}
}

// merge fills empty fields of l from d.
func (l Layout) merge(d Layout) Layout {
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}
	return Layout{
		QuotePath:     pick(l.QuotePath, d.QuotePath),
		HistoryPath:   pick(l.HistoryPath, d.HistoryPath),
		SearchPath:    pick(l.SearchPath, d.SearchPath),
		OverviewPath:  pick(l.OverviewPath, d.OverviewPath),
		SectorsPath:   pick(l.SectorsPath, d.SectorsPath),
		Name:          pick(l.Name, d.Name),
		Price:         pick(l.Price, d.Price),
		Change:        pick(l.Change, d.Change),
		ChangePercent: pick(l.ChangePercent, d.ChangePercent),
		PreviousClose: pick(l.PreviousClose, d.PreviousClose),
		Open:          pick(l.Open, d.Open),
		DayHigh:       pick(l.DayHigh, d.DayHigh),
		DayLow:        pick(l.DayLow, d.DayLow),
		Volume:        pick(l.Volume, d.Volume),
		MarketCap:     pick(l.MarketCap, d.MarketCap),
		Exchange:      pick(l.Exchange, d.Exchange),
		HistoryTable:  pick(l.HistoryTable, d.HistoryTable),
		IndexRows:     pick(l.IndexRows, d.IndexRows),
		SectorRows:    pick(l.SectorRows, d.SectorRows),
		SearchRows:    pick(l.SearchRows, d.SearchRows),
	}
}
