package model

import "time"

// StockInfo is a point-in-time quote for one instrument.
type StockInfo struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name,omitempty"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	PreviousClose float64   `json:"previous_close,omitempty"`
	Open          float64   `json:"open,omitempty"`
	DayHigh       float64   `json:"day_high,omitempty"`
	DayLow        float64   `json:"day_low,omitempty"`
	Volume        float64   `json:"volume,omitempty"`
	MarketCap     float64   `json:"market_cap,omitempty"`
	Currency      string    `json:"currency,omitempty"`
	Exchange      string    `json:"exchange,omitempty"`
	Source        string    `json:"source"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IndexQuote is the level of a composite market index.
type IndexQuote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name,omitempty"`
	Value         float64 `json:"value"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
}

// Market session states reported in MarketOverview.
const (
	MarketOpen   = "open"
	MarketClosed = "closed"
)

// MarketOverview summarizes the headline indices.
type MarketOverview struct {
	Indices      []IndexQuote `json:"indices"`
	MarketStatus string       `json:"market_status"`
	Source       string       `json:"source"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// SectorPerformance is the daily move of one sector.
type SectorPerformance struct {
	Sector        string  `json:"sector"`
	Symbol        string  `json:"symbol,omitempty"`
	ChangePercent float64 `json:"change_percent"`
	Source        string  `json:"source"`
}

// SearchResult is one match of a symbol lookup.
type SearchResult struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Exchange string `json:"exchange,omitempty"`
	Type     string `json:"type,omitempty"`
}

// PercentChange returns (cur-prev)/prev*100, or 0 when prev is not positive.
func PercentChange(cur, prev float64) float64 {
	if prev <= 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}
