// Package cache is the category-keyed TTL store that sits in front of the
// source coordinator. Stores never return errors: a backend failure reads as
// a miss and a failed write is dropped.
package cache

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// Store is a TTL-bounded key/value store.
type Store interface {
	// Get returns the stored value, or ok=false when the key is absent or expired.
	Get(ctx context.Context, key string) (value []byte, ok bool)
	// Set stores value until ttl elapses. A non-positive ttl never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context)
	Stats(ctx context.Context) Stats
}

// Stats are cumulative counters plus the live key count.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Keys    int     `json:"keys"`
	HitRate float64 `json:"hit_rate"`
	Backend string  `json:"backend"`
}

func (s Stats) withRate() Stats {
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// TTLs holds the per-category expiry chosen by callers.
type TTLs struct {
	MarketOverview time.Duration
	StockInfo      time.Duration
	Historical     time.Duration
	Sector         time.Duration
	Search         time.Duration
}

// DefaultTTLs returns the standard category lifetimes.
func DefaultTTLs() TTLs {
	return TTLs{
		MarketOverview: 60 * time.Second,
		StockInfo:      300 * time.Second,
		Historical:     86400 * time.Second,
		Sector:         300 * time.Second,
		Search:         600 * time.Second,
	}
}

const (
	marketOverviewKey = "market_overview"
	sectorKey         = "sector_performance"
)

var whitespace = regexp.MustCompile(`\s+`)

// MarketOverviewKey is the singleton key for the market overview.
func MarketOverviewKey() string { return marketOverviewKey }

// SectorKey is the singleton key for sector performance.
func SectorKey() string { return sectorKey }

// StockInfoKey is keyed by the uppercased symbol.
func StockInfoKey(symbol string) string {
	return "stock_info:" + normalizeSymbol(symbol)
}

// HistoricalKey is keyed by uppercased symbol and period token.
func HistoricalKey(symbol, period string) string {
	return "historical:" + normalizeSymbol(symbol) + ":" + strings.ToLower(strings.TrimSpace(period))
}

// SearchKey is keyed by the lowercased query with runs of whitespace collapsed.
func SearchKey(query string) string {
	q := whitespace.ReplaceAllString(strings.TrimSpace(query), " ")
	return "search:" + strings.ToLower(q)
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// GetJSON decodes a cached value into dst. A value that no longer decodes
// counts as a miss.
func GetJSON(ctx context.Context, s Store, key string, dst any) bool {
	b, ok := s.Get(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(b, dst) == nil
}

// SetJSON encodes v and stores it. Encoding failures are dropped.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.Set(ctx, key, b, ttl)
}
