package history

import (
	"context"
	"errors"
	"time"

	"marketdata-hub/internal/model"
)

// ErrNotFound is returned for symbols with no stored record or no upstream file.
var ErrNotFound = errors.New("history: symbol not found")

// Metadata describes a stored series without holding its points.
type Metadata struct {
	Symbol      string          `json:"symbol"`
	LastUpdated time.Time       `json:"last_updated"`
	DataPoints  int             `json:"data_points"`
	DateRange   model.DateRange `json:"date_range"`
	RawBytes    int             `json:"raw_bytes"`
	Columns     []string        `json:"columns,omitempty"`
}

// Fresh reports whether the record is younger than ttl at now.
func (m Metadata) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(m.LastUpdated) < ttl
}

// RecordStore persists one series plus its metadata per symbol.
type RecordStore interface {
	Load(ctx context.Context, symbol string) (*model.Series, *Metadata, error)
	LoadMetadata(ctx context.Context, symbol string) (*Metadata, error)
	Save(ctx context.Context, s *model.Series, meta Metadata) error
	Symbols(ctx context.Context) ([]string, error)
}

// Fetcher retrieves the raw delimited text for a symbol.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string) ([]byte, error)
}

// Catalog is implemented by fetchers that can list what they serve.
type Catalog interface {
	Symbols(ctx context.Context) ([]string, error)
}
