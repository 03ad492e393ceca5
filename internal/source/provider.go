// Package source defines the provider contract shared by every market-data
// backend and the coordinator that falls back across them by priority and
// observed health.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketdata-hub/internal/model"
)

// ErrNoData is returned by a Provider that has nothing for the request.
// It is an answer, not a failure: it does not count against health.
var ErrNoData = errors.New("no data")

// Provider is a market-data backend. Implementations return ErrNoData, or a
// nil/empty value with a nil error, when they have nothing to offer.
type Provider interface {
	Name() string
	StockInfo(ctx context.Context, symbol string) (*model.StockInfo, error)
	MarketOverview(ctx context.Context) (*model.MarketOverview, error)
	HistoricalSeries(ctx context.Context, symbol, period string) (*model.Series, error)
	SectorPerformance(ctx context.Context) ([]model.SectorPerformance, error)
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
}

// Priority orders adapters; higher is tried first.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// ParsePriority accepts low, medium or high in any case.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return PriorityLow, nil
	case "MEDIUM":
		return PriorityMedium, nil
	case "HIGH":
		return PriorityHigh, nil
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// MarshalText encodes the priority by name.
func (p Priority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Descriptor is the static configuration of one adapter.
type Descriptor struct {
	Name     string
	Priority Priority
	Timeout  time.Duration
}
