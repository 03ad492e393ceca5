// Package api is the HTTP JSON surface of the hub.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"marketdata-hub/internal/cache"
	"marketdata-hub/internal/history"
	"marketdata-hub/internal/indicator"
	"marketdata-hub/internal/model"
	"marketdata-hub/internal/source"
)

// Market is the read path served by market.Service.
type Market interface {
	StockInfo(ctx context.Context, symbol string) (*model.StockInfo, error)
	MarketOverview(ctx context.Context) (*model.MarketOverview, error)
	Sectors(ctx context.Context) ([]model.SectorPerformance, error)
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
	History(ctx context.Context, symbol, period string) (*model.Series, error)
	HistoryRange(ctx context.Context, symbol string, from, to time.Time) (*model.Series, error)
	HistoryBatch(ctx context.Context, symbols []string, period string) map[string]*model.Series
	Analysis(ctx context.Context, symbol, period string) (*indicator.Bundle, error)
	CacheStats(ctx context.Context) cache.Stats
	ClearCache(ctx context.Context)
}

// Dataset exposes the repository views of history.Orchestrator.
type Dataset interface {
	ListAvailableSymbols(ctx context.Context) ([]string, error)
	RepositoryMetadata(ctx context.Context) (*history.Coverage, error)
}

// RequestObserver receives one call per finished request.
type RequestObserver interface {
	ObserveRequest(route string, code int, d time.Duration)
}

// Deps are the collaborators of the router. Dataset, Sources and Metrics may
// be nil; their routes then answer 404 or are not instrumented.
type Deps struct {
	Market  Market
	Dataset Dataset
	Sources func() []source.AdapterStatus
	Metrics RequestObserver
	Log     *slog.Logger
}

// maxBatchSymbols caps /history/batch requests.
const maxBatchSymbols = 50

// NewRouter sets up the HTTP routes.
func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	h := &handlers{Deps: d, log: d.Log.With("component", "api")}
	mux := http.NewServeMux()

	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, h.instrument(pattern, fn))
	}

	route("GET /api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	route("GET /api/v1/stocks/{symbol}", h.stock)
	route("GET /api/v1/market/overview", h.overview)
	route("GET /api/v1/market/sectors", h.sectors)
	route("GET /api/v1/search", h.search)
	route("GET /api/v1/history/batch", h.historyBatch)
	route("GET /api/v1/history/{symbol}", h.history)
	route("GET /api/v1/analysis/{symbol}", h.analysis)
	route("GET /api/v1/dataset/symbols", h.datasetSymbols)
	route("GET /api/v1/dataset/metadata", h.datasetMetadata)
	route("GET /api/v1/sources", h.sources)
	route("GET /api/v1/cache/stats", h.cacheStats)
	route("DELETE /api/v1/cache", h.clearCache)

	return mux
}
