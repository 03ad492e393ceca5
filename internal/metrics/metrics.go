// Package metrics exposes Prometheus instruments for source attempts, dataset
// fetches, the cache backend and the HTTP API, plus the /healthz probe.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"marketdata-hub/internal/cache"
	"marketdata-hub/internal/history"
	"marketdata-hub/internal/source"
)

// Metrics holds all Prometheus metrics for the hub.
type Metrics struct {
	// Source coordinator
	SourceAttempts *prometheus.CounterVec   // labels: adapter, op, outcome
	SourceDuration *prometheus.HistogramVec // labels: adapter, op
	AdapterHealthy *prometheus.GaugeVec     // labels: adapter; 1=healthy
	HealthFlips    *prometheus.CounterVec   // labels: adapter, to

	// Dataset orchestrator
	DatasetFetches     *prometheus.CounterVec // labels: outcome
	DatasetFetchDur    prometheus.Histogram
	DatasetBytes       prometheus.Counter
	DatasetRowsSkipped prometheus.Counter

	// Cache backend circuit breaker
	CacheBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	CacheBreakerTrips prometheus.Counter

	// HTTP API
	HTTPRequests *prometheus.CounterVec   // labels: route, code
	HTTPDuration *prometheus.HistogramVec // labels: route

	// Market session
	MarketState prometheus.Gauge // 0=closed, 1=open
}

// NewMetrics creates the instruments and registers them with reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		SourceAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_source_attempts_total",
			Help: "Adapter calls made by the coordinator, by outcome (found, absent, timeout, error)",
		}, []string{"adapter", "op", "outcome"}),
		SourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hub_source_attempt_duration_seconds",
			Help:    "Adapter call latency as seen by the coordinator",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"adapter", "op"}),
		AdapterHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hub_adapter_healthy",
			Help: "Adapter health flag (1=healthy, 0=unhealthy)",
		}, []string{"adapter"}),
		HealthFlips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_adapter_health_changes_total",
			Help: "Adapter health transitions",
		}, []string{"adapter", "to"}),

		DatasetFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_dataset_fetches_total",
			Help: "Raw dataset fetches, by outcome (ok, not_found, error)",
		}, []string{"outcome"}),
		DatasetFetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hub_dataset_fetch_duration_seconds",
			Help:    "Fetch plus parse latency per symbol",
			Buckets: prometheus.DefBuckets,
		}),
		DatasetBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hub_dataset_bytes_total",
			Help: "Raw bytes downloaded from the dataset",
		}),
		DatasetRowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hub_dataset_rows_skipped_total",
			Help: "Rows dropped by parser validation",
		}),

		CacheBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hub_cache_breaker_state",
			Help: "Cache backend circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		CacheBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hub_cache_breaker_trips_total",
			Help: "Times the cache backend circuit breaker tripped open",
		}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_http_requests_total",
			Help: "API requests by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hub_http_request_duration_seconds",
			Help:    "API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),

		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hub_market_state",
			Help: "US equity session state (0=closed, 1=open)",
		}),
	}

	reg.MustRegister(
		m.SourceAttempts,
		m.SourceDuration,
		m.AdapterHealthy,
		m.HealthFlips,
		m.DatasetFetches,
		m.DatasetFetchDur,
		m.DatasetBytes,
		m.DatasetRowsSkipped,
		m.CacheBreakerState,
		m.CacheBreakerTrips,
		m.HTTPRequests,
		m.HTTPDuration,
		m.MarketState,
	)
	return m
}

// ObserveAttempt records one coordinator attempt. Suitable as
// source.Coordinator.OnAttempt.
func (m *Metrics) ObserveAttempt(a source.Attempt) {
	m.SourceAttempts.WithLabelValues(a.Adapter, a.Op, attemptOutcome(a)).Inc()
	m.SourceDuration.WithLabelValues(a.Adapter, a.Op).Observe(a.Duration.Seconds())
}

func attemptOutcome(a source.Attempt) string {
	if a.OK {
		return "found"
	}
	var te *source.TimeoutError
	var ue *source.UnavailableError
	switch {
	case errors.As(a.Reason, &te):
		return "timeout"
	case errors.As(a.Reason, &ue):
		return "error"
	}
	return "absent"
}

// SetAdapterHealth records a health transition. Suitable as
// source.Coordinator.OnHealthChange.
func (m *Metrics) SetAdapterHealth(adapter string, healthy bool) {
	to := "unhealthy"
	v := 0.0
	if healthy {
		to, v = "healthy", 1
	}
	m.AdapterHealthy.WithLabelValues(adapter).Set(v)
	m.HealthFlips.WithLabelValues(adapter, to).Inc()
}

// ObserveFetch records one dataset fetch. Suitable as history.Orchestrator.OnFetch.
func (m *Metrics) ObserveFetch(ev history.FetchEvent) {
	outcome := "ok"
	switch {
	case errors.Is(ev.Err, history.ErrNotFound):
		outcome = "not_found"
	case ev.Err != nil:
		outcome = "error"
	}
	m.DatasetFetches.WithLabelValues(outcome).Inc()
	m.DatasetFetchDur.Observe(ev.Duration.Seconds())
	m.DatasetBytes.Add(float64(ev.Bytes))
	m.DatasetRowsSkipped.Add(float64(ev.Skipped))
}

// SetBreakerState records a cache breaker transition.
func (m *Metrics) SetBreakerState(from, to cache.BreakerState) {
	m.CacheBreakerState.Set(float64(to))
	if to == cache.BreakerOpen && from != cache.BreakerOpen {
		m.CacheBreakerTrips.Inc()
	}
}

// ObserveRequest records one API request.
func (m *Metrics) ObserveRequest(route string, code int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(route, statusLabel(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

// SetMarketOpen records the session state.
func (m *Metrics) SetMarketOpen(open bool) {
	if open {
		m.MarketState.Set(1)
		return
	}
	m.MarketState.Set(0)
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	}
	return "2xx"
}
