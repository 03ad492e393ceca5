package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketdata-hub/internal/source"
)

// HealthStatus aggregates liveness of the cache backend and the adapters.
type HealthStatus struct {
	mu sync.RWMutex

	adapters func() []source.AdapterStatus

	RedisEnabled   bool      `json:"redis_enabled"`
	RedisConnected bool      `json:"redis_connected"`
	RedisLatencyMs float64   `json:"redis_latency_ms"`
	LastCheckAt    time.Time `json:"last_check_at"`
	StartedAt      time.Time `json:"started_at"`
}

// NewHealthStatus creates a status that reads adapter health from adapters,
// typically source.Coordinator.Status.
func NewHealthStatus(adapters func() []source.AdapterStatus) *HealthStatus {
	return &HealthStatus{adapters: adapters, StartedAt: time.Now()}
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb goredis.UniversalClient) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisEnabled = true
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker pings rdb every interval until ctx is done. A nil rdb
// (memory cache) makes this a no-op.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb goredis.UniversalClient, interval time.Duration) {
	if rdb == nil {
		return
	}
	h.CheckRedis(ctx, rdb)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				h.CheckRedis(probeCtx, rdb)
				cancel()
			}
		}
	}()
}

type adapterHealth struct {
	Name          string  `json:"name"`
	Priority      string  `json:"priority"`
	Healthy       bool    `json:"healthy"`
	Success       int64   `json:"success"`
	Errors        int64   `json:"errors"`
	AvgResponseMs float64 `json:"avg_response_ms"`
	P95ResponseMs float64 `json:"p95_response_ms"`
}

// ServeHTTP handles /healthz. The hub is degraded when the cache backend is
// down or some adapter is unhealthy, and unhealthy when no adapter is healthy.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var adapters []adapterHealth
	healthyCount := 0
	if h.adapters != nil {
		for _, st := range h.adapters() {
			adapters = append(adapters, adapterHealth{
				Name:          st.Name,
				Priority:      st.Priority.String(),
				Healthy:       st.Stats.Healthy,
				Success:       st.Stats.Success,
				Errors:        st.Stats.Errors,
				AvgResponseMs: st.Stats.AvgResponseMs,
				P95ResponseMs: st.Stats.P95ResponseMs,
			})
			if st.Stats.Healthy {
				healthyCount++
			}
		}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if (h.RedisEnabled && !h.RedisConnected) || healthyCount < len(adapters) {
		overallStatus = "degraded"
	}
	if len(adapters) > 0 && healthyCount == 0 {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	}

	status := struct {
		Status         string          `json:"status"`
		Uptime         string          `json:"uptime"`
		RedisEnabled   bool            `json:"redis_enabled"`
		RedisConnected bool            `json:"redis_connected"`
		RedisLatencyMs float64         `json:"redis_latency_ms"`
		Adapters       []adapterHealth `json:"adapters"`
		LastCheckAt    string          `json:"last_check_at,omitempty"`
	}{
		Status:         overallStatus,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		RedisEnabled:   h.RedisEnabled,
		RedisConnected: h.RedisConnected,
		RedisLatencyMs: h.RedisLatencyMs,
		Adapters:       adapters,
	}
	if !h.LastCheckAt.IsZero() {
		status.LastCheckAt = h.LastCheckAt.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
	log  *slog.Logger
}

// NewServer creates a metrics and health server. handler serves /metrics;
// nil means promhttp.Handler() over the default registry.
func NewServer(addr string, health *HealthStatus, handler http.Handler, log *slog.Logger) *Server {
	if handler == nil {
		handler = promhttp.Handler()
	}
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		log:  log.With("component", "metrics"),
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.log.Error("server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
