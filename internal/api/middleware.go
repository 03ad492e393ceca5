package api

import (
	"net/http"
	"time"

	"marketdata-hub/internal/logger"
)

// TraceHeader carries the request trace id in and out.
const TraceHeader = "X-Request-ID"

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// instrument assigns a trace id, sets CORS headers, logs and observes the request.
func (h *handlers) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		tid := r.Header.Get(TraceHeader)
		if tid == "" || len(tid) > 128 {
			tid = logger.NewTraceID()
		}
		ctx := logger.WithTraceID(r.Context(), tid)

		w.Header().Set(TraceHeader, tid)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+TraceHeader)

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))

		elapsed := time.Since(start)
		attrs := append([]any{"route", route, "path", r.URL.Path, "status", sw.code, "duration_ms", elapsed.Milliseconds()},
			logger.LogWithTrace(ctx)...)
		if sw.code >= 500 {
			h.log.Error("request failed", attrs...)
		} else {
			h.log.Debug("request", attrs...)
		}
		if h.Metrics != nil {
			h.Metrics.ObserveRequest(route, sw.code, elapsed)
		}
	})
}
