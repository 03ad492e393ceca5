package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"marketdata-hub/internal/indicator"
	"marketdata-hub/internal/logger"
	"marketdata-hub/internal/market"
	"marketdata-hub/internal/parser"
)

type handlers struct {
	Deps
	log *slog.Logger
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: msg})
}

// fail maps service errors onto status codes. Absence is 404 not_found;
// anything unexpected is a generic 500.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ide *indicator.InsufficientDataError
	switch {
	case errors.Is(err, market.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found"})
	case errors.As(err, &ide):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "insufficient_data", Message: ide.Error()})
	default:
		h.log.Error("handler error", append([]any{"path", r.URL.Path, "error", err}, logger.LogWithTrace(r.Context())...)...)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal"})
	}
}

func symbolParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(r.PathValue("symbol")))
}

func (h *handlers) stock(w http.ResponseWriter, r *http.Request) {
	info, err := h.Market.StockInfo(r.Context(), symbolParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *handlers) overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.Market.MarketOverview(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (h *handlers) sectors(w http.ResponseWriter, r *http.Request) {
	s, err := h.Market.Sectors(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		badRequest(w, "q is required")
		return
	}
	res, err := h.Market.Search(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// history serves ?period= or an explicit ?from=&to= range.
func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" && to == "" {
		s, err := h.Market.History(r.Context(), symbolParam(r), q.Get("period"))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
		return
	}

	var fromT, toT time.Time
	var ok bool
	if from != "" {
		if fromT, ok = parser.ParseDate(from); !ok {
			badRequest(w, "invalid from date")
			return
		}
	}
	if to != "" {
		if toT, ok = parser.ParseDate(to); !ok {
			badRequest(w, "invalid to date")
			return
		}
	}
	s, err := h.Market.HistoryRange(r.Context(), symbolParam(r), fromT, toT)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *handlers) historyBatch(w http.ResponseWriter, r *http.Request) {
	var symbols []string
	seen := make(map[string]bool)
	for _, s := range strings.Split(r.URL.Query().Get("symbols"), ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" && !seen[s] {
			seen[s] = true
			symbols = append(symbols, s)
		}
	}
	switch {
	case len(symbols) == 0:
		badRequest(w, "symbols is required")
		return
	case len(symbols) > maxBatchSymbols:
		badRequest(w, "too many symbols")
		return
	}

	got := h.Market.HistoryBatch(r.Context(), symbols, r.URL.Query().Get("period"))
	var missing []string
	for _, s := range symbols {
		if _, ok := got[s]; !ok {
			missing = append(missing, s)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"series": got, "missing": missing})
}

func (h *handlers) analysis(w http.ResponseWriter, r *http.Request) {
	b, err := h.Market.Analysis(r.Context(), symbolParam(r), r.URL.Query().Get("period"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *handlers) datasetSymbols(w http.ResponseWriter, r *http.Request) {
	if h.Dataset == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found"})
		return
	}
	syms, err := h.Dataset.ListAvailableSymbols(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(syms), "symbols": syms})
}

func (h *handlers) datasetMetadata(w http.ResponseWriter, r *http.Request) {
	if h.Dataset == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found"})
		return
	}
	cov, err := h.Dataset.RepositoryMetadata(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cov)
}

func (h *handlers) sources(w http.ResponseWriter, r *http.Request) {
	if h.Sources == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, h.Sources())
}

func (h *handlers) cacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Market.CacheStats(r.Context()))
}

func (h *handlers) clearCache(w http.ResponseWriter, r *http.Request) {
	h.Market.ClearCache(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
