package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// HealthAlerter turns adapter health transitions into alerts. Its Notify
// method matches source.Coordinator.OnHealthChange and never blocks the
// caller; delivery happens on a goroutine with its own timeout.
type HealthAlerter struct {
	n        Notifier
	log      *slog.Logger
	cooldown time.Duration
	timeout  time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time // adapter -> last unhealthy alert
	wg   sync.WaitGroup
}

// NewHealthAlerter creates an alerter. Repeated unhealthy alerts for the same
// adapter within cooldown are suppressed; recovery alerts always go out.
func NewHealthAlerter(n Notifier, cooldown time.Duration, log *slog.Logger) *HealthAlerter {
	if log == nil {
		log = slog.Default()
	}
	return &HealthAlerter{
		n:        n,
		log:      log.With("component", "health-alerts"),
		cooldown: cooldown,
		timeout:  10 * time.Second,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

// Notify reports that adapter became healthy or unhealthy.
func (h *HealthAlerter) Notify(adapter string, healthy bool) {
	now := h.now()
	alert := Alert{Source: adapter, Time: now.UTC()}
	if healthy {
		alert.Level = AlertInfo
		alert.Title = "Source recovered"
		alert.Message = fmt.Sprintf("adapter %s is healthy again", adapter)
	} else {
		h.mu.Lock()
		prev, seen := h.last[adapter]
		if seen && now.Sub(prev) < h.cooldown {
			h.mu.Unlock()
			return
		}
		h.last[adapter] = now
		h.mu.Unlock()

		alert.Level = AlertWarning
		alert.Title = "Source unhealthy"
		alert.Message = fmt.Sprintf("adapter %s exceeded its error budget and is skipped while other sources are healthy", adapter)
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()
		if err := h.n.Send(ctx, alert); err != nil {
			h.log.Warn("alert delivery failed", "adapter", adapter, "error", err)
		}
	}()
}

// Wait blocks until in-flight deliveries finish.
func (h *HealthAlerter) Wait() { h.wg.Wait() }
