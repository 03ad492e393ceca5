package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Refresher force-refreshes a watch list on a cron schedule so that request
// paths mostly hit fresh records.
type Refresher struct {
	orch    *Orchestrator
	cron    *cron.Cron
	symbols []string
	log     *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	running bool
}

// NewRefresher schedules a refresh of symbols. schedule is a six-field cron
// expression (seconds first).
func NewRefresher(orch *Orchestrator, schedule string, symbols []string, log *slog.Logger) (*Refresher, error) {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Refresher{
		orch:    orch,
		cron:    cron.New(cron.WithSeconds()),
		symbols: symbols,
		log:     log.With("component", "refresher"),
		ctx:     ctx,
		cancel:  cancel,
	}
	if _, err := r.cron.AddFunc(schedule, r.RunOnce); err != nil {
		cancel()
		return nil, fmt.Errorf("refresh schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start starts the scheduler.
func (r *Refresher) Start() {
	r.cron.Start()
	r.log.Info("scheduler started", "symbols", len(r.symbols))
}

// Stop cancels an in-flight run and waits for it to return.
func (r *Refresher) Stop() {
	r.cancel()
	<-r.cron.Stop().Done()
	r.log.Info("scheduler stopped")
}

// RunOnce refreshes the watch list now. Overlapping runs are skipped.
func (r *Refresher) RunOnce() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		r.log.Warn("previous refresh still running, skipping")
		return
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	got := r.orch.GetMultiple(r.ctx, r.symbols, ForceRefresh())
	r.log.Info("refresh done", "requested", len(r.symbols), "refreshed", len(got))
}
