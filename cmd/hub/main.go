// Command hub serves aggregated market data over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"marketdata-hub/config"
	"marketdata-hub/internal/api"
	"marketdata-hub/internal/cache"
	"marketdata-hub/internal/history"
	"marketdata-hub/internal/indicator"
	"marketdata-hub/internal/logger"
	"marketdata-hub/internal/market"
	"marketdata-hub/internal/markethours"
	"marketdata-hub/internal/metrics"
	"marketdata-hub/internal/notification"
	"marketdata-hub/internal/platform/httpclient"
	"marketdata-hub/internal/source"
	"marketdata-hub/internal/source/dataset"
	"marketdata-hub/internal/source/live"
	"marketdata-hub/internal/source/scrape"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.Init("marketdata-hub", logger.ParseLevel(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := run(cfg, log); err != nil {
		log.Error("hub stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prom := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// ---- Cache ----
	var store cache.Store
	var redisStore *cache.Redis
	switch cfg.CacheBackend {
	case "redis":
		r, err := cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		}, log)
		if err != nil {
			return err
		}
		defer r.Close()
		b := r.Breaker()
		logChange := b.OnStateChange
		b.OnStateChange = func(from, to cache.BreakerState) {
			if logChange != nil {
				logChange(from, to)
			}
			prom.SetBreakerState(from, to)
		}
		store, redisStore = r, r
	default:
		mem := cache.NewMemory()
		go mem.Run(ctx, time.Minute)
		store = mem
	}

	// ---- Sources ----
	client := httpclient.New(httpclient.Options{
		Timeout:        cfg.HTTPTimeout,
		RequestsPerSec: cfg.HTTPRPS,
		Burst:          int(cfg.HTTPRPS) + 1,
	})

	var adapters []*source.Adapter
	var orch *history.Orchestrator

	if cfg.SourceEnabled(config.SourceDataset) {
		fetcher, err := datasetFetcher(cfg, client)
		if err != nil {
			return err
		}
		records, err := history.NewFileStore(cfg.DataDir)
		if err != nil {
			return err
		}
		orch = history.New(fetcher, records, log)
		orch.TTL = cfg.HistoryTTL
		orch.OnFetch = prom.ObserveFetch
		p := dataset.New(orch, dataset.Config{
			Name:     config.SourceDataset,
			Exchange: cfg.Exchange,
			Indices:  cfg.Indices,
			Sectors:  cfg.Sectors,
		}, log)
		a, err := wrap(cfg, config.SourceDataset, p)
		if err != nil {
			return err
		}
		adapters = append(adapters, a)
	}

	if cfg.SourceEnabled(config.SourceLive) {
		p, err := live.New(client, live.Config{
			Name:    config.SourceLive,
			BaseURL: cfg.LiveURL,
			Indices: cfg.Indices,
			Sectors: cfg.Sectors,
		}, log)
		if err != nil {
			return err
		}
		a, err := wrap(cfg, config.SourceLive, p)
		if err != nil {
			return err
		}
		adapters = append(adapters, a)
	}

	if cfg.SourceEnabled(config.SourceScrape) {
		p, err := scrape.New(client, scrape.Config{
			Name:    config.SourceScrape,
			BaseURL: cfg.ScrapeURL,
			Layout:  cfg.Sources[config.SourceScrape].Layout,
		}, log)
		if err != nil {
			return err
		}
		a, err := wrap(cfg, config.SourceScrape, p)
		if err != nil {
			return err
		}
		adapters = append(adapters, a)
	}

	coord := source.NewCoordinator(log, adapters...)
	for _, a := range coord.Adapters() {
		d := a.Descriptor()
		prom.AdapterHealthy.WithLabelValues(d.Name).Set(1)
		log.Info("source registered", "adapter", d.Name, "priority", d.Priority.String(), "timeout", d.Timeout)
	}

	alerter := notification.NewHealthAlerter(notifier(cfg, log), cfg.AlertCooldown, log)
	coord.OnAttempt = prom.ObserveAttempt
	coord.OnHealthChange = func(adapter string, healthy bool) {
		prom.SetAdapterHealth(adapter, healthy)
		alerter.Notify(adapter, healthy)
	}

	// ---- Background refresh ----
	if orch != nil && len(cfg.RefreshSymbols) > 0 {
		ref, err := history.NewRefresher(orch, cfg.RefreshCron, cfg.RefreshSymbols, log)
		if err != nil {
			return err
		}
		ref.Start()
		defer ref.Stop()
	}

	// ---- Metrics & health ----
	health := metrics.NewHealthStatus(coord.Status)
	if redisStore != nil {
		health.StartLivenessChecker(ctx, redisStore.Client(), 15*time.Second)
	}
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health, nil, log)
	metricsSrv.Start()
	go trackSession(ctx, prom)

	// ---- API ----
	svc := market.NewService(coord, store, cfg.TTLs, indicator.NewEngine(indicator.DefaultParams()), log)
	deps := api.Deps{Market: svc, Sources: coord.Status, Metrics: prom, Log: log}
	if orch != nil {
		deps.Dataset = orch
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", "addr", cfg.HTTPAddr, "sources", len(adapters), "cache", cfg.CacheBackend)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case runErr = <-errCh:
	}
	cancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Warn("api shutdown", "error", err)
	}
	if err := metricsSrv.Stop(shutCtx); err != nil {
		log.Warn("metrics shutdown", "error", err)
	}
	alerter.Wait()
	return runErr
}

func datasetFetcher(cfg *config.Config, client *httpclient.Client) (history.Fetcher, error) {
	if cfg.DatasetDir != "" {
		return dataset.NewDirFetcher(cfg.DatasetDir)
	}
	return dataset.NewHTTPFetcher(client, cfg.DatasetURL, cfg.DatasetHint)
}

func wrap(cfg *config.Config, name string, p source.Provider) (*source.Adapter, error) {
	d, err := cfg.Sources[name].Descriptor(name)
	if err != nil {
		return nil, err
	}
	return source.Wrap(p, d), nil
}

func notifier(cfg *config.Config, log *slog.Logger) notification.Notifier {
	n := notification.Multi{notification.NewLogNotifier(log)}
	if cfg.AlertWebhookURL != "" {
		n = append(n, notification.NewWebhookNotifier(cfg.AlertWebhookURL))
	}
	if cfg.TelegramBotToken != "" {
		n = append(n, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	return n
}

// trackSession keeps the market state gauge current.
func trackSession(ctx context.Context, prom *metrics.Metrics) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		prom.SetMarketOpen(markethours.IsMarketOpen(time.Now()))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
