// Package config loads hub configuration from the environment (optionally
// seeded from a .env file) and a YAML file of per-source overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"marketdata-hub/internal/cache"
	"marketdata-hub/internal/model"
	"marketdata-hub/internal/source"
	"marketdata-hub/internal/source/scrape"
)

// Source names.
const (
	SourceLive    = "live"
	SourceDataset = "dataset"
	SourceScrape  = "scrape"
)

// SourceConfig is one adapter's settings. Zero fields keep defaults.
type SourceConfig struct {
	Enabled  *bool         `yaml:"enabled"`
	Priority string        `yaml:"priority"`
	Timeout  time.Duration `yaml:"timeout"`
	Layout   scrape.Layout `yaml:"layout"` // scrape only
}

// IsEnabled reports the explicit flag, or def when unset.
func (s SourceConfig) IsEnabled(def bool) bool {
	if s.Enabled == nil {
		return def
	}
	return *s.Enabled
}

// Descriptor resolves the adapter descriptor for name.
func (s SourceConfig) Descriptor(name string) (source.Descriptor, error) {
	p, err := source.ParsePriority(s.Priority)
	if err != nil {
		return source.Descriptor{}, fmt.Errorf("sources.%s: %w", name, err)
	}
	return source.Descriptor{Name: name, Priority: p, Timeout: s.Timeout}, nil
}

type sourcesFile struct {
	Sources map[string]SourceConfig `yaml:"sources"`
}

// Config holds all application configuration.
type Config struct {
	HTTPAddr    string
	MetricsAddr string
	LogLevel    string

	// Cache
	CacheBackend  string // memory | redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	TTLs          cache.TTLs

	// Dataset
	DataDir     string // parsed records
	DatasetURL  string
	DatasetDir  string
	DatasetHint string
	HistoryTTL  time.Duration

	// Other sources
	LiveURL     string
	ScrapeURL   string
	SourcesFile string
	Sources     map[string]SourceConfig

	// Outbound HTTP
	HTTPRPS     float64
	HTTPTimeout time.Duration

	// Background refresh
	RefreshCron    string
	RefreshSymbols []string

	// Market overview / sectors
	Indices  []model.Instrument
	Sectors  []model.Instrument
	Exchange string

	// Alerts
	AlertWebhookURL  string
	TelegramBotToken string
	TelegramChatID   string
	AlertCooldown    time.Duration
}

const (
	defaultIndices = "SPY:S&P 500,DIA:Dow Jones Industrial Average,QQQ:Nasdaq 100"
	defaultSectors = "XLK:Technology,XLF:Financials,XLE:Energy,XLV:Health Care,XLI:Industrials," +
		"XLY:Consumer Discretionary,XLP:Consumer Staples,XLU:Utilities,XLB:Materials," +
		"XLRE:Real Estate,XLC:Communication Services"
)

// Load reads .env (if present), the environment and the sources file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without reading .env.
func FromEnv() (*Config, error) {
	ttl := cache.DefaultTTLs()
	c := &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		CacheBackend:  strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisPrefix:   getEnv("REDIS_PREFIX", "mdhub:"),
		TTLs: cache.TTLs{
			MarketOverview: getEnvDuration("TTL_MARKET_OVERVIEW", ttl.MarketOverview),
			StockInfo:      getEnvDuration("TTL_STOCK_INFO", ttl.StockInfo),
			Historical:     getEnvDuration("TTL_HISTORICAL", ttl.Historical),
			Sector:         getEnvDuration("TTL_SECTOR", ttl.Sector),
			Search:         getEnvDuration("TTL_SEARCH", ttl.Search),
		},

		DataDir:     getEnv("DATA_DIR", "data/history"),
		DatasetURL:  getEnv("DATASET_URL", ""),
		DatasetDir:  getEnv("DATASET_DIR", ""),
		DatasetHint: getEnv("DATASET_HINT", "stocks"),
		HistoryTTL:  getEnvDuration("HISTORY_TTL", 24*time.Hour),

		LiveURL:     getEnv("LIVE_URL", ""),
		ScrapeURL:   getEnv("SCRAPE_URL", ""),
		SourcesFile: getEnv("SOURCES_FILE", "sources.yaml"),

		HTTPRPS:     getEnvFloat("HTTP_RPS", 5),
		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 30*time.Second),

		// Weekdays 18:00 server time, after the US close.
		RefreshCron:    getEnv("REFRESH_CRON", "0 0 18 * * 1-5"),
		RefreshSymbols: splitList(getEnv("REFRESH_SYMBOLS", "")),

		Indices:  model.ParseInstruments(getEnv("INDEX_SYMBOLS", defaultIndices)),
		Sectors:  model.ParseInstruments(getEnv("SECTOR_SYMBOLS", defaultSectors)),
		Exchange: getEnv("DATASET_EXCHANGE", "US"),

		AlertWebhookURL:  getEnv("ALERT_WEBHOOK_URL", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		AlertCooldown:    getEnvDuration("ALERT_COOLDOWN", 15*time.Minute),
	}

	c.Sources = defaultSources()
	if err := c.loadSourcesFile(); err != nil {
		return nil, err
	}
	return c, nil
}

func defaultSources() map[string]SourceConfig {
	return map[string]SourceConfig{
		SourceLive:    {Priority: "high", Timeout: 5 * time.Second},
		SourceDataset: {Priority: "medium", Timeout: 30 * time.Second},
		SourceScrape:  {Priority: "low", Timeout: 15 * time.Second},
	}
}

// loadSourcesFile merges the YAML overrides. A missing file is not an error.
func (c *Config) loadSourcesFile() error {
	if c.SourcesFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.SourcesFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", c.SourcesFile, err)
	}
	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("config: parse %s: %w", c.SourcesFile, err)
	}
	for name, over := range f.Sources {
		name = strings.ToLower(name)
		base, ok := c.Sources[name]
		if !ok {
			return fmt.Errorf("config: %s: unknown source %q", c.SourcesFile, name)
		}
		if over.Enabled != nil {
			base.Enabled = over.Enabled
		}
		if over.Priority != "" {
			base.Priority = over.Priority
		}
		if over.Timeout > 0 {
			base.Timeout = over.Timeout
		}
		base.Layout = over.Layout
		c.Sources[name] = base
	}
	return nil
}

// SourceEnabled reports whether the named source is configured and not
// switched off in the sources file.
func (c *Config) SourceEnabled(name string) bool {
	sc := c.Sources[name]
	switch name {
	case SourceLive:
		return sc.IsEnabled(c.LiveURL != "")
	case SourceDataset:
		return sc.IsEnabled(c.DatasetURL != "" || c.DatasetDir != "")
	case SourceScrape:
		return sc.IsEnabled(c.ScrapeURL != "")
	}
	return false
}

// Validate checks that the configuration can start a hub.
func (c *Config) Validate() error {
	if c.CacheBackend != "memory" && c.CacheBackend != "redis" {
		return fmt.Errorf("CACHE_BACKEND must be memory or redis, got %q", c.CacheBackend)
	}
	if c.CacheBackend == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required for the redis cache")
	}
	for name, d := range map[string]time.Duration{
		"TTL_MARKET_OVERVIEW": c.TTLs.MarketOverview,
		"TTL_STOCK_INFO":      c.TTLs.StockInfo,
		"TTL_HISTORICAL":      c.TTLs.Historical,
		"TTL_SECTOR":          c.TTLs.Sector,
		"TTL_SEARCH":          c.TTLs.Search,
		"HISTORY_TTL":         c.HistoryTTL,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.HTTPRPS <= 0 {
		return fmt.Errorf("HTTP_RPS must be positive")
	}

	enabled := 0
	for _, name := range []string{SourceLive, SourceDataset, SourceScrape} {
		if !c.SourceEnabled(name) {
			continue
		}
		enabled++
		if _, err := c.Sources[name].Descriptor(name); err != nil {
			return err
		}
	}
	if enabled == 0 {
		return fmt.Errorf("no source configured: set LIVE_URL, DATASET_URL, DATASET_DIR or SCRAPE_URL")
	}
	if c.SourceEnabled(SourceLive) && c.LiveURL == "" {
		return fmt.Errorf("sources.live is enabled but LIVE_URL is empty")
	}
	if c.SourceEnabled(SourceScrape) && c.ScrapeURL == "" {
		return fmt.Errorf("sources.scrape is enabled but SCRAPE_URL is empty")
	}
	if c.SourceEnabled(SourceDataset) && c.DatasetURL == "" && c.DatasetDir == "" {
		return fmt.Errorf("sources.dataset is enabled but neither DATASET_URL nor DATASET_DIR is set")
	}
	if (c.TelegramBotToken == "") != (c.TelegramChatID == "") {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
