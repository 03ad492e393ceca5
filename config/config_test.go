package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"marketdata-hub/internal/source"
)

// isolate points SOURCES_FILE somewhere empty so a developer's file is not read.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SOURCES_FILE", filepath.Join(dir, "sources.yaml"))
	return dir
}

func TestFromEnv_Defaults(t *testing.T) {
	isolate(t)
	t.Setenv("DATASET_DIR", "/data")

	c, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if c.HTTPAddr != ":8080" || c.CacheBackend != "memory" || c.HistoryTTL != 24*time.Hour {
		t.Errorf("got %+v", c)
	}
	if c.TTLs.MarketOverview != time.Minute || c.TTLs.Historical != 24*time.Hour {
		t.Errorf("ttls = %+v", c.TTLs)
	}
	if len(c.Sectors) != 11 || c.Sectors[0].Name != "Technology" {
		t.Errorf("sectors = %+v", c.Sectors)
	}
	if !c.SourceEnabled(SourceDataset) || c.SourceEnabled(SourceLive) {
		t.Error("only dataset should be enabled")
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	isolate(t)
	t.Setenv("LIVE_URL", "http://quotes.local")
	t.Setenv("TTL_STOCK_INFO", "45")
	t.Setenv("HISTORY_TTL", "2h")
	t.Setenv("REFRESH_SYMBOLS", "aapl, msft,,")
	t.Setenv("REDIS_DB", "3")

	c, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if c.TTLs.StockInfo != 45*time.Second || c.HistoryTTL != 2*time.Hour || c.RedisDB != 3 {
		t.Errorf("got ttl=%v history=%v db=%d", c.TTLs.StockInfo, c.HistoryTTL, c.RedisDB)
	}
	if strings.Join(c.RefreshSymbols, ",") != "AAPL,MSFT" {
		t.Errorf("refresh = %v", c.RefreshSymbols)
	}
}

func TestSourcesFile(t *testing.T) {
	dir := isolate(t)
	t.Setenv("LIVE_URL", "http://quotes.local")
	t.Setenv("SCRAPE_URL", "http://pages.local")
	yml := `
sources:
  live:
    priority: low
    timeout: 2s
  scrape:
    enabled: false
    layout:
      price: "#last"
`
	if err := os.WriteFile(filepath.Join(dir, "sources.yaml"), []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	d, err := c.Sources[SourceLive].Descriptor(SourceLive)
	if err != nil {
		t.Fatal(err)
	}
	if d.Priority != source.PriorityLow || d.Timeout != 2*time.Second {
		t.Errorf("live descriptor = %+v", d)
	}
	if c.SourceEnabled(SourceScrape) {
		t.Error("scrape should be disabled by the file")
	}
	if c.Sources[SourceScrape].Layout.Price != "#last" {
		t.Errorf("layout = %+v", c.Sources[SourceScrape].Layout)
	}
}

func TestSourcesFile_UnknownSource(t *testing.T) {
	dir := isolate(t)
	os.WriteFile(filepath.Join(dir, "sources.yaml"), []byte("sources:\n  bogus: {priority: high}\n"), 0o644)
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for unknown source")
	}
}

func TestValidate(t *testing.T) {
	isolate(t)
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"no sources", nil},
		{"bad backend", map[string]string{"DATASET_DIR": "/d", "CACHE_BACKEND": "memcached"}},
		{"zero ttl", map[string]string{"DATASET_DIR": "/d", "TTL_SEARCH": "0s"}},
		{"half telegram", map[string]string{"DATASET_DIR": "/d", "TELEGRAM_BOT_TOKEN": "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			c, err := FromEnv()
			if err != nil {
				t.Fatal(err)
			}
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
