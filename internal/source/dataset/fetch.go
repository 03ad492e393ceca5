package dataset

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"marketdata-hub/internal/history"
	"marketdata-hub/internal/platform/httpclient"
)

// catalogFile lists the symbols a dataset directory serves, one per line.
const catalogFile = "symbols.txt"

// HTTPFetcher reads <base>/<hint>/<SYMBOL>.csv from a static file host.
type HTTPFetcher struct {
	client *httpclient.Client
	base   string
	hint   string
}

// NewHTTPFetcher creates a fetcher rooted at base. hint is the directory inside
// the dataset, e.g. "stocks" or "etfs"; it may be empty.
func NewHTTPFetcher(client *httpclient.Client, base, hint string) (*HTTPFetcher, error) {
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("dataset: base url: %w", err)
	}
	return &HTTPFetcher{
		client: client,
		base:   strings.TrimRight(base, "/"),
		hint:   strings.Trim(hint, "/"),
	}, nil
}

func (f *HTTPFetcher) url(name string) string {
	if f.hint == "" {
		return f.base + "/" + url.PathEscape(name)
	}
	return f.base + "/" + f.hint + "/" + url.PathEscape(name)
}

// Fetch returns the raw file. A 404 maps to history.ErrNotFound.
func (f *HTTPFetcher) Fetch(ctx context.Context, symbol string) ([]byte, error) {
	body, err := f.client.Get(ctx, f.url(strings.ToUpper(symbol)+".csv"))
	if err != nil {
		if httpclient.IsNotFound(err) {
			return nil, fmt.Errorf("%s: %w", symbol, history.ErrNotFound)
		}
		return nil, err
	}
	return body, nil
}

// Symbols reads the catalog file next to the data files.
func (f *HTTPFetcher) Symbols(ctx context.Context) ([]string, error) {
	body, err := f.client.Get(ctx, f.url(catalogFile))
	if err != nil {
		return nil, err
	}
	return parseCatalog(body), nil
}

// DirFetcher reads <dir>/<SYMBOL>.csv from the local filesystem.
type DirFetcher struct {
	dir string
}

// NewDirFetcher creates a fetcher over dir, which must exist.
func NewDirFetcher(dir string) (*DirFetcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dataset: %s is not a directory", dir)
	}
	return &DirFetcher{dir: dir}, nil
}

func (f *DirFetcher) Fetch(_ context.Context, symbol string) ([]byte, error) {
	name := strings.ToUpper(filepath.Base(symbol)) + ".csv"
	b, err := os.ReadFile(filepath.Join(f.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", symbol, history.ErrNotFound)
	}
	return b, err
}

// Symbols uses the catalog file when present, else the *.csv names.
func (f *DirFetcher) Symbols(_ context.Context) ([]string, error) {
	if b, err := os.ReadFile(filepath.Join(f.dir, catalogFile)); err == nil {
		return parseCatalog(b), nil
	}
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		out = append(out, strings.ToUpper(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))))
	}
	sort.Strings(out)
	return out, nil
}

// parseCatalog accepts one symbol per line, ignoring blanks and # comments.
// A line may carry a name after a comma or tab; only the symbol is kept.
func parseCatalog(b []byte) []string {
	var out []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexAny(line, ",\t"); i >= 0 {
			line = line[:i]
		}
		sym := strings.ToUpper(strings.TrimSpace(line))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}
