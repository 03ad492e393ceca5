package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"marketdata-hub/internal/model"
)

const (
	seriesExt = ".json"
	metaExt   = ".meta.json"
)

// FileStore keeps SYMBOL.json and SYMBOL.meta.json under a directory. Writes
// go to a temp file and are renamed into place, so readers never see a torn
// file. The mutex only serializes writers within this process; two processes
// sharing the directory can interleave a series and its metadata.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("history store %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the storage directory.
func (st *FileStore) Dir() string { return st.dir }

func (st *FileStore) Load(ctx context.Context, symbol string) (*model.Series, *Metadata, error) {
	meta, err := st.LoadMetadata(ctx, symbol)
	if err != nil {
		return nil, nil, err
	}
	var s model.Series
	if err := readJSON(st.path(symbol, seriesExt), &s); err != nil {
		return nil, nil, err
	}
	return &s, meta, nil
}

func (st *FileStore) LoadMetadata(_ context.Context, symbol string) (*Metadata, error) {
	var m Metadata
	if err := readJSON(st.path(symbol, metaExt), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Save writes the series before its metadata; a metadata file implies a
// complete series next to it.
func (st *FileStore) Save(_ context.Context, s *model.Series, meta Metadata) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := writeJSONAtomic(st.dir, st.path(s.Symbol, seriesExt), s); err != nil {
		return fmt.Errorf("save series %s: %w", s.Symbol, err)
	}
	if err := writeJSONAtomic(st.dir, st.path(s.Symbol, metaExt), meta); err != nil {
		return fmt.Errorf("save metadata %s: %w", s.Symbol, err)
	}
	return nil
}

// Symbols lists symbols that have a metadata record, sorted. Names come from
// the records themselves since file names are sanitized; an unreadable record
// is listed by its file name.
func (st *FileStore) Symbols(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, metaExt) {
			continue
		}
		sym := strings.TrimSuffix(name, metaExt)
		var m Metadata
		if err := readJSON(filepath.Join(st.dir, name), &m); err == nil && m.Symbol != "" {
			sym = m.Symbol
		}
		out = append(out, sym)
	}
	sort.Strings(out)
	return out, nil
}

func (st *FileStore) path(symbol, ext string) string {
	return filepath.Join(st.dir, safeName(symbol)+ext)
}

// safeName uppercases a symbol and replaces anything that is not safe in a
// file name.
func safeName(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '^', r == '=':
			return r
		}
		return '_'
	}, symbol)
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSONAtomic(dir, path string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
