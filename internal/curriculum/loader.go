package curriculum

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownSource is returned when a requested source id is not loaded.
var ErrUnknownSource = errors.New("unknown curriculum source")

// Loader loads and caches hierarchy sources from the filesystem.
// Every .json, .yaml or .yml file under rootDir is one source.
type Loader struct {
	rootDir string
	sources map[string]Source
	mu      sync.RWMutex
}

// NewLoader creates a new curriculum loader and loads all content.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{rootDir: rootDir}

	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload re-reads every source file and swaps the catalog atomically.
// On error the previous catalog is kept.
func (l *Loader) Reload() error {
	sources, err := l.loadAll()
	if err != nil {
		return fmt.Errorf("loading curriculum: %w", err)
	}

	l.mu.Lock()
	l.sources = sources
	l.mu.Unlock()

	slog.Info("curriculum loaded", "sources", len(sources), "root", l.rootDir)
	return nil
}

// GetSource returns a source by id.
func (l *Loader) GetSource(id string) (Source, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.sources[id]
	return s, ok
}

// Sources returns the requested sources in request order.
func (l *Loader) Sources(ids ...string) ([]Source, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Source, 0, len(ids))
	for _, id := range ids {
		s, ok := l.sources[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSource, id)
		}
		out = append(out, s)
	}
	return out, nil
}

// AllSources returns all loaded sources ordered by id.
func (l *Loader) AllSources() []Source {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Source, 0, len(l.sources))
	for _, s := range l.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (l *Loader) loadAll() (map[string]Source, error) {
	info, err := os.Stat(l.rootDir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", l.rootDir)
	}

	sources := make(map[string]Source)
	origins := make(map[string]string)

	err = filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}

		format, ok := formatOf(path)
		if !ok {
			return nil
		}

		src, ok := loadSource(path, format)
		if !ok {
			return nil
		}

		if prev, dup := origins[src.ID]; dup {
			return fmt.Errorf("source %q defined in both %s and %s", src.ID, prev, path)
		}
		origins[src.ID] = path
		sources[src.ID] = src
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sources, nil
}

func loadSource(path string, format Format) (Source, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("skipping unreadable curriculum file", "path", path, "error", err)
		return Source{}, false
	}

	src, err := ParsePayload(data, format)
	if err != nil {
		slog.Warn("skipping invalid curriculum file", "path", path, "error", err)
		return Source{}, false
	}

	if src.ID == "" {
		base := filepath.Base(path)
		src = src.WithID(strings.TrimSuffix(base, filepath.Ext(base)))
	}

	// A source must be well-formed on its own before it enters the catalog.
	if _, err := Normalize(src); err != nil {
		slog.Warn("skipping invalid curriculum file", "path", path, "error", err)
		return Source{}, false
	}
	return src, true
}

func formatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	}
	return "", false
}
