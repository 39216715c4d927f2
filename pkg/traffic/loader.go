package traffic

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/exploopio/waflens/pkg/compress"
	"github.com/exploopio/waflens/pkg/core"
	"github.com/exploopio/waflens/pkg/errors"
	"github.com/exploopio/waflens/pkg/metrics"
)

// logExtensions are the file suffixes picked up when a directory is given.
var logExtensions = []string{".json", ".json.gz", ".json.zst"}

// Loader reads WAF log exports from disk. Individual unreadable or
// malformed files are logged and skipped; only an empty file set is an
// error.
type Loader struct {
	log       core.Logger
	collector metrics.Collector
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoaderLogger sets the loader's logger.
func WithLoaderLogger(log core.Logger) LoaderOption {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// WithLoaderMetrics sets the loader's metrics collector.
func WithLoaderMetrics(collector metrics.Collector) LoaderOption {
	return func(l *Loader) {
		if collector != nil {
			l.collector = collector
		}
	}
}

// NewLoader creates a log loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		log:       &core.NopLogger{},
		collector: &metrics.NopCollector{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ResolveFiles expands a log spec into a sorted file list. The spec may
// be a single file, a glob pattern, or a directory (picking up .json
// files, compressed or not).
func ResolveFiles(spec string) []string {
	if spec == "" {
		return nil
	}

	if info, err := os.Stat(spec); err == nil && !info.IsDir() {
		return []string{spec}
	}

	if strings.Contains(spec, "*") {
		matches, err := filepath.Glob(spec)
		if err != nil {
			return nil
		}
		sort.Strings(matches)
		return matches
	}

	if info, err := os.Stat(spec); err == nil && info.IsDir() {
		var files []string
		for _, ext := range logExtensions {
			matches, _ := filepath.Glob(filepath.Join(spec, "*"+ext))
			files = append(files, matches...)
		}
		sort.Strings(files)
		return files
	}

	return nil
}

// LoadEntries resolves a log spec and decodes every readable file into a
// single entry list. Files that cannot be read or parsed are skipped with
// a warning. An empty file set returns ErrNoLogFiles.
func (l *Loader) LoadEntries(spec string) ([]Entry, error) {
	const op = "traffic.LoadEntries"

	files := ResolveFiles(spec)
	if len(files) == 0 {
		return nil, errors.E(errors.KindNotFound, op, "no log files match "+spec, errors.ErrNoLogFiles)
	}

	var entries []Entry
	for _, file := range files {
		batch, err := l.loadFile(file)
		if err != nil {
			l.log.Warn("traffic: skipping %s: %v", file, err)
			l.collector.CounterInc(metrics.FilesSkippedTotal.Name)
			continue
		}
		entries = append(entries, batch...)
		l.collector.CounterAdd(metrics.EntriesLoadedTotal.Name, float64(len(batch)),
			"source", filepath.Base(file))
		l.log.Debug("traffic: loaded %d entries from %s", len(batch), file)
	}

	return entries, nil
}

// loadFile decodes one export file: either a bare JSON array of entries
// or an {"items": [...]} envelope.
func (l *Loader) loadFile(path string) ([]Entry, error) {
	data, err := compress.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var direct []Entry
	if err := json.Unmarshal(data, &direct); err == nil {
		return direct, nil
	}

	var envelope struct {
		Items []Entry `json:"items"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, errors.E(errors.KindInvalidInput, "traffic.loadFile",
			"not a JSON entry array or items envelope", err)
	}
	return envelope.Items, nil
}
