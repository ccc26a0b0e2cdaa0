package store

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"sjsage522/propertyworker/internal/property"
	"sjsage522/propertyworker/logger"
	pkgerrors "sjsage522/propertyworker/pkg/errors"
)

var (
	historyHeader = append(append([]string{}, property.Columns...), "captured_at", "run_id")
	currentHeader = append(append([]string{}, property.Columns...), "last_updated")
)

// CSVStore keeps the history as an appended CSV file and the current state as
// a CSV file that is loaded at open and rewritten on Close. A read-only store
// re-reads the current file whenever it changes on disk.
// It is safe for concurrent use.
type CSVStore struct {
	mu          sync.Mutex
	historyFile *os.File
	history     *csv.Writer
	currentPath string
	current     map[string]property.CurrentEntry
	dirty       bool
	closed      bool
	readOnly    bool
	loadedMod   time.Time
	log         *logger.Logger
}

// NewCSVStore opens both files, creating directories and headers as needed
func NewCSVStore(historyPath, currentPath string) (*CSVStore, error) {
	for _, p := range []string{historyPath, currentPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return nil, pkgerrors.NewPersistence(p, "create output dir", err)
		}
	}

	current, err := readCurrent(currentPath)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(historyPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, pkgerrors.NewPersistence(historyPath, "open history file", err)
	}

	w := csv.NewWriter(f)

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, pkgerrors.NewPersistence(historyPath, "stat history file", err)
	}
	if info.Size() == 0 {
		// Write header
		if err := w.Write(historyHeader); err != nil {
			f.Close()
			return nil, pkgerrors.NewPersistence(historyPath, "write history header", err)
		}
		w.Flush()
	}

	return &CSVStore{
		historyFile: f,
		history:     w,
		currentPath: currentPath,
		current:     current,
		log:         logger.ForStore(),
	}, nil
}

// NewCSVReader opens the current file read-only for processes that only serve
// it, such as the API, while a crawl in another process rewrites it.
func NewCSVReader(currentPath string) (*CSVStore, error) {
	s := &CSVStore{
		currentPath: currentPath,
		current:     make(map[string]property.CurrentEntry),
		readOnly:    true,
		log:         logger.ForStore(),
	}
	if err := s.refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// refresh reloads the current file when its modification time changed.
// Callers hold s.mu.
func (s *CSVStore) refresh() error {
	info, err := os.Stat(s.currentPath)
	if errors.Is(err, os.ErrNotExist) {
		s.current = make(map[string]property.CurrentEntry)
		s.loadedMod = time.Time{}
		return nil
	}
	if err != nil {
		return pkgerrors.NewPersistence(s.currentPath, "stat current file", err)
	}
	if !s.loadedMod.IsZero() && info.ModTime().Equal(s.loadedMod) {
		return nil
	}

	current, err := readCurrent(s.currentPath)
	if err != nil {
		return err
	}
	s.current = current
	s.loadedMod = info.ModTime()
	s.log.Debug().Str("path", s.currentPath).Int("entries", len(current)).Msg("Current file reloaded")
	return nil
}

func readCurrent(path string) (map[string]property.CurrentEntry, error) {
	current := make(map[string]property.CurrentEntry)

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return current, nil
	}
	if err != nil {
		return nil, pkgerrors.NewPersistence(path, "open current file", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return current, nil
	}
	if err != nil {
		return nil, pkgerrors.NewPersistence(path, "read current header", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, pkgerrors.NewPersistence(path, "read current row", err)
		}

		values := make(map[string]string, len(property.Columns))
		for _, c := range property.Columns {
			if i, ok := index[c]; ok && i < len(row) {
				values[c] = row[i]
			}
		}
		entry := property.CurrentEntry{Record: property.FromValues(values)}
		if i, ok := index["last_updated"]; ok && i < len(row) {
			entry.LastUpdated, _ = time.Parse(time.RFC3339, row[i])
		}
		if entry.URL != "" {
			current[entry.URL] = entry
		}
	}
	return current, nil
}

// AppendHistory implements Store
func (s *CSVStore) AppendHistory(_ context.Context, entry property.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return pkgerrors.NewPersistence(entry.URL, "store is closed", nil)
	}
	if s.readOnly {
		return pkgerrors.NewPersistence(entry.URL, "store is read-only", nil)
	}

	row := append(entry.Row(), entry.CapturedAt.UTC().Format(time.RFC3339), entry.RunID)
	if err := s.history.Write(row); err != nil {
		return pkgerrors.NewPersistence(entry.URL, "append history failed", err)
	}
	s.history.Flush()
	if err := s.history.Error(); err != nil {
		return pkgerrors.NewPersistence(entry.URL, "append history failed", err)
	}
	return nil
}

// UpsertCurrent implements Store
func (s *CSVStore) UpsertCurrent(_ context.Context, rec property.Record, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return pkgerrors.NewPersistence(rec.URL, "store is closed", nil)
	}
	if s.readOnly {
		return pkgerrors.NewPersistence(rec.URL, "store is read-only", nil)
	}

	s.current[rec.URL] = property.CurrentEntry{Record: rec, LastUpdated: updatedAt}
	s.dirty = true
	return nil
}

// LoadKnownURLs implements Store
func (s *CSVStore) LoadKnownURLs(_ context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		if err := s.refresh(); err != nil {
			return nil, err
		}
	}

	known := make(map[string]struct{}, len(s.current))
	for u := range s.current {
		known[u] = struct{}{}
	}
	return known, nil
}

// LoadCurrent implements Store
func (s *CSVStore) LoadCurrent(_ context.Context) ([]property.CurrentEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		if err := s.refresh(); err != nil {
			return nil, err
		}
	}
	return s.sortedCurrent(), nil
}

func (s *CSVStore) sortedCurrent() []property.CurrentEntry {
	entries := make([]property.CurrentEntry, 0, len(s.current))
	for _, e := range s.current {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].URL < entries[j].URL })
	return entries
}

// Flush rewrites the current file when anything changed since the last write
func (s *CSVStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.dirty {
		return nil
	}
	return s.writeCurrent()
}

// Close closes the history file and, when anything changed, rewrites the
// current file through a temporary file and rename.
func (s *CSVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.readOnly {
		return nil
	}

	s.history.Flush()
	histErr := s.history.Error()
	if err := s.historyFile.Close(); err != nil && histErr == nil {
		histErr = err
	}

	var curErr error
	if s.dirty {
		curErr = s.writeCurrent()
	}

	if histErr != nil {
		return pkgerrors.NewPersistence(s.historyFile.Name(), "close history file", histErr)
	}
	return curErr
}

func (s *CSVStore) writeCurrent() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.currentPath), ".current-*.csv")
	if err != nil {
		return pkgerrors.NewPersistence(s.currentPath, "create temp file", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(currentHeader); err != nil {
		tmp.Close()
		return pkgerrors.NewPersistence(s.currentPath, "write current header", err)
	}
	for _, e := range s.sortedCurrent() {
		row := append(e.Row(), e.LastUpdated.UTC().Format(time.RFC3339))
		if err := w.Write(row); err != nil {
			tmp.Close()
			return pkgerrors.NewPersistence(e.URL, "write current row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return pkgerrors.NewPersistence(s.currentPath, "flush current file", err)
	}
	if err := tmp.Close(); err != nil {
		return pkgerrors.NewPersistence(s.currentPath, "close temp file", err)
	}
	if err := os.Rename(tmp.Name(), s.currentPath); err != nil {
		return pkgerrors.NewPersistence(s.currentPath, "replace current file", err)
	}
	s.dirty = false

	s.log.Info().
		Str("path", s.currentPath).
		Int("rows", len(s.current)).
		Msg("Current state written")
	return nil
}
