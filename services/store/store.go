// Package store implements the persistence sink: an append-only history of
// every scrape and a current-state table keyed by listing URL.
package store

import (
	"context"
	"time"

	"sjsage522/propertyworker/config"
	"sjsage522/propertyworker/internal/property"
	pkgerrors "sjsage522/propertyworker/pkg/errors"
)

// Store persists scraped records
type Store interface {
	// AppendHistory writes one history row. It is called for every extracted
	// record regardless of its classification.
	AppendHistory(ctx context.Context, entry property.HistoryEntry) error

	// UpsertCurrent inserts the record or replaces the stored one for its URL
	// and refreshes its last-updated time. Only new or changed records are
	// passed here.
	UpsertCurrent(ctx context.Context, rec property.Record, updatedAt time.Time) error

	// LoadKnownURLs returns the URLs present in the current-state store
	LoadKnownURLs(ctx context.Context) (map[string]struct{}, error)

	// LoadCurrent returns every current-state entry
	LoadCurrent(ctx context.Context) ([]property.CurrentEntry, error)

	// Close releases the store
	Close() error
}

// New opens the store selected by cfg.StoreBackend
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case config.StoreWarehouse:
		return NewPostgresStore(ctx, cfg.DSN())
	case config.StoreCSV:
		return NewCSVStore(cfg.CSVHistoryPath, cfg.CSVCurrentPath)
	default:
		return nil, pkgerrors.NewConfiguration("unknown store backend "+cfg.StoreBackend, nil)
	}
}

// OpenReader opens the store selected by cfg.StoreBackend for reading only.
// The CSV backend re-reads its current file when another process rewrites it.
func OpenReader(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg.StoreBackend == config.StoreCSV {
		return NewCSVReader(cfg.CSVCurrentPath)
	}
	return New(ctx, cfg)
}

// RecordIndex maps current-state entries by URL for change detection
func RecordIndex(entries []property.CurrentEntry) map[string]property.Record {
	index := make(map[string]property.Record, len(entries))
	for _, e := range entries {
		index[e.URL] = e.Record
	}
	return index
}
