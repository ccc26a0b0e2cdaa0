package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sjsage522/propertyworker/internal/property"
	"sjsage522/propertyworker/logger"
	pkgerrors "sjsage522/propertyworker/pkg/errors"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

const (
	// DefaultMaxOpenConns is the default maximum number of open connections
	DefaultMaxOpenConns = 4
	// DefaultMaxIdleConns is the default maximum number of idle connections
	DefaultMaxIdleConns = 2
	// DefaultConnMaxLifetime is the default maximum connection lifetime
	DefaultConnMaxLifetime = 5 * time.Minute
	// DefaultPingTimeout is the default timeout for ping operations
	DefaultPingTimeout = 5 * time.Second
)

const (
	historyTable = "property_history"
	currentTable = "property_current"
)

var (
	createHistorySQL = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s,
			captured_at TIMESTAMPTZ NOT NULL,
			run_id TEXT NOT NULL,
			PRIMARY KEY (url, captured_at)
		)`, historyTable, columnDefs())

	createCurrentSQL = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s,
			last_updated TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (url)
		)`, currentTable, columnDefs())

	insertHistorySQL = fmt.Sprintf(`
		INSERT INTO %s (%s, captured_at, run_id)
		VALUES (%s)
		ON CONFLICT (url, captured_at) DO NOTHING`,
		historyTable, strings.Join(property.Columns, ", "), placeholders(len(property.Columns)+2))

	upsertCurrentSQL = fmt.Sprintf(`
		INSERT INTO %s (%s, last_updated)
		VALUES (%s)
		ON CONFLICT (url) DO UPDATE SET %s, last_updated = EXCLUDED.last_updated`,
		currentTable, strings.Join(property.Columns, ", "), placeholders(len(property.Columns)+1), updateSet())

	selectKnownURLsSQL = fmt.Sprintf(`SELECT url FROM %s`, currentTable)

	selectCurrentSQL = fmt.Sprintf(`SELECT %s, last_updated FROM %s ORDER BY url`,
		strings.Join(property.Columns, ", "), currentTable)
)

func columnDefs() string {
	defs := make([]string, len(property.Columns))
	for i, c := range property.Columns {
		defs[i] = c + " TEXT NOT NULL"
	}
	return strings.Join(defs, ",\n\t\t\t")
}

func placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(ph, ", ")
}

func updateSet() string {
	var sets []string
	for _, c := range property.Columns {
		if c == property.FieldURL {
			continue
		}
		sets = append(sets, c+" = EXCLUDED."+c)
	}
	return strings.Join(sets, ", ")
}

// currentRow is one row of the current-state table
type currentRow struct {
	URL            string    `db:"url"`
	Price          string    `db:"price"`
	Title          string    `db:"title"`
	Address        string    `db:"address"`
	Suburb         string    `db:"suburb"`
	Bedrooms       string    `db:"bedrooms"`
	Bathrooms      string    `db:"bathrooms"`
	Parking        string    `db:"parking"`
	Garages        string    `db:"garages"`
	ErfSize        string    `db:"erf_size"`
	FloorSize      string    `db:"floor_size"`
	ListingNumber  string    `db:"listing_number"`
	ListingDate    string    `db:"listing_date"`
	TypeOfProperty string    `db:"type_of_property"`
	Lifestyle      string    `db:"lifestyle"`
	Levies         string    `db:"levies"`
	RatesAndTaxes  string    `db:"rates_and_taxes"`
	PetsAllowed    string    `db:"pets_allowed"`
	Extras         string    `db:"extras"`
	LastUpdated    time.Time `db:"last_updated"`
}

func (r currentRow) entry() property.CurrentEntry {
	rec := property.FromValues(map[string]string{
		property.FieldURL:            r.URL,
		property.FieldPrice:          r.Price,
		property.FieldTitle:          r.Title,
		property.FieldAddress:        r.Address,
		property.FieldSuburb:         r.Suburb,
		property.FieldBedrooms:       r.Bedrooms,
		property.FieldBathrooms:      r.Bathrooms,
		property.FieldParking:        r.Parking,
		property.FieldGarages:        r.Garages,
		property.FieldErfSize:        r.ErfSize,
		property.FieldFloorSize:      r.FloorSize,
		property.FieldListingNumber:  r.ListingNumber,
		property.FieldListingDate:    r.ListingDate,
		property.FieldTypeOfProperty: r.TypeOfProperty,
		property.FieldLifestyle:      r.Lifestyle,
		property.FieldLevies:         r.Levies,
		property.FieldRatesAndTaxes:  r.RatesAndTaxes,
		property.FieldPetsAllowed:    r.PetsAllowed,
		property.FieldExtras:         r.Extras,
	})
	return property.CurrentEntry{Record: rec, LastUpdated: r.LastUpdated}
}

// PostgresStore persists records to the warehouse database
type PostgresStore struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresStore connects to the warehouse and creates the tables if absent
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, pkgerrors.NewPersistence("", "failed to open database", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	// Verify connection
	pingCtx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, pkgerrors.NewPersistence("", "failed to ping database", err)
	}

	s := NewPostgresStoreFromDB(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreFromDB wraps an open connection
func NewPostgresStoreFromDB(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db, log: logger.ForStore()}
}

// Migrate creates the history and current-state tables
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range []string{createHistorySQL, createCurrentSQL} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return pkgerrors.NewPersistence("", "failed to create tables", err)
		}
	}
	return nil
}

// AppendHistory implements Store
func (s *PostgresStore) AppendHistory(ctx context.Context, entry property.HistoryEntry) error {
	args := rowArgs(entry.Record)
	args = append(args, entry.CapturedAt, entry.RunID)

	if _, err := s.db.ExecContext(ctx, insertHistorySQL, args...); err != nil {
		return pkgerrors.NewPersistence(entry.URL, "append history failed", err)
	}
	return nil
}

// UpsertCurrent implements Store. The insert-or-update is one statement so
// concurrent writers of the same URL stay consistent.
func (s *PostgresStore) UpsertCurrent(ctx context.Context, rec property.Record, updatedAt time.Time) error {
	args := append(rowArgs(rec), updatedAt)

	if _, err := s.db.ExecContext(ctx, upsertCurrentSQL, args...); err != nil {
		return pkgerrors.NewPersistence(rec.URL, "upsert current failed", err)
	}
	return nil
}

// LoadKnownURLs implements Store
func (s *PostgresStore) LoadKnownURLs(ctx context.Context) (map[string]struct{}, error) {
	var urls []string
	if err := s.db.SelectContext(ctx, &urls, selectKnownURLsSQL); err != nil {
		return nil, pkgerrors.NewPersistence("", "load known URLs failed", err)
	}

	known := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		known[u] = struct{}{}
	}
	return known, nil
}

// LoadCurrent implements Store
func (s *PostgresStore) LoadCurrent(ctx context.Context) ([]property.CurrentEntry, error) {
	var rows []currentRow
	if err := s.db.SelectContext(ctx, &rows, selectCurrentSQL); err != nil {
		return nil, pkgerrors.NewPersistence("", "load current state failed", err)
	}

	entries := make([]property.CurrentEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry())
	}
	return entries, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func rowArgs(rec property.Record) []interface{} {
	row := rec.Row()
	args := make([]interface{}, len(row))
	for i, v := range row {
		args[i] = v
	}
	return args
}
