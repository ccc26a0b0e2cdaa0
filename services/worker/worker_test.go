package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"sjsage522/propertyworker/helpers"
	"sjsage522/propertyworker/internal/crawler"
	"sjsage522/propertyworker/internal/property"
	pkgerrors "sjsage522/propertyworker/pkg/errors"
	"sjsage522/propertyworker/services/publisher"
	"sjsage522/propertyworker/services/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rootURL = "https://www.property24.com/for-sale/paarl/western-cape/344"

func listingURL(id string) string {
	return rootURL + "/" + id
}

func resultPage(ids ...string) string {
	html := `<html><body>`
	for _, id := range ids {
		html += `<div class="p24_tileContainer"><a href="/for-sale/paarl/western-cape/344/` + id + `">x</a></div>`
	}
	return html + `</body></html>`
}

func detailPage(price string) string {
	return `<html><body><h1>House</h1><div class="p24_price">` + price + `</div></body></html>`
}

// MockFetcher serves canned pages and counts calls per URL
type MockFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	counts map[string]int
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		pages:  make(map[string]string),
		errs:   make(map[string]error),
		counts: make(map[string]int),
	}
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) (*crawler.RenderedPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[url]++

	if err, ok := m.errs[url]; ok {
		return nil, err
	}
	html, ok := m.pages[url]
	if !ok {
		return nil, pkgerrors.NewFetch(url, "not found", nil)
	}
	return &crawler.RenderedPage{URL: url, HTML: html, FetchedAt: time.Now()}, nil
}

func (m *MockFetcher) Count(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[url]
}

// MockStore is an in-memory store.Store
type MockStore struct {
	mu         sync.Mutex
	history    []property.HistoryEntry
	current    map[string]property.CurrentEntry
	upserts    int
	historyErr error
	loadErr    error
}

// Ensure MockStore implements store.Store
var _ store.Store = (*MockStore)(nil)

func NewMockStore() *MockStore {
	return &MockStore{current: make(map[string]property.CurrentEntry)}
}

func (m *MockStore) AppendHistory(_ context.Context, entry property.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.historyErr != nil {
		return m.historyErr
	}
	m.history = append(m.history, entry)
	return nil
}

func (m *MockStore) UpsertCurrent(_ context.Context, rec property.Record, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	m.current[rec.URL] = property.CurrentEntry{Record: rec, LastUpdated: at}
	return nil
}

func (m *MockStore) LoadKnownURLs(_ context.Context) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	known := make(map[string]struct{})
	for u := range m.current {
		known[u] = struct{}{}
	}
	return known, m.loadErr
}

func (m *MockStore) LoadCurrent(_ context.Context) ([]property.CurrentEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	var entries []property.CurrentEntry
	for _, e := range m.current {
		entries = append(entries, e)
	}
	return entries, nil
}

func (m *MockStore) Close() error { return nil }

// MockPublisher records published messages
type MockPublisher struct {
	mu       sync.Mutex
	keys     []string
	messages [][]byte
	trims    int
}

// Ensure MockPublisher implements publisher.Publisher
var _ publisher.Publisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(_, key string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy the message to ensure thread safety
	messageCopy := make([]byte, len(message))
	copy(messageCopy, message)

	m.keys = append(m.keys, key)
	m.messages = append(m.messages, messageCopy)
	return nil
}

func (m *MockPublisher) TrimStreams() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trims++
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

type fixture struct {
	fetcher   *MockFetcher
	store     *MockStore
	publisher *MockPublisher
	failures  *helpers.FailureLog
	logPath   string
}

// newFixture serves one result page listing 101 (price R100), 102 (R200),
// 103 (R300) and 104, whose detail page always times out.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		fetcher:   NewMockFetcher(),
		store:     NewMockStore(),
		publisher: &MockPublisher{},
		logPath:   filepath.Join(t.TempDir(), "failed_urls.log"),
	}
	f.failures = helpers.NewFailureLog(f.logPath)

	f.fetcher.pages[rootURL] = resultPage("101", "102", "103", "104", "101")
	f.fetcher.pages[listingURL("101")] = detailPage("R100")
	f.fetcher.pages[listingURL("102")] = detailPage("R200")
	f.fetcher.pages[listingURL("103")] = detailPage("R300")
	f.fetcher.errs[listingURL("104")] = pkgerrors.NewFetch(listingURL("104"), "timeout", context.DeadlineExceeded)
	return f
}

func (f *fixture) worker(opts Options) *Worker {
	opts.RootURL = rootURL
	fetcher := crawler.WithRetry(f.fetcher, 2, crawler.SettleDelay{})
	return NewWorker(fetcher, crawler.DefaultSelectors(), f.store, f.publisher, f.failures, opts)
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func (f *fixture) seed(id, price string, at time.Time) {
	rec := property.Record{URL: listingURL(id), Price: price, Title: "house"}
	f.store.current[rec.URL] = property.CurrentEntry{Record: rec, LastUpdated: at}
}

func TestWorkerRunIncremental(t *testing.T) {
	f := newFixture(t)
	seededAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.seed("101", "R100", seededAt)
	f.seed("102", "R150", seededAt)

	summary, err := f.worker(Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Pages)
	assert.Equal(t, 4, summary.Found)
	assert.Equal(t, 2, summary.SkippedKnown)
	assert.Equal(t, 1, summary.Fetched)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.New)
	assert.Equal(t, 0, summary.Updated)
	assert.NotEmpty(t, summary.RunID)

	// Known URLs are never fetched
	assert.Equal(t, 0, f.fetcher.Count(listingURL("101")))
	assert.Equal(t, 0, f.fetcher.Count(listingURL("102")))

	// The new listing is stored and announced
	assert.Equal(t, "R300", f.store.current[listingURL("103")].Price)
	require.Len(t, f.publisher.keys, 1)
	assert.Equal(t, publisher.EventKey("new"), f.publisher.keys[0])
	assert.Equal(t, 1, f.publisher.trims)
}

func TestWorkerRetriedFailureLoggedOnce(t *testing.T) {
	f := newFixture(t)

	summary, err := f.worker(Options{}).Run(context.Background())
	require.NoError(t, err)

	// Two attempts, then one failure log entry, then the run continues
	assert.Equal(t, 2, f.fetcher.Count(listingURL("104")))
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 3, summary.New)

	lines := readLines(t, f.logPath)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "\t"+listingURL("104")+"\t")
}

func TestWorkerFullRecrawlClassification(t *testing.T) {
	f := newFixture(t)
	seededAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.seed("101", "R100", seededAt)
	f.seed("102", "R150", seededAt)

	summary, err := f.worker(Options{FullRecrawl: true}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.SkippedKnown)
	assert.Equal(t, 3, summary.Fetched)
	assert.Equal(t, 1, summary.New)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Unchanged)

	// History is written for every extracted record, unchanged ones included
	assert.Len(t, f.store.history, 3)
	for _, h := range f.store.history {
		assert.Equal(t, summary.RunID, h.RunID)
	}

	// Unchanged listing keeps its timestamp, changed one is refreshed
	assert.Equal(t, 2, f.store.upserts)
	assert.Equal(t, seededAt, f.store.current[listingURL("101")].LastUpdated)
	assert.Equal(t, "R200", f.store.current[listingURL("102")].Price)
	assert.True(t, f.store.current[listingURL("102")].LastUpdated.After(seededAt))
}

func TestWorkerRerunUnchangedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	w := f.worker(Options{FullRecrawl: true})

	_, err := w.Run(context.Background())
	require.NoError(t, err)
	firstStamp := f.store.current[listingURL("103")].LastUpdated
	upserts := f.store.upserts

	summary, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Unchanged)
	assert.Equal(t, upserts, f.store.upserts)
	assert.Equal(t, firstStamp, f.store.current[listingURL("103")].LastUpdated)
	assert.Len(t, f.store.history, 6)

	// The failure log gets the failing URL once per run
	lines := readLines(t, f.logPath)
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.Contains(t, l, "\t"+listingURL("104")+"\t")
	}
}

func TestWorkerHistoryErrorsDoNotAbort(t *testing.T) {
	f := newFixture(t)
	f.store.historyErr = errors.New("disk full")

	summary, err := f.worker(Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.HistoryErrors)
	assert.Equal(t, 3, summary.New)
	assert.Len(t, f.store.current, 3)
}

func TestWorkerChangeFields(t *testing.T) {
	f := newFixture(t)
	f.seed("101", "R100", time.Now())
	entry := f.store.current[listingURL("101")]
	entry.Title = "cottage"
	f.store.current[listingURL("101")] = entry

	// Title differs from the seeded record, price does not
	summary, err := f.worker(Options{FullRecrawl: true, ChangeFields: []string{"price", "title"}}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)
}

func TestWorkerLoadError(t *testing.T) {
	f := newFixture(t)
	f.store.loadErr = pkgerrors.NewPersistence("", "connection refused", nil)

	_, err := f.worker(Options{}).Run(context.Background())
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypePersistence))
	assert.Equal(t, 0, f.fetcher.Count(rootURL))
}

func TestWorkerCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.worker(Options{}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.store.current)
}

func TestWorkerMaxPages(t *testing.T) {
	f := newFixture(t)
	f.fetcher.pages[rootURL] = `<ul class="pagination"><li><a data-pagenumber="9">9</a></li></ul>` + resultPage("101")

	summary, err := f.worker(Options{MaxPages: 2}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Pages)
	assert.Equal(t, 0, f.fetcher.Count(crawler.PageURL(rootURL, 3)))
}

func TestWorkerRerunWithFailedDiscoveryFetchesFirstPage(t *testing.T) {
	f := newFixture(t)
	w := f.worker(Options{})

	_, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, f.fetcher.Count(crawler.PageURL(rootURL, 1)))

	// The root page fails on the next run while page 1 lists a new listing
	f.fetcher.mu.Lock()
	f.fetcher.errs[rootURL] = pkgerrors.NewFetch(rootURL, "timeout", context.DeadlineExceeded)
	f.fetcher.pages[crawler.PageURL(rootURL, 1)] = resultPage("202")
	f.fetcher.pages[listingURL("202")] = detailPage("R450")
	f.fetcher.mu.Unlock()

	summary, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, f.fetcher.Count(crawler.PageURL(rootURL, 1)))
	assert.Equal(t, 1, summary.Found)
	assert.Equal(t, 1, summary.New)
	assert.Equal(t, "R450", f.store.current[listingURL("202")].Price)
}
