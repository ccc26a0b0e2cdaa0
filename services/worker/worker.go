package worker

import (
	"context"
	"sort"
	"time"

	"sjsage522/propertyworker/helpers"
	"sjsage522/propertyworker/internal/crawler"
	"sjsage522/propertyworker/internal/property"
	"sjsage522/propertyworker/logger"
	"sjsage522/propertyworker/services/publisher"
	"sjsage522/propertyworker/services/store"

	"github.com/google/uuid"
)

// Options controls one crawl
type Options struct {
	// RootURL is the search result URL the crawl starts from
	RootURL string
	// MaxPages caps the discovered page count when positive
	MaxPages int
	// FullRecrawl fetches listings already in the current-state store
	FullRecrawl bool
	// ChangeFields are the fields compared to detect a changed listing
	ChangeFields []string
}

// Summary reports the outcome of one run
type Summary struct {
	RunID         string
	Pages         int
	Found         int
	SkippedKnown  int
	Fetched       int
	Failed        int
	New           int
	Updated       int
	Unchanged     int
	HistoryErrors int
	UpsertErrors  int
	PublishErrors int
	Duration      time.Duration
}

// flusher is implemented by stores that buffer writes between runs
type flusher interface {
	Flush() error
}

// Worker runs the crawl pipeline: discover, fetch, extract, record history,
// detect changes and upsert the current state.
type Worker struct {
	fetcher    crawler.Fetcher
	discoverer *crawler.Discoverer
	extractor  *crawler.Extractor
	store      store.Store
	publisher  publisher.Publisher
	failures   *helpers.FailureLog
	comparer   property.Comparer
	opts       Options
	log        *logger.Logger
	now        func() time.Time
}

// NewWorker creates a new worker. pub may be nil.
func NewWorker(
	fetcher crawler.Fetcher,
	sel crawler.Selectors,
	st store.Store,
	pub publisher.Publisher,
	failures *helpers.FailureLog,
	opts Options,
) *Worker {
	return &Worker{
		fetcher:    fetcher,
		discoverer: crawler.NewDiscoverer(fetcher, sel, failures),
		extractor:  crawler.NewExtractor(sel, property.DefaultRules),
		store:      st,
		publisher:  pub,
		failures:   failures,
		comparer:   property.NewComparer(opts.ChangeFields),
		opts:       opts,
		log:        logger.ForWorker(),
		now:        time.Now,
	}
}

// Run performs one crawl. Individual fetch, extraction and persistence
// failures are counted in the summary and never abort the run; only failing
// to read the stored state or a cancelled context returns an error.
func (w *Worker) Run(ctx context.Context) (Summary, error) {
	start := w.now()
	summary := Summary{RunID: uuid.NewString()}
	log := w.log.WithFields(logger.Fields{
		"run_id": summary.RunID,
		"root":   w.opts.RootURL,
	})

	w.failures.Reset()

	entries, err := w.store.LoadCurrent(ctx)
	if err != nil {
		return summary, err
	}
	known := store.RecordIndex(entries)

	skip, err := w.store.LoadKnownURLs(ctx)
	if err != nil {
		return summary, err
	}

	log.Info().
		Int("known", len(known)).
		Bool("full_recrawl", w.opts.FullRecrawl).
		Msg("Crawl started")

	pages, rootPage := w.discoverer.DiscoverPages(ctx, w.opts.RootURL)
	if w.opts.MaxPages > 0 && pages > w.opts.MaxPages {
		pages = w.opts.MaxPages
	}
	summary.Pages = pages

	var records []property.Record
	seen := make(map[string]struct{})

	for ref := range w.discoverer.EnumerateListingURLs(ctx, w.opts.RootURL, pages, rootPage) {
		key := property.NormalizeURL(ref.URL)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		summary.Found++

		if _, ok := skip[key]; ok && !w.opts.FullRecrawl {
			summary.SkippedKnown++
			continue
		}

		rec, ok := w.scrape(ctx, log, ref)
		if !ok {
			summary.Failed++
			continue
		}
		summary.Fetched++

		entry := property.HistoryEntry{Record: rec, CapturedAt: w.now(), RunID: summary.RunID}
		if err := w.store.AppendHistory(ctx, entry); err != nil {
			summary.HistoryErrors++
			log.Error().Err(err).Strs("record", rec.Row()).Msg("History write failed")
		}
		records = append(records, rec)
	}

	w.apply(ctx, log, &summary, property.Dedup(records), known)

	if f, ok := w.store.(flusher); ok {
		if err := f.Flush(); err != nil {
			log.Error().Err(err).Msg("Store flush failed")
		}
	}
	if err := w.failures.Flush(); err != nil {
		log.Error().Err(err).Msg("Failure log write failed")
	}

	summary.Duration = w.now().Sub(start)
	log.Info().
		Int("pages", summary.Pages).
		Int("found", summary.Found).
		Int("skipped_known", summary.SkippedKnown).
		Int("fetched", summary.Fetched).
		Int("failed", summary.Failed).
		Int("new", summary.New).
		Int("updated", summary.Updated).
		Int("unchanged", summary.Unchanged).
		Int("history_errors", summary.HistoryErrors).
		Int("upsert_errors", summary.UpsertErrors).
		Dur("duration", summary.Duration).
		Msg("Crawl finished")

	return summary, ctx.Err()
}

// scrape fetches and extracts one listing. Failures are logged and recorded
// in the failure log.
func (w *Worker) scrape(ctx context.Context, log *logger.Logger, ref crawler.ListingReference) (property.Record, bool) {
	page, err := w.fetcher.Fetch(ctx, ref.URL)
	if err != nil {
		w.failures.LogFailure(ref.URL, err)
		log.WithError(err).Warn().Str("url", ref.URL).Int("page", ref.Page).Msg("Listing fetch failed")
		return property.Record{}, false
	}

	rec, err := w.extractor.Extract(page.HTML, ref.URL)
	if err != nil {
		w.failures.LogFailure(ref.URL, err)
		log.WithError(err).Warn().Str("url", ref.URL).Msg("Listing extraction failed")
		return property.Record{}, false
	}

	if logger.IsDebugEnabled() {
		log.Debug().Strs("record", rec.Row()).Msg("Listing scraped")
	}
	return rec, true
}

// apply classifies the deduplicated batch and upserts new and changed records
func (w *Worker) apply(ctx context.Context, log *logger.Logger, summary *Summary, batch map[string]property.Record, known map[string]property.Record) {
	urls := make([]string, 0, len(batch))
	for u := range batch {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	for _, u := range urls {
		rec := batch[u]
		class := w.comparer.Classify(rec, known)
		if class == property.Unchanged {
			summary.Unchanged++
			continue
		}

		now := w.now()
		if err := w.store.UpsertCurrent(ctx, rec, now); err != nil {
			summary.UpsertErrors++
			log.Error().Err(err).Strs("record", rec.Row()).Msg("Current state write failed")
			continue
		}

		ev := publisher.ChangeEvent{
			RunID:         summary.RunID,
			Kind:          class.String(),
			URL:           rec.URL,
			ListingNumber: rec.Get(property.FieldListingNumber),
			Price:         rec.Get(property.FieldPrice),
			Record:        rec,
			DetectedAt:    now,
		}
		if class == property.New {
			summary.New++
		} else {
			summary.Updated++
			prev := known[rec.URL]
			ev.PreviousPrice = prev.Get(property.FieldPrice)
			ev.ChangedFields = w.comparer.Diff(prev, rec)
		}

		log.Info().Str("url", rec.URL).Str("class", ev.Kind).Str("price", ev.Price).Msg("Current state updated")

		if w.publisher != nil {
			if err := publisher.PublishEvent(w.publisher, ev); err != nil {
				summary.PublishErrors++
				logger.LogError("publisher", err, "change event not published")
			}
		}
	}

	if w.publisher != nil && summary.New+summary.Updated > 0 {
		// Trim all streams after publishing
		if err := w.publisher.TrimStreams(); err != nil {
			logger.LogError("publisher", err, "stream trimming failed")
		}
	}
}
