package crawler

import (
	"context"
	"iter"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"

	"sjsage522/propertyworker/helpers"
	"sjsage522/propertyworker/logger"
	pkgerrors "sjsage522/propertyworker/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// Discoverer finds the result page count of a search and enumerates the
// listing detail URLs across its pages.
type Discoverer struct {
	fetcher  Fetcher
	sel      Selectors
	failures helpers.FailureRecorder
	log      *logger.Logger
}

// NewDiscoverer creates a discoverer. failures may be nil.
func NewDiscoverer(f Fetcher, sel Selectors, failures helpers.FailureRecorder) *Discoverer {
	return &Discoverer{
		fetcher:  f,
		sel:      sel,
		failures: failures,
		log:      logger.ForDiscoverer(),
	}
}

// DiscoverPages returns the number of result pages of rootURL and the fetched
// root page, which can be handed to EnumerateListingURLs as page 1. Any
// failure falls back to a single page with a warning; the page is nil when
// the root could not be fetched.
func (d *Discoverer) DiscoverPages(ctx context.Context, rootURL string) (int, *RenderedPage) {
	page, err := d.fetcher.Fetch(ctx, rootURL)
	if err != nil {
		d.log.Warn().
			Err(pkgerrors.NewDiscovery(rootURL, "root page fetch failed", err)).
			Msg("Pagination discovery failed, defaulting to 1 page")
		return 1, nil
	}

	count, err := PageCountFromHTML(page.HTML, d.sel)
	if err != nil {
		d.log.Warn().
			Err(pkgerrors.NewDiscovery(rootURL, "pagination not found", err)).
			Msg("Pagination discovery failed, defaulting to 1 page")
		return 1, page
	}

	d.log.Info().Str("url", rootURL).Int("pages", count).Msg("Discovered result pages")
	return count, page
}

// EnumerateListingURLs lazily yields the listing URLs of pages 1..pageCount
// in page order. A non-nil root page of rootURL is used as page 1 instead of
// fetching it. URLs repeated within one page are yielded once. A page that
// cannot be fetched is recorded as failed and skipped. The sequence can be
// consumed only once; later iterations yield nothing.
func (d *Discoverer) EnumerateListingURLs(ctx context.Context, rootURL string, pageCount int, root *RenderedPage) iter.Seq[ListingReference] {
	var used atomic.Bool

	return func(yield func(ListingReference) bool) {
		if used.Swap(true) {
			d.log.Warn().Msg("Listing sequence already consumed")
			return
		}

		for n := 1; n <= pageCount; n++ {
			if ctx.Err() != nil {
				return
			}

			pageURL := PageURL(rootURL, n)
			html, err := d.pageHTML(ctx, rootURL, n, root)
			if err != nil {
				d.log.Warn().Err(err).Int("page", n).Msg("Skipping result page")
				if d.failures != nil {
					d.failures.LogFailure(pageURL, err)
				}
				continue
			}

			urls, err := ListingURLsFromHTML(html, pageURL, d.sel)
			if err != nil {
				d.log.Warn().Err(err).Int("page", n).Msg("Skipping unparsable result page")
				continue
			}

			d.log.Info().Int("page", n).Int("found", len(urls)).Msg("Scanned result page")

			for _, u := range urls {
				if !yield(ListingReference{URL: u, Page: n}) {
					return
				}
			}
		}
	}
}

func (d *Discoverer) pageHTML(ctx context.Context, rootURL string, n int, root *RenderedPage) (string, error) {
	if n == 1 && root != nil && root.URL == rootURL {
		return root.HTML, nil
	}
	page, err := d.fetcher.Fetch(ctx, PageURL(rootURL, n))
	if err != nil {
		return "", err
	}
	return page.HTML, nil
}

// PageURL returns the URL of result page n of rootURL
func PageURL(rootURL string, n int) string {
	return strings.TrimRight(rootURL, "/") + "/p" + strconv.Itoa(n)
}

// PageCountFromHTML returns the highest page index exposed by the pagination
// control. It reads the page attribute first and falls back to the link text.
func PageCountFromHTML(html string, sel Selectors) (int, error) {
	doc, err := createDocument(html)
	if err != nil {
		return 0, err
	}

	links := doc.Find(sel.Pagination)
	if links.Length() == 0 {
		return 0, pkgerrors.NewDiscovery("", "no pagination control", nil)
	}

	maxPage := 0
	links.Each(func(_ int, s *goquery.Selection) {
		raw := ""
		if sel.PageAttr != "" {
			raw, _ = s.Attr(sel.PageAttr)
		}
		if raw == "" {
			raw = s.Text()
		}
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > maxPage {
			maxPage = n
		}
	})

	if maxPage < 1 {
		return 0, pkgerrors.NewDiscovery("", "pagination has no page index", nil)
	}
	return maxPage, nil
}

// ListingURLsFromHTML returns the absolute detail-page URLs linked from a
// result page, each once, in document order.
func ListingURLsFromHTML(html, pageURL string, sel Selectors) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, pkgerrors.NewDiscovery(pageURL, "invalid page URL", err)
	}

	doc, err := createDocument(html)
	if err != nil {
		return nil, pkgerrors.NewDiscovery(pageURL, "invalid page HTML", err)
	}

	seen := make(map[string]struct{})
	var urls []string
	doc.Find(sel.ListingLink).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		abs, ok := resolveURL(base, href)
		if !ok {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		urls = append(urls, abs)
	})
	return urls, nil
}
