package crawler

import (
	"context"
	"time"
)

// RenderedPage is the HTML of one fetched URL
type RenderedPage struct {
	URL       string
	HTML      string
	FetchedAt time.Time
}

// ListingReference is a candidate detail-page URL found during pagination
type ListingReference struct {
	URL  string
	Page int
}

// Fetcher retrieves rendered HTML for a URL. Implementations do not retry;
// failures are returned as fetch or rate-limit pipeline errors carrying the URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*RenderedPage, error)
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context, url string) (*RenderedPage, error)

// Fetch calls f(ctx, url)
func (f FetcherFunc) Fetch(ctx context.Context, url string) (*RenderedPage, error) {
	return f(ctx, url)
}
