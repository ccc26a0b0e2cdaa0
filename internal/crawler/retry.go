package crawler

import (
	"context"
	"fmt"

	"sjsage522/propertyworker/logger"
	pkgerrors "sjsage522/propertyworker/pkg/errors"
)

// RetryingFetcher retries retryable failures of an inner fetcher with a
// randomized backoff between attempts.
type RetryingFetcher struct {
	inner    Fetcher
	attempts int
	backoff  SettleDelay
	log      *logger.Logger
}

// WithRetry wraps f so each URL gets up to attempts tries in total
func WithRetry(f Fetcher, attempts int, backoff SettleDelay) *RetryingFetcher {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryingFetcher{
		inner:    f,
		attempts: attempts,
		backoff:  backoff,
		log:      logger.ForFetcher(),
	}
}

// Fetch implements Fetcher
func (r *RetryingFetcher) Fetch(ctx context.Context, url string) (*RenderedPage, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		page, err := r.inner.Fetch(ctx, url)
		if err == nil {
			return page, nil
		}
		lastErr = err

		if !pkgerrors.IsRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
		if attempt == r.attempts {
			break
		}

		r.log.Warn().
			Str("url", url).
			Int("attempt", attempt).
			Err(err).
			Msg("Fetch failed, retrying")

		if err := r.backoff.Wait(ctx); err != nil {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("%s failed after %d attempts: %w", url, r.attempts, lastErr)
}
