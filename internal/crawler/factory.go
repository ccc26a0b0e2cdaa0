package crawler

import (
	"context"

	"sjsage522/propertyworker/config"
	"sjsage522/propertyworker/helpers"
	"sjsage522/propertyworker/logger"
	pkgerrors "sjsage522/propertyworker/pkg/errors"
	"sjsage522/propertyworker/services/cache"
)

// CreateFetcher builds the fetcher for the configured fetch mode, wrapped
// with the retry policy. The returned close function releases the browser
// session, if any, and must be called by the owner on every exit path.
func CreateFetcher(ctx context.Context, cfg *config.Config, cacheSvc cache.CacheService) (Fetcher, func() error, error) {
	settle := SettleDelay{Min: cfg.SettleMin, Max: cfg.SettleMax}
	backoff := SettleDelay{Min: cfg.BackoffMin, Max: cfg.BackoffMax}
	noop := func() error { return nil }

	var (
		inner   Fetcher
		closeFn = noop
	)

	switch cfg.FetchMode {
	case config.FetchModeBrowser:
		session, err := NewSession(ctx, SessionOptions{
			ChromeBin: cfg.ChromeBin,
			Headless:  cfg.Headless,
			UserAgent: helpers.RandomUserAgent(),
		})
		if err != nil {
			return nil, noop, err
		}
		inner = NewChromeFetcher(session, cfg.FetchTimeout, cfg.WaitSelector, settle)
		closeFn = session.Close

	case config.FetchModeHTTP, config.FetchModeProxy:
		httpCfg := HTTPFetcherConfig{
			Timeout:   cfg.FetchTimeout,
			Cache:     cacheSvc,
			BlockTime: cfg.RateLimitBlock,
			Delay:     settle,
		}
		if cfg.FetchMode == config.FetchModeProxy {
			httpCfg.ProxyURL = cfg.FetchProxyURL
			httpCfg.ProxyAPIKey = cfg.FetchProxyAPIKey
		}
		inner = NewHTTPFetcher(httpCfg)

	default:
		return nil, noop, pkgerrors.NewConfiguration("unknown fetch mode "+cfg.FetchMode, nil)
	}

	logger.ForFetcher().Info().
		Str("mode", cfg.FetchMode).
		Int("attempts", cfg.FetchAttempts).
		Msg("Fetcher created")

	return WithRetry(inner, cfg.FetchAttempts, backoff), closeFn, nil
}
