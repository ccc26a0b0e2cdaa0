package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"sjsage522/propertyworker/helpers"
	"sjsage522/propertyworker/logger"
	pkgerrors "sjsage522/propertyworker/pkg/errors"
	"sjsage522/propertyworker/services/cache"
)

// HTTPFetcherConfig configures an HTTPFetcher
type HTTPFetcherConfig struct {
	Timeout time.Duration
	// ProxyURL and ProxyAPIKey route every request through a rendering proxy
	// service when the key is set.
	ProxyURL    string
	ProxyAPIKey string
	// Cache and BlockTime enable the per-host rate-limit block
	Cache     cache.CacheService
	BlockTime time.Duration
	Delay     SettleDelay
}

// HTTPFetcher fetches pages with plain GET requests, either directly or
// through a proxy service that renders them.
type HTTPFetcher struct {
	client    *http.Client
	proxyURL  string
	apiKey    string
	cacheSvc  cache.CacheService
	blockTime time.Duration
	delay     SettleDelay
	log       *logger.Logger
}

// NewHTTPFetcher creates a new HTTP fetcher
func NewHTTPFetcher(cfg HTTPFetcherConfig) *HTTPFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		proxyURL:  cfg.ProxyURL,
		apiKey:    cfg.ProxyAPIKey,
		cacheSvc:  cfg.Cache,
		blockTime: cfg.BlockTime,
		delay:     cfg.Delay,
		log:       logger.ForFetcher(),
	}
}

// Fetch retrieves target and returns its HTML
func (f *HTTPFetcher) Fetch(ctx context.Context, target string) (*RenderedPage, error) {
	cacheKey := rateLimitKey(target)

	// Check if the host is rate limited
	if f.cacheSvc != nil && cacheKey != "" {
		if _, err := f.cacheSvc.Get(cacheKey); err == nil {
			return nil, pkgerrors.NewRateLimit(target, f.blockTime)
		}
	}

	if err := f.delay.Wait(ctx); err != nil {
		return nil, pkgerrors.NewFetch(target, "cancelled before request", err)
	}

	requestURL := target
	if f.apiKey != "" {
		proxied, err := helpers.ProxyRequestURL(f.proxyURL, f.apiKey, target)
		if err != nil {
			return nil, pkgerrors.NewFetch(target, "failed to build proxy request", err)
		}
		requestURL = proxied
	}

	f.log.Debug().Str("url", target).Msg("Fetching page")

	body, err := helpers.FetchWithRandomHeaders(ctx, f.client, requestURL)
	if err != nil {
		if errors.Is(err, helpers.ErrRateLimited) {
			f.block(cacheKey)
			return nil, pkgerrors.NewRateLimit(target, f.blockTime)
		}
		return nil, pkgerrors.NewFetch(target, "request failed", err)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, pkgerrors.NewFetch(target, "failed to read body", err)
	}

	return &RenderedPage{URL: target, HTML: string(data), FetchedAt: time.Now()}, nil
}

func (f *HTTPFetcher) block(key string) {
	if f.cacheSvc == nil || key == "" || f.blockTime <= 0 {
		return
	}
	value := []byte(strconv.Itoa(int(f.blockTime / time.Second)))
	if err := f.cacheSvc.Set(key, value, f.blockTime); err != nil {
		logger.LogError("fetcher", pkgerrors.NewCache(key, "failed to set rate limit block", err), "rate limit block not stored")
	}
}

// ClearRateLimit lifts the rate-limit block of target's host before it expires
func ClearRateLimit(cacheSvc cache.CacheService, target string) error {
	key := rateLimitKey(target)
	if cacheSvc == nil || key == "" {
		return nil
	}
	if err := cacheSvc.Delete(key); err != nil {
		return pkgerrors.NewCache(key, "failed to clear rate limit block", err)
	}
	logger.ForFetcher().Info().Str("key", key).Msg("Rate limit block cleared")
	return nil
}

// rateLimitKey returns the cache key that blocks requests to target's host
func rateLimitKey(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s_rate_limited", u.Host)
}
