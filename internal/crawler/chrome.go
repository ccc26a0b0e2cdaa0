package crawler

import (
	"context"
	"sync"
	"time"

	"sjsage522/propertyworker/logger"
	pkgerrors "sjsage522/propertyworker/pkg/errors"

	"github.com/chromedp/chromedp"
)

// SessionOptions configures the headless browser
type SessionOptions struct {
	ChromeBin string
	Headless  bool
	UserAgent string
}

// Session owns one browser process and the single tab every page is rendered in.
// It must be closed on every exit path.
type Session struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	closeOnce   sync.Once
}

// NewSession starts the browser and opens its tab
func NewSession(parent context.Context, opts SessionOptions) (*Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ChromeBin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// Launch the browser now so startup failures surface here
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, pkgerrors.NewFetch("", "failed to start browser", err)
	}

	logger.ForFetcher().Info().Bool("headless", opts.Headless).Msg("Browser session started")

	return &Session{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}, nil
}

// Close shuts the browser down; calling it more than once is safe
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancelTab()
		s.cancelAlloc()
		logger.ForFetcher().Info().Msg("Browser session closed")
	})
	return nil
}

// ChromeFetcher renders pages in the session's tab
type ChromeFetcher struct {
	session      *Session
	timeout      time.Duration
	waitSelector string
	delay        SettleDelay
	mu           sync.Mutex
	log          *logger.Logger
}

// NewChromeFetcher creates a fetcher over an open session
func NewChromeFetcher(session *Session, timeout time.Duration, waitSelector string, delay SettleDelay) *ChromeFetcher {
	if waitSelector == "" {
		waitSelector = "body"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChromeFetcher{
		session:      session,
		timeout:      timeout,
		waitSelector: waitSelector,
		delay:        delay,
		log:          logger.ForFetcher(),
	}
}

// Fetch navigates the tab to target, waits for the page to settle and returns
// the rendered document.
func (f *ChromeFetcher) Fetch(ctx context.Context, target string) (*RenderedPage, error) {
	// One tab serves one navigation at a time
	f.mu.Lock()
	defer f.mu.Unlock()

	runCtx, cancel := context.WithTimeout(f.session.ctx, f.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	f.log.Debug().Str("url", target).Msg("Rendering page")

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(target),
		chromedp.WaitReady(f.waitSelector, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return f.delay.Wait(ctx)
		}),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, pkgerrors.NewFetch(target, "render failed", err)
	}

	return &RenderedPage{URL: target, HTML: html, FetchedAt: time.Now()}, nil
}
