package helpers

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// FailureRecorder collects URLs that exhausted their fetch attempts
type FailureRecorder interface {
	LogFailure(url string, err error)
}

type failure struct {
	url string
	err string
	at  time.Time
}

// FailureLog keeps the URLs that failed during one run and appends them to a
// side file when the run ends, so they can be reprocessed later.
type FailureLog struct {
	path     string
	mu       sync.Mutex
	failures []failure
	seen     map[string]struct{}
}

// NewFailureLog creates a failure log backed by the file at path
func NewFailureLog(path string) *FailureLog {
	return &FailureLog{
		path: path,
		seen: make(map[string]struct{}),
	}
}

// LogFailure records url once per run; later failures of the same url are ignored
func (l *FailureLog) LogFailure(url string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[url]; ok {
		return
	}
	l.seen[url] = struct{}{}

	msg := ""
	if err != nil {
		msg = err.Error()
	}
	l.failures = append(l.failures, failure{url: url, err: msg, at: time.Now()})
}

// URLs returns the failed URLs in the order they were recorded
func (l *FailureLog) URLs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	urls := make([]string, 0, len(l.failures))
	for _, f := range l.failures {
		urls = append(urls, f.url)
	}
	return urls
}

// Len returns the number of distinct failed URLs
func (l *FailureLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.failures)
}

// Flush appends the recorded failures to the log file and clears them
func (l *FailureLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.failures) == 0 {
		return nil
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open failure log %s: %w", l.path, err)
	}
	defer f.Close()

	for _, fl := range l.failures {
		line := fmt.Sprintf("%s\t%s\t%s\n", fl.at.Format("2006-01-02 15:04:05"), fl.url, fl.err)
		if _, err := f.WriteString(line); err != nil {
			return fmt.Errorf("write failure log %s: %w", l.path, err)
		}
	}

	l.failures = nil
	return nil
}

// Reset starts a new run: unflushed failures are dropped and every URL may be
// recorded again.
func (l *FailureLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.failures = nil
	l.seen = make(map[string]struct{})
}
