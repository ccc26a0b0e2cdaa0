package crawler

import (
	"context"
	"sync"
	"time"

	pkgerrors "sjsage522/propertyworker/pkg/errors"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu    sync.Mutex
	cache map[string][]byte
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, &mockError{message: "cache miss"}
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

type mockError struct {
	message string
}

func (e *mockError) Error() string {
	return e.message
}

// MockFetcher serves canned HTML per URL and records every call
type MockFetcher struct {
	mu     sync.Mutex
	Pages  map[string]string
	Errors map[string]error
	Calls  []string
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		Pages:  make(map[string]string),
		Errors: make(map[string]error),
	}
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) (*RenderedPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, url)

	if err, ok := m.Errors[url]; ok {
		return nil, err
	}
	html, ok := m.Pages[url]
	if !ok {
		return nil, pkgerrors.NewFetch(url, "not found", nil)
	}
	return &RenderedPage{URL: url, HTML: html, FetchedAt: time.Now()}, nil
}

func (m *MockFetcher) CallCount(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c == url {
			n++
		}
	}
	return n
}

// mockFailures records failures for discoverer tests
type mockFailures struct {
	mu   sync.Mutex
	urls []string
}

func (m *mockFailures) LogFailure(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls = append(m.urls, url)
}
