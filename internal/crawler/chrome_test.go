package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// This test requires a local Chrome installation
// If the browser cannot start, the test will be skipped
func TestChromeFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div class="p24_price">R 1 000 000</div></body></html>`))
	}))
	defer server.Close()

	session, err := NewSession(context.Background(), SessionOptions{Headless: true})
	if err != nil {
		t.Skip("Chrome is not available, skipping test")
	}
	defer session.Close()

	f := NewChromeFetcher(session, 20*time.Second, ".p24_price", SettleDelay{})
	page, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, page.HTML, "R 1 000 000")

	// Closing twice is safe
	assert.NoError(t, session.Close())
	assert.NoError(t, session.Close())
}
