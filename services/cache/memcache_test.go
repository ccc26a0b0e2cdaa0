package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// This test requires a running memcached instance
// If memcached is not available, the test will be skipped
func TestMemcacheService(t *testing.T) {
	mc := NewMemcacheService("localhost:11211")

	if err := mc.Ping(); err != nil {
		t.Skip("Memcached is not available, skipping test")
	}

	key := "www.property24.com_rate_limited"

	// Set a block
	err := mc.Set(key, []byte("600"), 2*time.Second)
	assert.NoError(t, err)

	// Get the block
	value, err := mc.Get(key)
	assert.NoError(t, err)
	assert.Equal(t, "600", string(value))

	// Delete the block
	assert.NoError(t, mc.Delete(key))

	// Deleting a missing key is not an error
	assert.NoError(t, mc.Delete(key))

	// Try to get the deleted value
	_, err = mc.Get(key)
	assert.Error(t, err)
}
