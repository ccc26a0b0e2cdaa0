package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPipelineErrorMessage(t *testing.T) {
	cause := errors.New("context deadline exceeded")

	err := NewFetch("https://example.com/a", "navigation failed", cause)
	assert.Equal(t, "[network] https://example.com/a: navigation failed - context deadline exceeded", err.Error())

	err = NewConfiguration("missing WAREHOUSE_USER", nil)
	assert.Equal(t, "[configuration] missing WAREHOUSE_USER", err.Error())

	assert.ErrorIs(t, NewPersistence("u", "insert failed", cause), cause)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"fetch", NewFetch("u", "timeout", nil), true},
		{"rate limit", NewRateLimit("u", time.Minute), false},
		{"extraction", NewExtraction("u", "bad html", nil), false},
		{"wrapped fetch", fmt.Errorf("attempt 1: %w", NewFetch("u", "timeout", nil)), true},
		{"foreign error", errors.New("boom"), true},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsType(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewDiscovery("u", "no pagination", nil))
	assert.True(t, IsType(err, ErrorTypeDiscovery))
	assert.False(t, IsType(err, ErrorTypeNetwork))
	assert.False(t, IsType(errors.New("plain"), ErrorTypeDiscovery))
}
