package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeDiscovery represents pagination discovery failures
	ErrorTypeDiscovery ErrorType = "discovery"
	// ErrorTypeNetwork represents navigation, timeout and non-200 fetch failures
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeExtraction represents HTML parsing errors
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypePersistence represents history or current-state write failures
	ErrorTypePersistence ErrorType = "persistence"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// PipelineError represents an error raised by one stage of the crawl pipeline
type PipelineError struct {
	Type    ErrorType
	URL     string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.URL == "" {
		if e.Err != nil {
			return fmt.Sprintf("[%s] %s - %v", e.Type, e.Message, e.Err)
		}
		return fmt.Sprintf("[%s] %s", e.Type, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.URL, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.URL, e.Message)
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *PipelineError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork:
		return true
	case ErrorTypeRateLimit:
		return false
	case ErrorTypeExtraction:
		return false
	default:
		return false
	}
}

// New creates a new PipelineError
func New(errType ErrorType, url, message string, err error) *PipelineError {
	return &PipelineError{
		Type:    errType,
		URL:     url,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewDiscovery creates a new discovery error
func NewDiscovery(url, message string, err error) *PipelineError {
	return New(ErrorTypeDiscovery, url, message, err)
}

// NewFetch creates a new network error for a failed fetch
func NewFetch(url, message string, err error) *PipelineError {
	return New(ErrorTypeNetwork, url, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(url string, duration time.Duration) *PipelineError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, url, message, nil)
}

// NewExtraction creates a new extraction error
func NewExtraction(url, message string, err error) *PipelineError {
	return New(ErrorTypeExtraction, url, message, err)
}

// NewPersistence creates a new persistence error
func NewPersistence(url, message string, err error) *PipelineError {
	return New(ErrorTypePersistence, url, message, err)
}

// NewCache creates a new cache error
func NewCache(key, message string, err error) *PipelineError {
	return New(ErrorTypeCache, key, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(url, message string, err error) *PipelineError {
	return New(ErrorTypePublisher, url, message, err)
}

// NewValidation creates a new validation error
func NewValidation(url, message string) *PipelineError {
	return New(ErrorTypeValidation, url, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *PipelineError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// IsType reports whether err wraps a PipelineError of the given type
func IsType(err error, errType ErrorType) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Type == errType
	}
	return false
}

// IsRetryable reports whether err wraps a retryable PipelineError.
// Errors outside this package are treated as retryable.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.IsRetryable()
	}
	return err != nil
}
