package publisher

import (
	"encoding/json"
	"time"

	"sjsage522/propertyworker/internal/property"
	pkgerrors "sjsage522/propertyworker/pkg/errors"
)

// Publisher represents a service for publishing messages
type Publisher interface {
	// Publish publishes a message under key. Messages with the same
	// partition go to the same stream.
	Publish(partition, key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}

// ChangeEvent announces a listing that was written to the current-state store
type ChangeEvent struct {
	RunID         string          `json:"run_id"`
	Kind          string          `json:"kind"`
	URL           string          `json:"url"`
	ListingNumber string          `json:"listing_number"`
	Price         string          `json:"price"`
	PreviousPrice string          `json:"previous_price,omitempty"`
	ChangedFields []string        `json:"changed_fields,omitempty"`
	Record        property.Record `json:"record"`
	DetectedAt    time.Time       `json:"detected_at"`
}

// EventKey returns the stream field name an event of kind is published under
func EventKey(kind string) string {
	return "b64_listing_" + kind
}

// PublishEvent encodes ev as JSON and publishes it
func PublishEvent(p Publisher, ev ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return pkgerrors.NewPublisher(ev.URL, "failed to encode change event", err)
	}
	if err := p.Publish(ev.URL, EventKey(ev.Kind), data); err != nil {
		return pkgerrors.NewPublisher(ev.URL, "failed to publish change event", err)
	}
	return nil
}
