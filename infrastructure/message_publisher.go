package infrastructure

import (
	"context"
)

// MessagePublisher defines the interface for publishing messages to a message bus
type MessagePublisher interface {
	// Publish publishes a message to the specified subject. key groups messages that must stay ordered.
	Publish(ctx context.Context, subject, key string, data []byte) error

	// Close flushes and releases the connection
	Close() error
}
