package queue

import "context"

// Handler processes one queued product URL. A nil error acknowledges the
// message; a retryable error leaves it pending for redelivery.
type Handler func(ctx context.Context, url string) error

// Publisher publishes product URLs for later extraction
type Publisher interface {
	// Publish enqueues one product URL
	Publish(ctx context.Context, url string) error

	// Trim caps the stream at the configured maximum length
	Trim(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}

// Consumer reads product URLs and hands them to a Handler
type Consumer interface {
	// Consume blocks until ctx is done or the connection fails
	Consume(ctx context.Context, handler Handler) error

	// Close closes the consumer connection
	Close() error
}
