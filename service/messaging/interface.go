package messaging

import (
	"context"
)

// Queue is a work queue with at-least-once delivery.
type Queue[T any] interface {
	// Publish enqueues a copy of t.
	Publish(ctx context.Context, t *T) error

	// Consume blocks until a message is available or ctx is done.
	Consume(ctx context.Context) (Message[T], error)
}

// Message is a claimed queue entry. Exactly one of Ack or Nack settles it.
type Message[T any] interface {
	// T returns the payload.
	T() *T

	// Attempt is the 1-based delivery attempt.
	Attempt() int

	// Ack removes the message from the queue.
	Ack() error

	// Nack schedules a retry, or dead-letters the message once retries are
	// exhausted.
	Nack(err error) error
}
