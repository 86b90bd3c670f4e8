package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/viant/overseer/service/messaging"
)

// ErrSettled is returned when a message is acked or nacked twice.
var ErrSettled = errors.New("message already settled")

// Config controls retries and buffering.
type Config struct {
	MaxRetries int
	RetryDelay time.Duration
	Buffer     int
}

// DefaultConfig returns the in-process outbox defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
		Buffer:     256,
	}
}

// Message is a claimed in-memory entry.
type Message[T any] struct {
	payload T
	attempt int
	queue   *Queue[T]
	mu      sync.Mutex
	settled bool
}

// T returns the payload.
func (m *Message[T]) T() *T { return &m.payload }

// Attempt returns the delivery attempt.
func (m *Message[T]) Attempt() int { return m.attempt }

// Ack settles the message.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return ErrSettled
	}
	m.settled = true
	return nil
}

// Nack requeues the payload after RetryDelay, or dead-letters it once
// MaxRetries redeliveries were made.
func (m *Message[T]) Nack(error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return ErrSettled
	}
	m.settled = true
	q := m.queue
	if m.attempt > q.config.MaxRetries {
		q.deadLetter(m.payload)
		return nil
	}
	next := &Message[T]{payload: m.payload, attempt: m.attempt + 1, queue: q}
	q.retries.Add(1)
	time.AfterFunc(q.config.RetryDelay, func() {
		defer q.retries.Done()
		select {
		case q.messages <- next:
		case <-q.done:
		}
	})
	return nil
}

// Queue is a buffered in-process messaging.Queue.
type Queue[T any] struct {
	messages  chan *Message[T]
	config    Config
	dlqMu     sync.Mutex
	dlq       []T
	retries   sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue creates a queue.
func NewQueue[T any](config Config) *Queue[T] {
	if config.Buffer <= 0 {
		config.Buffer = DefaultConfig().Buffer
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	return &Queue[T]{
		messages: make(chan *Message[T], config.Buffer),
		config:   config,
		done:     make(chan struct{}),
	}
}

// Publish enqueues a copy of t, blocking while the buffer is full.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if t == nil {
		return errors.New("payload was nil")
	}
	msg := &Message[T]{payload: *t, attempt: 1, queue: q}
	select {
	case q.messages <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return errors.New("queue closed")
	}
}

// Consume waits for the next message.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	select {
	case msg := <-q.messages:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Size returns the number of buffered messages.
func (q *Queue[T]) Size() int { return len(q.messages) }

// DeadLetters returns payloads whose retries were exhausted.
func (q *Queue[T]) DeadLetters() []T {
	q.dlqMu.Lock()
	defer q.dlqMu.Unlock()
	return append([]T(nil), q.dlq...)
}

// Close stops pending redeliveries.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() { close(q.done) })
	q.retries.Wait()
}

func (q *Queue[T]) deadLetter(payload T) {
	q.dlqMu.Lock()
	q.dlq = append(q.dlq, payload)
	q.dlqMu.Unlock()
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
