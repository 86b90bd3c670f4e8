package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"github.com/viant/overseer/internal/clock"
	"github.com/viant/overseer/service/messaging"
)

// ErrSettled is returned when a message is acked or nacked twice.
var ErrSettled = errors.New("message already settled")

const (
	pendingDir    = "pending"
	processingDir = "processing"
	failedDir     = "failed"
	dlqDir        = "dlq"
	tempSuffix    = ".tmp"
	jsonSuffix    = ".json"
)

// Config controls the durable queue.
type Config struct {
	// BaseURL is the queue root; a plain path is treated as file://.
	BaseURL      string
	MaxRetries   int
	RetryDelay   time.Duration
	PollInterval time.Duration
}

// DefaultConfig returns defaults rooted at baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		MaxRetries:   5,
		RetryDelay:   5 * time.Second,
		PollInterval: 250 * time.Millisecond,
	}
}

type envelope[T any] struct {
	ID        string    `json:"id"`
	Data      T         `json:"data"`
	Attempt   int       `json:"attempt"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is a claimed entry living in the processing directory.
type Message[T any] struct {
	envelope[T]
	name    string
	queue   *Queue[T]
	mu      sync.Mutex
	settled bool
}

// T returns the payload.
func (m *Message[T]) T() *T { return &m.Data }

// Attempt returns the delivery attempt.
func (m *Message[T]) Attempt() int { return m.envelope.Attempt }

// Ack removes the message.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return ErrSettled
	}
	m.settled = true
	return m.queue.fs.Delete(context.Background(), m.queue.dirURL(processingDir, m.name))
}

// Nack moves the message to failed for a later retry, or to dlq once
// MaxRetries redeliveries were made.
func (m *Message[T]) Nack(cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return ErrSettled
	}
	m.settled = true
	if cause != nil {
		m.Error = cause.Error()
	}
	m.UpdatedAt = clock.Now()
	target := failedDir
	if m.envelope.Attempt > m.queue.config.MaxRetries {
		target = dlqDir
	}
	ctx := context.Background()
	if err := m.queue.write(ctx, target, m.name, &m.envelope); err != nil {
		return err
	}
	return m.queue.fs.Delete(ctx, m.queue.dirURL(processingDir, m.name))
}

// Queue is a directory-backed messaging.Queue. Messages survive process
// restarts: anything left in processing is returned to pending on open.
type Queue[T any] struct {
	fs     afs.Service
	config Config
	mu     sync.Mutex
}

// NewQueue opens or creates the queue directories.
func NewQueue[T any](ctx context.Context, fs afs.Service, config Config) (*Queue[T], error) {
	if strings.TrimSpace(config.BaseURL) == "" {
		return nil, fmt.Errorf("queue base URL cannot be empty")
	}
	if fs == nil {
		fs = afs.New()
	}
	defaults := DefaultConfig(config.BaseURL)
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.RetryDelay < 0 {
		config.RetryDelay = 0
	}
	config.BaseURL = url.Normalize(config.BaseURL, file.Scheme)
	q := &Queue[T]{fs: fs, config: config}
	for _, dir := range []string{pendingDir, processingDir, failedDir, dlqDir} {
		URL := url.Join(config.BaseURL, dir)
		if exists, _ := fs.Exists(ctx, URL); exists {
			continue
		}
		if err := fs.Create(ctx, URL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create queue directory %s: %w", dir, err)
		}
	}
	if err := q.recover(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

// Publish writes a new message to pending.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if t == nil {
		return errors.New("payload was nil")
	}
	now := clock.Now()
	msg := &envelope[T]{
		ID:        uuid.New().String(),
		Data:      *t,
		Attempt:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	name := fmt.Sprintf("%019d-%s%s", now.UnixNano(), msg.ID, jsonSuffix)
	return q.write(ctx, pendingDir, name, msg)
}

// Consume polls until a message can be claimed or ctx is done.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	for {
		msg, err := q.claim(ctx)
		if err != nil || msg != nil {
			return msg, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.config.PollInterval):
		}
	}
}

// Count returns the number of messages in pending, failed and dlq.
func (q *Queue[T]) Count(ctx context.Context) (pending, failed, dead int, err error) {
	if pending, err = q.count(ctx, pendingDir); err != nil {
		return
	}
	if failed, err = q.count(ctx, failedDir); err != nil {
		return
	}
	dead, err = q.count(ctx, dlqDir)
	return
}

// DeadLetters returns the payloads of dead-lettered messages.
func (q *Queue[T]) DeadLetters(ctx context.Context) ([]T, error) {
	objects, err := q.list(ctx, dlqDir)
	if err != nil {
		return nil, err
	}
	ret := make([]T, 0, len(objects))
	for _, object := range objects {
		msg, err := q.read(ctx, object.URL())
		if err != nil {
			continue
		}
		ret = append(ret, msg.Data)
	}
	return ret, nil
}

func (q *Queue[T]) claim(ctx context.Context) (*Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	failed, err := q.list(ctx, failedDir)
	if err != nil {
		return nil, err
	}
	now := clock.Now()
	for _, object := range failed {
		msg, err := q.read(ctx, object.URL())
		if err != nil {
			_ = q.fs.Move(ctx, object.URL(), q.dirURL(dlqDir, object.Name()))
			continue
		}
		if now.Sub(msg.UpdatedAt) < q.config.RetryDelay {
			continue
		}
		msg.Attempt++
		return q.toProcessing(ctx, object, msg)
	}

	pending, err := q.list(ctx, pendingDir)
	if err != nil {
		return nil, err
	}
	for _, object := range pending {
		msg, err := q.read(ctx, object.URL())
		if err != nil {
			_ = q.fs.Move(ctx, object.URL(), q.dirURL(dlqDir, object.Name()))
			continue
		}
		return q.toProcessing(ctx, object, msg)
	}
	return nil, nil
}

func (q *Queue[T]) toProcessing(ctx context.Context, object storage.Object, msg *envelope[T]) (*Message[T], error) {
	msg.UpdatedAt = clock.Now()
	if err := q.write(ctx, processingDir, object.Name(), msg); err != nil {
		return nil, err
	}
	if err := q.fs.Delete(ctx, object.URL()); err != nil {
		return nil, fmt.Errorf("failed to remove claimed message %s: %w", object.Name(), err)
	}
	return &Message[T]{envelope: *msg, name: object.Name(), queue: q}, nil
}

func (q *Queue[T]) recover(ctx context.Context) error {
	objects, err := q.list(ctx, processingDir)
	if err != nil {
		return err
	}
	for _, object := range objects {
		if err := q.fs.Move(ctx, object.URL(), q.dirURL(pendingDir, object.Name())); err != nil {
			return fmt.Errorf("failed to recover message %s: %w", object.Name(), err)
		}
	}
	return nil
}

func (q *Queue[T]) list(ctx context.Context, dir string) ([]storage.Object, error) {
	objects, err := q.fs.List(ctx, url.Join(q.config.BaseURL, dir))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	ret := objects[:0]
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), jsonSuffix) {
			continue
		}
		ret = append(ret, object)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name() < ret[j].Name() })
	return ret, nil
}

func (q *Queue[T]) count(ctx context.Context, dir string) (int, error) {
	objects, err := q.list(ctx, dir)
	return len(objects), err
}

func (q *Queue[T]) read(ctx context.Context, URL string) (*envelope[T], error) {
	data, err := q.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", URL, err)
	}
	msg := &envelope[T]{}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to decode message %s: %w", URL, err)
	}
	return msg, nil
}

func (q *Queue[T]) write(ctx context.Context, dir, name string, msg *envelope[T]) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message %s: %w", msg.ID, err)
	}
	URL := q.dirURL(dir, name)
	tempURL := URL + tempSuffix
	if err := q.fs.Upload(ctx, tempURL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write message %s: %w", msg.ID, err)
	}
	if err := q.fs.Move(ctx, tempURL, URL); err != nil {
		_ = q.fs.Delete(ctx, tempURL)
		return fmt.Errorf("failed to publish message %s: %w", msg.ID, err)
	}
	return nil
}

func (q *Queue[T]) dirURL(dir, name string) string {
	return url.Join(q.config.BaseURL, dir, name)
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
