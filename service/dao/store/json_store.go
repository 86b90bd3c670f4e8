package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/viant/overseer/service/dao"
	"github.com/viant/overseer/service/dao/blob"
)

// JSONStore is a generic dao.Service keeping one JSON document per entity
// under <prefix>/<id>.json.
//
// Keys selected by the exclude predicate (for example ephemeral sibling
// artifacts sharing the same prefix) are skipped by List.
type JSONStore[T any] struct {
	repo        blob.Repository
	prefix      string
	keySelector func(*T) string
	exclude     func(id string) bool
	filter      func(*T, []*dao.Parameter) bool
	logger      *slog.Logger
}

// JSONStoreOption customises a JSONStore.
type JSONStoreOption[T any] func(*JSONStore[T])

// WithExclude skips ids matching fn when listing.
func WithExclude[T any](fn func(id string) bool) JSONStoreOption[T] {
	return func(s *JSONStore[T]) { s.exclude = fn }
}

// WithFilter applies fn to every decoded entity when listing.
func WithFilter[T any](fn func(*T, []*dao.Parameter) bool) JSONStoreOption[T] {
	return func(s *JSONStore[T]) { s.filter = fn }
}

// WithLogger sets the logger used to report undecodable entries.
func WithLogger[T any](logger *slog.Logger) JSONStoreOption[T] {
	return func(s *JSONStore[T]) { s.logger = logger }
}

// NewJSONStore creates a store rooted at prefix.
func NewJSONStore[T any](repo blob.Repository, prefix string, keySelector func(*T) string, options ...JSONStoreOption[T]) *JSONStore[T] {
	ret := &JSONStore[T]{
		repo:        repo,
		prefix:      strings.Trim(blob.CleanKey(prefix), "/"),
		keySelector: keySelector,
		logger:      slog.Default(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

var _ dao.Service[string, struct{}] = (*JSONStore[struct{}])(nil)

// Save persists an entity.
func (s *JSONStore[T]) Save(ctx context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	id := s.keySelector(v)
	if id == "" {
		return dao.ErrInvalidID
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}
	return s.repo.Save(ctx, s.Key(id), data)
}

// Load returns the entity, dao.ErrNotFound or dao.ErrCorrupt.
func (s *JSONStore[T]) Load(ctx context.Context, id string) (*T, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	data, err := s.repo.Load(ctx, s.Key(id))
	if err != nil {
		return nil, err
	}
	return decode[T](id, data)
}

// Delete removes the entity; missing entities are ignored.
func (s *JSONStore[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	return s.repo.Delete(ctx, s.Key(id))
}

// List returns every decodable entity matching parameters.
func (s *JSONStore[T]) List(ctx context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	keys, err := s.repo.List(ctx, s.prefix+"/")
	if err != nil {
		return nil, err
	}
	var ret []*T
	for _, key := range keys {
		id, ok := s.idOf(key)
		if !ok || (s.exclude != nil && s.exclude(id)) {
			continue
		}
		entity, err := s.Load(ctx, id)
		if err != nil {
			if !isNotFound(err) {
				s.logger.Warn("store_entry_skipped", "key", key, "error", err.Error())
			}
			continue
		}
		if s.filter != nil && !s.filter(entity, parameters) {
			continue
		}
		ret = append(ret, entity)
	}
	return ret, nil
}

// Key returns the blob key of id.
func (s *JSONStore[T]) Key(id string) string {
	return path.Join(s.prefix, id+".json")
}

func (s *JSONStore[T]) idOf(key string) (string, bool) {
	name := strings.TrimPrefix(key, s.prefix+"/")
	if strings.Contains(name, "/") || !strings.HasSuffix(name, ".json") {
		return "", false
	}
	return strings.TrimSuffix(name, ".json"), true
}
