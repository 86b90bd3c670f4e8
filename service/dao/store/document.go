package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/viant/overseer/service/dao"
	"github.com/viant/overseer/service/dao/blob"
)

// Document is a single JSON document stored under a fixed key, such as
// turn_counter.json or checkpoints.json.
type Document[T any] struct {
	repo blob.Repository
	key  string
}

// NewDocument binds a document to key in repo.
func NewDocument[T any](repo blob.Repository, key string) *Document[T] {
	return &Document[T]{repo: repo, key: key}
}

// Key returns the document key.
func (d *Document[T]) Key() string { return d.key }

// Load decodes the document. A missing document yields dao.ErrNotFound and an
// undecodable one dao.ErrCorrupt.
func (d *Document[T]) Load(ctx context.Context) (*T, error) {
	data, err := d.repo.Load(ctx, d.key)
	if err != nil {
		return nil, err
	}
	return decode[T](d.key, data)
}

// Save encodes and stores v.
func (d *Document[T]) Save(ctx context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", d.key, err)
	}
	return d.repo.Save(ctx, d.key, data)
}

// Delete removes the document.
func (d *Document[T]) Delete(ctx context.Context) error {
	return d.repo.Delete(ctx, d.key)
}

func decode[T any](key string, data []byte) (*T, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty: %w", key, dao.ErrCorrupt)
	}
	var ret T
	if err := json.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", key, err, dao.ErrCorrupt)
	}
	return &ret, nil
}

// isNotFound is a small helper shared by the stores.
func isNotFound(err error) bool {
	return errors.Is(err, dao.ErrNotFound)
}
