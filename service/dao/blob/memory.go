package blob

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/viant/overseer/service/dao"
)

// Memory is an in-process Repository. It copies blobs on the way in and out.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

var _ Repository = (*Memory)(nil)

// NewMemory creates an empty repository.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, key string) ([]byte, error) {
	key = CleanKey(key)
	if key == "" {
		return nil, dao.ErrInvalidID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, dao.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Save(_ context.Context, key string, data []byte) error {
	key = CleanKey(key)
	if key == "" {
		return dao.ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, CleanKey(key))
	return nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]string, error) {
	prefix = CleanKey(prefix)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for key := range m.blobs {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
