package fs

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/overseer/service/dao"
	"github.com/viant/overseer/service/dao/blob"
)

const tempMarker = ".tmp-"

// Repository implements blob.Repository on top of viant/afs, so the base URL
// may point at a local directory (file://, plain path) or any afs backend.
type Repository struct {
	baseURL string
	fs      afs.Service
	mu      sync.RWMutex
}

var (
	_ blob.Repository = (*Repository)(nil)
	_ blob.Locator    = (*Repository)(nil)
)

// Load retrieves a blob.
func (r *Repository) Load(ctx context.Context, key string) ([]byte, error) {
	key = blob.CleanKey(key)
	if key == "" {
		return nil, dao.ErrInvalidID
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	URL := r.keyURL(key)
	exists, err := r.fs.Exists(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to check if %s exists: %w", key, err)
	}
	if !exists {
		return nil, dao.ErrNotFound
	}
	data, err := r.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Save writes the blob to a temporary sibling and moves it into place so
// readers never observe a partial document.
func (r *Repository) Save(ctx context.Context, key string, data []byte) error {
	key = blob.CleanKey(key)
	if key == "" {
		return dao.ErrInvalidID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	URL := r.keyURL(key)
	tempURL := URL + tempMarker + uuid.New().String()[:8]
	if err := r.fs.Upload(ctx, tempURL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := r.fs.Move(ctx, tempURL, URL); err != nil {
		_ = r.fs.Delete(ctx, tempURL)
		return fmt.Errorf("failed to move %s into place: %w", key, err)
	}
	return nil
}

// Delete removes a blob if present.
func (r *Repository) Delete(ctx context.Context, key string) error {
	key = blob.CleanKey(key)
	if key == "" {
		return dao.ErrInvalidID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	URL := r.keyURL(key)
	exists, err := r.fs.Exists(ctx, URL)
	if err != nil {
		return fmt.Errorf("failed to check if %s exists: %w", key, err)
	}
	if !exists {
		return nil
	}
	if err := r.fs.Delete(ctx, URL); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// List returns keys under the directory part of prefix that start with prefix.
func (r *Repository) List(ctx context.Context, prefix string) ([]string, error) {
	prefix = blob.CleanKey(prefix)
	dir := prefix
	if !strings.HasSuffix(prefix, "/") {
		dir = path.Dir(prefix)
		if dir == "." {
			dir = ""
		}
	}
	dir = strings.TrimSuffix(dir, "/")

	r.mu.RLock()
	defer r.mu.RUnlock()

	dirURL := r.baseURL
	if dir != "" {
		dirURL = url.Join(r.baseURL, dir)
	}
	exists, err := r.fs.Exists(ctx, dirURL)
	if err != nil || !exists {
		return nil, err
	}
	objects, err := r.fs.List(ctx, dirURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var keys []string
	for _, object := range objects {
		if object.IsDir() || strings.Contains(object.Name(), tempMarker) {
			continue
		}
		key := object.Name()
		if dir != "" {
			key = dir + "/" + key
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// LocalDir returns the local directory backing prefix when the repository
// lives on the local file system.
func (r *Repository) LocalDir(prefix string) (string, bool) {
	if url.Scheme(r.baseURL, file.Scheme) != file.Scheme {
		return "", false
	}
	dir := url.Path(r.baseURL)
	if prefix = strings.TrimSuffix(blob.CleanKey(prefix), "/"); prefix != "" {
		dir = path.Join(dir, prefix)
	}
	return dir, true
}

func (r *Repository) keyURL(key string) string {
	return url.Join(r.baseURL, key)
}

// New creates a repository rooted at baseURL, creating the directory if needed.
func New(baseURL string) (*Repository, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	fs := afs.New()

	baseURL = url.Normalize(baseURL, file.Scheme)

	ctx := context.Background()
	exists, _ := fs.Exists(ctx, baseURL)
	if !exists {
		if err := fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}

	return &Repository{
		baseURL: baseURL,
		fs:      fs,
	}, nil
}
