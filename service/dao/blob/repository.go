// Package blob defines the opaque key/value repository that backs every
// persisted document. State machines never touch the storage medium directly,
// so a local directory, an afs-supported object store or an embedded SQLite
// database can be swapped without changing them.
package blob

import (
	"context"
	"strings"
)

// Repository stores opaque blobs addressed by slash separated keys.
type Repository interface {
	// Load returns the blob or dao.ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save replaces the blob atomically.
	Save(ctx context.Context, key string, data []byte) error
	// Delete removes the blob; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns keys starting with prefix, in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Locator is implemented by repositories backed by a local directory, which
// enables file system notifications for keys under prefix.
type Locator interface {
	LocalDir(prefix string) (string, bool)
}

// CleanKey normalises a key: no leading slash, forward slashes only.
func CleanKey(key string) string {
	key = strings.ReplaceAll(strings.TrimSpace(key), "\\", "/")
	return strings.TrimLeft(key, "/")
}
