package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/viant/overseer/service/dao"
	"github.com/viant/overseer/service/dao/blob"
)

// Repository implements blob.Repository on an embedded SQLite database.
type Repository struct {
	dsn string

	mu sync.Mutex
	db *sql.DB
}

var _ blob.Repository = (*Repository)(nil)

// New opens (and migrates) the database at dsn.
func New(dsn string) (*Repository, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("missing sqlite dsn")
	}
	r := &Repository{dsn: dsn}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) Load(ctx context.Context, key string) ([]byte, error) {
	key = blob.CleanKey(key)
	if key == "" {
		return nil, dao.ErrInvalidID
	}
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT data FROM overseer_blobs WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dao.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return data, nil
}

func (r *Repository) Save(ctx context.Context, key string, data []byte) error {
	key = blob.CleanKey(key)
	if key == "" {
		return dao.ErrInvalidID
	}
	if err := r.ensureOpen(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO overseer_blobs (key, data, updated_at_unix) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at_unix = excluded.updated_at_unix
`, key, data, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, key string) error {
	key = blob.CleanKey(key)
	if key == "" {
		return dao.ErrInvalidID
	}
	if err := r.ensureOpen(); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM overseer_blobs WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (r *Repository) List(ctx context.Context, prefix string) ([]string, error) {
	prefix = blob.CleanKey(prefix)
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT key FROM overseer_blobs WHERE substr(key, 1, ?) = ? ORDER BY key`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Close releases the database handle.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Repository) open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db != nil {
		return nil
	}
	db, err := sql.Open("sqlite", r.dsn)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1)
	r.db = db
	return r.migrate()
}

func (r *Repository) ensureOpen() error {
	r.mu.Lock()
	opened := r.db != nil
	r.mu.Unlock()
	if opened {
		return nil
	}
	return r.open()
}

func (r *Repository) migrate() error {
	if r.db == nil {
		return fmt.Errorf("sqlite db is not open")
	}
	_, err := r.db.Exec(`
CREATE TABLE IF NOT EXISTS overseer_blobs (
  key TEXT PRIMARY KEY,
  data BLOB NOT NULL,
  updated_at_unix INTEGER NOT NULL
);
`)
	return err
}
