package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// ContentStore is the content-addressable page body cache.
type ContentStore interface {
	Put(ctx context.Context, body string, metadata map[string]string) (string, error)
	Get(ctx context.Context, hash string) (*ContentEntry, error)
	Count(ctx context.Context) (int64, error)
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteContentStore implements ContentStore on the content_store table.
// Bodies never change once written, so reads go through an in-process
// cache that only needs flushing when the whole store is cleared.
type SQLiteContentStore struct {
	db    *sql.DB
	cache *cache.Cache
}

// NewSQLiteContentStore creates a store over an already-migrated database.
func NewSQLiteContentStore(db *sql.DB) *SQLiteContentStore {
	return &SQLiteContentStore{
		db:    db,
		cache: cache.New(30*time.Minute, 10*time.Minute),
	}
}

// Fingerprint returns the SHA-256 hex digest used as the content key.
func Fingerprint(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// Put stores body under its fingerprint if absent and returns the
// fingerprint. Repeated calls with the same body are no-ops; metadata is
// only recorded on first sighting.
func (s *SQLiteContentStore) Put(ctx context.Context, body string, metadata map[string]string) (string, error) {
	hash := Fingerprint(body)
	if err := putContent(ctx, s.db, hash, body, metadata); err != nil {
		return "", err
	}
	return hash, nil
}

// putContent is the shared insert used by Put and by Ledger.Upsert inside its transaction.
func putContent(ctx context.Context, ex execer, hash, body string, metadata map[string]string) error {
	if metadata == nil {
		metadata = map[string]string{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return Invalid("metadata", err.Error())
	}

	_, err = ex.ExecContext(ctx,
		`INSERT INTO content_store (hash, content, metadata, byte_size)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (hash) DO NOTHING`,
		hash, body, string(meta), len(body),
	)
	if err != nil {
		return StorageErr("insert content", err)
	}
	return nil
}

// Get returns the entry stored under hash, or ErrNotFound.
func (s *SQLiteContentStore) Get(ctx context.Context, hash string) (*ContentEntry, error) {
	if cached, ok := s.cache.Get(hash); ok {
		entry := cached.(ContentEntry)
		return &entry, nil
	}

	var entry ContentEntry
	var meta string
	err := s.db.QueryRowContext(ctx,
		"SELECT hash, content, metadata FROM content_store WHERE hash = ?", hash,
	).Scan(&entry.Hash, &entry.Body, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, StorageErr("get content", err)
	}

	entry.Metadata = decodeMetadata(meta)
	s.cache.Set(hash, entry, cache.DefaultExpiration)

	return &entry, nil
}

// Count returns the number of distinct bodies stored.
func (s *SQLiteContentStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM content_store").Scan(&n); err != nil {
		return 0, StorageErr("count content", err)
	}
	return n, nil
}

// flush drops every cached body. Called after the store is cleared.
func (s *SQLiteContentStore) flush() {
	s.cache.Flush()
}

func decodeMetadata(raw string) map[string]string {
	meta := map[string]string{}
	if raw == "" {
		return meta
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return map[string]string{}
	}
	return meta
}
