package out

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"studydesk/internal/modules/syncstate/domain"
	syncout "studydesk/internal/modules/syncstate/port/out"

	_ "modernc.org/sqlite"
)

const scopedKeyPrefix = "u/"

// SQLiteLocalCache keeps both the per-user scoped slots and the legacy
// unscoped namespace in a single key/value table.
type SQLiteLocalCache struct {
	db *sql.DB
}

var (
	_ syncout.LocalCache  = (*SQLiteLocalCache)(nil)
	_ syncout.LegacyCache = (*SQLiteLocalCache)(nil)
)

func NewSQLiteLocalCache(dbPath string) (*SQLiteLocalCache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	cache := &SQLiteLocalCache{db: db}
	if err := cache.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return cache, nil
}

func (s *SQLiteLocalCache) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS local_cache (
  key TEXT PRIMARY KEY,
  value BLOB NOT NULL,
  updated_at TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create local_cache table: %w", err)
	}
	return nil
}

func ScopedKey(userID string, key domain.LogicalKey) string {
	return scopedKeyPrefix + userID + "/" + string(key)
}

func (s *SQLiteLocalCache) Get(ctx context.Context, userID string, key domain.LogicalKey) (json.RawMessage, bool, error) {
	raw, ok, err := s.GetRaw(ctx, ScopedKey(userID, key))
	if err != nil || !ok {
		return nil, ok, err
	}
	return json.RawMessage(raw), true, nil
}

func (s *SQLiteLocalCache) Set(ctx context.Context, userID string, key domain.LogicalKey, value json.RawMessage) error {
	return s.PutRaw(ctx, ScopedKey(userID, key), value)
}

func (s *SQLiteLocalCache) GetRaw(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM local_cache WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache key %s: %w", key, err)
	}
	return value, true, nil
}

// PutRaw writes an arbitrary key. Unscoped keys are how legacy data is seeded.
func (s *SQLiteLocalCache) PutRaw(ctx context.Context, key string, value []byte) error {
	const stmt = `
INSERT INTO local_cache (key, value, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
  value=excluded.value,
  updated_at=excluded.updated_at;
`
	if _, err := s.db.ExecContext(ctx, stmt, key, value, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("write cache key %s: %w", key, err)
	}
	return nil
}

// Scan returns unscoped entries whose key starts with prefix, ordered by key.
func (s *SQLiteLocalCache) Scan(ctx context.Context, prefix string) ([]domain.RawEntry, error) {
	// substr counts characters, not bytes
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM local_cache WHERE substr(key, 1, ?) = ? ORDER BY key`, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("scan cache: %w", err)
	}
	defer rows.Close()

	out := []domain.RawEntry{}
	for rows.Next() {
		entry := domain.RawEntry{}
		if err := rows.Scan(&entry.Key, &entry.Value); err != nil {
			return nil, fmt.Errorf("scan cache row: %w", err)
		}
		if strings.HasPrefix(entry.Key, scopedKeyPrefix) {
			continue
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan cache rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteLocalCache) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM local_cache WHERE key = ?`, key); err != nil {
			return fmt.Errorf("delete cache key %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

func (s *SQLiteLocalCache) Close() error {
	return s.db.Close()
}
