package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	storageout "tabtrail/internal/modules/storage/port/out"
	apperrors "tabtrail/internal/platform/errors"

	_ "modernc.org/sqlite"
)

func openSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return db, nil
}

// SQLiteRecordStore keeps encoded records, one row per key.
type SQLiteRecordStore struct {
	db *sql.DB
}

var _ storageout.BlobStore = (*SQLiteRecordStore)(nil)

func NewSQLiteRecordStore(dbPath string) (*SQLiteRecordStore, error) {
	db, err := openSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	s := &SQLiteRecordStore{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteRecordStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS records (
  key TEXT PRIMARY KEY,
  data BLOB NOT NULL,
  size INTEGER NOT NULL,
  saved_at TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create records table: %w", err)
	}
	return nil
}

func (s *SQLiteRecordStore) Put(ctx context.Context, key string, data []byte) error {
	const stmt = `
INSERT INTO records (key, data, size, saved_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
  data=excluded.data,
  size=excluded.size,
  saved_at=excluded.saved_at;
`
	if _, err := s.db.ExecContext(ctx, stmt, key, data, len(data), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("put record %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteRecordStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM records WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", key, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", key, err)
	}
	return data, nil
}

func (s *SQLiteRecordStore) Close() error {
	return s.db.Close()
}
