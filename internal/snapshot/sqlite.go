package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/HendryAvila/workboard-mcp/internal/metadata"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is a package-level var so tests can pin updated_at.
var timeNow = time.Now

// SQLiteStore keeps the snapshot in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path, applies
// the WAL pragmas and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("snapshot: create data dir: %w", err)
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("snapshot: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("snapshot: migration: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			key        TEXT PRIMARY KEY,
			payload    TEXT NOT NULL,
			boards     INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL
		);
	`)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context) (*metadata.Snapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE key = ?`, snapshotKey).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: load: %w", err)
	}
	return decode([]byte(payload))
}

func (s *SQLiteStore) Save(ctx context.Context, snap metadata.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (key, payload, boards, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			boards = excluded.boards,
			updated_at = excluded.updated_at`,
		snapshotKey, string(data), len(snap.Boards), timeNow().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("snapshot: save: %w", err)
	}
	return nil
}

// updatedAt reports when the snapshot was last saved. ok is false when
// nothing has been saved.
func (s *SQLiteStore) updatedAt(ctx context.Context) (t time.Time, ok bool, err error) {
	var raw string
	err = s.db.QueryRowContext(ctx, `SELECT updated_at FROM snapshots WHERE key = ?`, snapshotKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("snapshot: read updated_at: %w", err)
	}
	t, err = time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("snapshot: parse updated_at: %w", err)
	}
	return t, true, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
