package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/HendryAvila/workboard-mcp/internal/metadata"
)

const (
	postgresTableName        = "workboard_metadata_snapshot"
	postgresOperationTimeout = 5 * time.Second
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// PostgresStore keeps the snapshot in one row of a Postgres table. The
// connection and table are set up lazily on first use.
type PostgresStore struct {
	dsn    string
	openDB sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

// NewPostgresStore returns a store for dsn without connecting.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty postgres dsn", ErrInvalidDSN)
	}
	return &PostgresStore{dsn: dsn, openDB: sql.Open}, nil
}

func (s *PostgresStore) ensureReady(ctx context.Context) error {
	s.initOnce.Do(func() {
		db, err := s.openDB("postgres", s.dsn)
		if err != nil {
			s.initErr = err
			return
		}
		ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
		defer cancel()

		_, err = db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS `+postgresTableName+` (
				snapshot_key TEXT PRIMARY KEY,
				snapshot     TEXT NOT NULL,
				updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`)
		if err != nil {
			_ = db.Close()
			s.initErr = fmt.Errorf("snapshot: postgres setup: %w", err)
			return
		}
		s.db = db
	})
	return s.initErr
}

func (s *PostgresStore) Load(ctx context.Context) (*metadata.Snapshot, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM `+postgresTableName+` WHERE snapshot_key = $1`, snapshotKey).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: postgres load: %w", err)
	}
	return decode([]byte(payload))
}

func (s *PostgresStore) Save(ctx context.Context, snap metadata.Snapshot) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	data, err := encode(snap)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO `+postgresTableName+` (snapshot_key, snapshot, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (snapshot_key)
		DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = NOW()`, snapshotKey, string(data))
	if err != nil {
		return fmt.Errorf("snapshot: postgres save: %w", err)
	}
	return nil
}

// Close closes the connection if one was opened.
func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
