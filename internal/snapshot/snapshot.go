// Package snapshot persists metadata snapshots so a restarted server can
// answer column lookups before its first sync.
//
// Backends are chosen by DSN scheme:
//
//	memory://                    in-process only
//	sqlite:///var/lib/wb/meta.db local SQLite file
//	redis://host:6379/0          shared Redis key
//	postgres://user@host/db      shared Postgres row
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/HendryAvila/workboard-mcp/internal/metadata"
)

// snapshotKey names the single stored snapshot in every backend.
const snapshotKey = "metadata"

var (
	// ErrUnsupportedScheme is returned by Open for an unknown DSN scheme.
	ErrUnsupportedScheme = errors.New("snapshot: unsupported dsn scheme")
	// ErrInvalidDSN is returned when a DSN cannot be parsed or lacks a path.
	ErrInvalidDSN = errors.New("snapshot: invalid dsn")
)

// Store is a metadata.Persister that owns a connection.
type Store interface {
	metadata.Persister
	Close() error
}

// Open builds the Store named by dsn. An empty dsn yields a nil Store and
// no error: persistence is optional.
func Open(dsn string) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDSN, err)
	}
	switch scheme := strings.ToLower(parsed.Scheme); scheme {
	case "memory", "mem":
		return NewMemoryStore(), nil
	case "", "file", "sqlite":
		path, err := dsnPath(parsed, dsn)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(path)
	case "redis", "rediss":
		return NewRedisStore(dsn)
	case "postgres", "postgresql":
		return NewPostgresStore(dsn)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
}

// dsnPath extracts a filesystem path from a file style DSN.
func dsnPath(parsed *url.URL, raw string) (string, error) {
	if parsed.Scheme == "" {
		return strings.TrimSpace(raw), nil
	}
	path := parsed.Path
	if parsed.Host != "" && parsed.Host != "localhost" {
		// sqlite://relative/dir/meta.db
		path = parsed.Host + path
	}
	if path == "" {
		path = parsed.Opaque
	}
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: %q has no path", ErrInvalidDSN, raw)
	}
	return path, nil
}

func encode(snap metadata.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*metadata.Snapshot, error) {
	var snap metadata.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	if snap.Boards == nil {
		snap.Boards = map[string]metadata.Board{}
	}
	return &snap, nil
}
