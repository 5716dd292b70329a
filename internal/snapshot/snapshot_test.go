package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/workboard-mcp/internal/metadata"
)

func sampleSnapshot() metadata.Snapshot {
	synced := time.Date(2026, 6, 1, 10, 30, 0, 0, time.UTC)
	return metadata.Snapshot{
		Boards: map[string]metadata.Board{
			"B1": {ID: "B1", Name: "Roadmap", SyncedAt: synced, Columns: []metadata.Column{
				{ID: "name", Title: "Name", Type: "name"},
				{ID: "status", Title: "Status", Type: "status"},
			}},
			"B2": {ID: "B2", Name: "Empty", SyncedAt: synced, Columns: []metadata.Column{}},
		},
		LastFullSync: synced,
	}
}

// exerciseStore checks the behaviour every backend shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "nothing saved yet")

	want := sampleSnapshot()
	require.NoError(t, s.Save(ctx, want))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Errorf("loaded snapshot differs (-want +got):\n%s", diff)
	}
	require.NotNil(t, got.Boards["B2"].Columns, "synced-empty board keeps its empty column list")

	// A later save replaces the earlier one.
	next := metadata.Snapshot{Boards: map[string]metadata.Board{"B3": {ID: "B3", Columns: []metadata.Column{}}}}
	require.NoError(t, s.Save(ctx, next))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B3"}, got.BoardIDs())
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_LoadReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Save(context.Background(), sampleSnapshot()))

	first, err := s.Load(context.Background())
	require.NoError(t, err)
	delete(first.Boards, "B1")

	second, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, second.Boards, "B1")
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func TestSQLiteStore_UpdatedAt(t *testing.T) {
	pinned := time.Date(2026, 6, 2, 8, 0, 0, 0, time.UTC)
	orig := timeNow
	timeNow = func() time.Time { return pinned }
	t.Cleanup(func() { timeNow = orig })

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, ok, err := s.updatedAt(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(context.Background(), sampleSnapshot()))
	at, ok, err := s.updatedAt(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, pinned.Equal(at), "updated_at = %v", at)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), sampleSnapshot()))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"B1", "B2"}, got.BoardIDs())
}

func TestSQLiteStore_OpenError(t *testing.T) {
	orig := openDB
	openDB = func(string, string) (*sql.DB, error) { return nil, errors.New("disk on fire") }
	t.Cleanup(func() { openDB = orig })

	_, err := NewSQLiteStore(filepath.Join(t.TempDir(), "meta.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreWithClient(client, "test:")
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Ping(context.Background()))
	exerciseStore(t, s)
	assert.True(t, mr.Exists("test:metadata"))
}

func TestRedisStore_FromDSN(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := Open("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Save(context.Background(), sampleSnapshot()))
	assert.True(t, mr.Exists(DefaultRedisPrefix+snapshotKey))
}

func TestRedisStore_CorruptPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, mr.Set("metadata", "{not json"))
	_, err := s.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("WORKBOARD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("WORKBOARD_TEST_POSTGRES_DSN not set")
	}
	s, err := NewPostgresStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		if s.db != nil {
			_, _ = s.db.Exec(`DELETE FROM ` + postgresTableName)
		}
		_ = s.Close()
	})
	require.NoError(t, s.ensureReady(context.Background()))
	_, err = s.db.Exec(`DELETE FROM ` + postgresTableName)
	require.NoError(t, err)

	exerciseStore(t, s)
}

func TestPostgresStore_OpenErrorIsSticky(t *testing.T) {
	s, err := NewPostgresStore("postgres://user@localhost/db")
	require.NoError(t, err)
	calls := 0
	s.openDB = func(string, string) (*sql.DB, error) {
		calls++
		return nil, errors.New("refused")
	}

	_, err = s.Load(context.Background())
	require.Error(t, err)
	err = s.Save(context.Background(), sampleSnapshot())
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.NoError(t, s.Close())
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		dsn     string
		want    any
		wantErr error
	}{
		{name: "empty", dsn: "", want: nil},
		{name: "memory", dsn: "memory://", want: &MemoryStore{}},
		{name: "sqlite url", dsn: "sqlite://" + filepath.Join(dir, "a.db"), want: &SQLiteStore{}},
		{name: "bare path", dsn: filepath.Join(dir, "b.db"), want: &SQLiteStore{}},
		{name: "postgres", dsn: "postgres://user@localhost:5432/workboard?sslmode=disable", want: &PostgresStore{}},
		{name: "unsupported", dsn: "mysql://localhost/db", wantErr: ErrUnsupportedScheme},
		{name: "sqlite without path", dsn: "sqlite://", wantErr: ErrInvalidDSN},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(tt.dsn)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, store)
				return
			}
			assert.IsType(t, tt.want, store)
			t.Cleanup(func() { _ = store.Close() })
		})
	}
}

func TestDSNPath(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "sqlite:///var/lib/workboard/meta.db", want: "/var/lib/workboard/meta.db"},
		{raw: "sqlite://data/meta.db", want: "data/meta.db"},
		{raw: "file:meta.db", want: "meta.db"},
		{raw: "./meta.db", want: "./meta.db"},
	}
	for _, tt := range tests {
		parsed, err := url.Parse(tt.raw)
		require.NoError(t, err)
		got, err := dsnPath(parsed, tt.raw)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}
