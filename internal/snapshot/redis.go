package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/HendryAvila/workboard-mcp/internal/metadata"
)

// DefaultRedisPrefix namespaces the snapshot key.
const DefaultRedisPrefix = "workboard:"

// RedisStore keeps the snapshot under one Redis key, letting several server
// processes share a warm cache.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore connects to the Redis server named by a redis:// URL.
func NewRedisStore(dsn string) (*RedisStore, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDSN, err)
	}
	return NewRedisStoreWithClient(redis.NewClient(opts), DefaultRedisPrefix), nil
}

// NewRedisStoreWithClient creates a RedisStore with a pre-configured client.
// This is useful for testing with miniredis.
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, key: keyPrefix + snapshotKey}
}

func (s *RedisStore) Load(ctx context.Context) (*metadata.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: redis get: %w", err)
	}
	return decode(data)
}

func (s *RedisStore) Save(ctx context.Context, snap metadata.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("snapshot: redis set: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
