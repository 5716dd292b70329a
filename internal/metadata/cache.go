// Package metadata caches the column layout of work-management boards.
//
// Lookups are served from an in-memory snapshot that is filled lazily per
// board and replaced wholesale by a full sync. At most one full sync and at
// most one fetch per board are in flight at a time.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"k8s.io/utils/clock"

	"github.com/HendryAvila/workboard-mcp/internal/metrics"
)

// DefaultStaleness is how long a board entry is served before it is
// refetched.
const DefaultStaleness = 10 * time.Minute

const syncKey = "sync"

// Config tunes the cache.
type Config struct {
	Staleness time.Duration
	// Boards is the fixed registry synced by Sync. When empty, Sync
	// refreshes the known boards, or lists every board on a cold cache.
	Boards []string
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(cc *Cache) { cc.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(cc *Cache) { cc.logger = l }
}

// WithMetrics records hits, misses and syncs on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(cc *Cache) { cc.metrics = m }
}

// WithPersister saves every new snapshot to p and lets Warm restore it.
func WithPersister(p Persister) Option {
	return func(cc *Cache) { cc.persister = p }
}

// Cache is the metadata cache.
type Cache struct {
	cfg       Config
	fetcher   Fetcher
	clock     clock.Clock
	logger    *zap.SugaredLogger
	metrics   *metrics.Metrics
	persister Persister

	store  *store
	flight singleflight.Group

	persistMu sync.Mutex
}

// New creates an empty Cache backed by fetcher.
func New(cfg Config, fetcher Fetcher, opts ...Option) *Cache {
	if cfg.Staleness <= 0 {
		cfg.Staleness = DefaultStaleness
	}
	c := &Cache{
		cfg:     cfg,
		fetcher: fetcher,
		clock:   clock.RealClock{},
		logger:  zap.NewNop().Sugar(),
		store:   newStore(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) fresh(id string) (Board, bool) {
	b, ok := c.store.board(id)
	if !ok {
		return Board{}, false
	}
	return b, c.clock.Since(b.SyncedAt) <= c.cfg.Staleness
}

// Columns returns the columns of boardID. A missing or stale entry is
// refetched for that board alone.
func (c *Cache) Columns(ctx context.Context, boardID string) ([]Column, error) {
	if b, ok := c.fresh(boardID); ok {
		c.metrics.CacheHit()
		return b.clone().Columns, nil
	}
	c.metrics.CacheMiss()

	v, err, _ := c.flight.Do("board:"+boardID, func() (any, error) {
		// Another caller may have filled the entry while we waited.
		if b, ok := c.fresh(boardID); ok {
			return b, nil
		}
		return c.fetchBoard(context.WithoutCancel(ctx), boardID)
	})
	if err != nil {
		return nil, err
	}
	return v.(Board).clone().Columns, nil
}

func (c *Cache) fetchBoard(ctx context.Context, boardID string) (Board, error) {
	c.metrics.Fetched(metrics.FetchBoard)
	// The entry is stamped with the time the fetch started, so a sync that
	// lands meanwhile is never overwritten by the older read.
	gen := c.store.begin()
	start := c.clock.Now()
	b, err := c.fetcher.FetchBoard(ctx, boardID)
	if err != nil {
		var notFound *ResourceNotFoundError
		if errors.As(err, &notFound) {
			c.store.remove(boardID, gen, start)
		}
		return Board{}, err
	}
	b.ID = boardID
	b.SyncedAt = start
	if b.Columns == nil {
		b.Columns = []Column{}
	}

	snap, ok := c.store.put(b, gen)
	if !ok {
		c.logger.Debugw("discarding board fetch superseded by a newer write", "board_id", boardID)
		if newer, found := snap.Boards[boardID]; found {
			return newer, nil
		}
		return b, nil
	}
	c.metrics.BoardsCached(len(snap.Boards))
	c.logger.Debugw("board metadata fetched", "board_id", boardID, "columns", len(b.Columns))
	c.persist(ctx)
	return b, nil
}

// Sync refetches every board in the registry and replaces the whole
// snapshot. Concurrent callers share one in-flight sync.
func (c *Cache) Sync(ctx context.Context) (SyncResult, error) {
	v, err, shared := c.flight.Do(syncKey, func() (any, error) {
		return c.sync(context.WithoutCancel(ctx))
	})
	if err != nil {
		return SyncResult{}, err
	}
	if shared {
		c.logger.Debug("joined in-flight metadata sync")
	}
	return v.(SyncResult), nil
}

func (c *Cache) sync(ctx context.Context) (SyncResult, error) {
	start := c.clock.Now()
	ids := c.registry()

	c.metrics.Fetched(metrics.FetchSync)
	boards, err := c.fetcher.FetchBoards(ctx, ids)
	if err != nil {
		c.metrics.Synced(c.clock.Since(start), 0, err)
		return SyncResult{}, fmt.Errorf("syncing board metadata: %w", err)
	}

	now := c.clock.Now()
	for i := range boards {
		boards[i].SyncedAt = now
		if boards[i].Columns == nil {
			boards[i].Columns = []Column{}
		}
	}
	snap := c.store.replace(boards, now)

	res := SyncResult{
		Duration:     c.clock.Since(start),
		BoardCount:   len(snap.Boards),
		ColumnCount:  snap.ColumnCount(),
		LastFullSync: now,
	}
	c.metrics.Synced(res.Duration, res.BoardCount, nil)
	c.logger.Infow("metadata sync finished",
		"boards", res.BoardCount, "columns", res.ColumnCount, "duration", res.Duration)
	c.persist(ctx)
	return res, nil
}

// registry picks the board ids a full sync covers.
func (c *Cache) registry() []string {
	if len(c.cfg.Boards) > 0 {
		return append([]string(nil), c.cfg.Boards...)
	}
	if known := c.store.load().BoardIDs(); len(known) > 0 {
		return known
	}
	return nil
}

// Snapshot returns a deep copy of the store for diagnostics.
func (c *Cache) Snapshot() Snapshot {
	return c.store.load().Clone()
}

// Warm restores the last persisted snapshot, if any. Entries keep their
// original sync times, so stale ones are refetched on first use.
func (c *Cache) Warm(ctx context.Context) error {
	if c.persister == nil {
		return nil
	}
	snap, err := c.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading metadata snapshot: %w", err)
	}
	if snap == nil {
		return nil
	}
	c.store.set(*snap)
	c.metrics.BoardsCached(len(snap.Boards))
	c.logger.Infow("metadata snapshot restored", "boards", len(snap.Boards))
	return nil
}

// persist saves the current snapshot. Saves are serialized and each one
// reads the store when it runs, so the last save always holds the latest
// state.
func (c *Cache) persist(ctx context.Context) {
	if c.persister == nil {
		return
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if err := c.persister.Save(ctx, c.store.load().Clone()); err != nil {
		c.logger.Warnw("saving metadata snapshot failed", "error", err)
	}
}

// Run syncs every interval until ctx is done. Ticks are skipped while
// nothing is known and no registry is configured. A non-positive interval
// returns immediately.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	for {
		t := c.clock.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C():
		}

		if len(c.cfg.Boards) == 0 && len(c.store.load().Boards) == 0 {
			c.logger.Debug("skipping periodic sync, no boards known yet")
			continue
		}
		if _, err := c.Sync(ctx); err != nil {
			c.logger.Warnw("periodic metadata sync failed", "error", err)
		}
	}
}
