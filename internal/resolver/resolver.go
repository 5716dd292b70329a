// Package resolver turns a board id into the column ids a query should
// request.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/HendryAvila/workboard-mcp/internal/metadata"
	"github.com/HendryAvila/workboard-mcp/internal/metrics"
)

// SchemaResolutionError means neither the cache nor a direct fetch produced
// any column ids for a board.
type SchemaResolutionError struct {
	BoardID  string
	CacheErr error
}

func (e *SchemaResolutionError) Error() string {
	if e.CacheErr != nil {
		return fmt.Sprintf("no columns resolved for board %s (cache: %v)", e.BoardID, e.CacheErr)
	}
	return fmt.Sprintf("no columns resolved for board %s", e.BoardID)
}

func (e *SchemaResolutionError) Unwrap() error { return e.CacheErr }

// ColumnSource is the cached lookup, normally *metadata.Cache.
type ColumnSource interface {
	Columns(ctx context.Context, boardID string) ([]metadata.Column, error)
}

// Resolver reads columns from the cache and falls back once to a direct
// fetch when the cache fails or has nothing.
type Resolver struct {
	cache   ColumnSource
	fetcher metadata.Fetcher
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

// New creates a Resolver. logger and m may be nil.
func New(cache ColumnSource, fetcher metadata.Fetcher, logger *zap.SugaredLogger, m *metrics.Metrics) *Resolver {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Resolver{cache: cache, fetcher: fetcher, logger: logger, metrics: m}
}

// Resolve returns the ordered column ids of boardID. It never returns an
// empty slice without an error.
func (r *Resolver) Resolve(ctx context.Context, boardID string) ([]string, error) {
	cols, err := r.ResolveColumns(ctx, boardID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(cols))
	for i, col := range cols {
		ids[i] = col.ID
	}
	return ids, nil
}

// ResolveColumns is Resolve returning full column descriptors.
func (r *Resolver) ResolveColumns(ctx context.Context, boardID string) ([]metadata.Column, error) {
	cols, cacheErr := r.cache.Columns(ctx, boardID)
	if cacheErr == nil && len(cols) > 0 {
		return cols, nil
	}
	if cacheErr != nil {
		r.logger.Warnw("metadata cache lookup failed, fetching directly", "board_id", boardID, "error", cacheErr)
	}

	r.metrics.Fetched(metrics.FetchFallback)
	board, err := r.fetcher.FetchBoard(ctx, boardID)
	if err != nil {
		var notFound *metadata.ResourceNotFoundError
		if errors.As(err, &notFound) {
			return nil, err
		}
		return nil, fmt.Errorf("resolving columns for board %s: %w", boardID, err)
	}
	if len(board.Columns) == 0 {
		return nil, &SchemaResolutionError{BoardID: boardID, CacheErr: cacheErr}
	}
	return board.Columns, nil
}
