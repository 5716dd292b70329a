package tools

import (
	"context"

	"github.com/HendryAvila/workboard-mcp/internal/metadata"
	"github.com/HendryAvila/workboard-mcp/internal/queue"
	"github.com/HendryAvila/workboard-mcp/internal/sheets"
	"github.com/HendryAvila/workboard-mcp/internal/workboard"
)

// ColumnResolver resolves a board's columns, normally *resolver.Resolver.
type ColumnResolver interface {
	ResolveColumns(ctx context.Context, boardID string) ([]metadata.Column, error)
}

// MetadataCache is the slice of *metadata.Cache the diagnostics tools use.
type MetadataCache interface {
	Sync(ctx context.Context) (metadata.SyncResult, error)
	Snapshot() metadata.Snapshot
}

// ItemFetcher reads board rows, normally *workboard.Client.
type ItemFetcher interface {
	FetchItems(ctx context.Context, boardID string, columnIDs []string, limit int) ([]workboard.Item, error)
}

// RowAppender writes rows to a spreadsheet, normally *sheets.Client.
type RowAppender interface {
	AppendRows(ctx context.Context, spreadsheetID, sheetRange string, rows [][]string) (sheets.AppendResult, error)
}

// QueueStats reports the export queue, normally *queue.Queue.
type QueueStats interface {
	Stats() queue.Stats
}
