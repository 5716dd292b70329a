package tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/workboard-mcp/internal/queue"
)

// MetadataStatusTool handles the metadata_status MCP tool.
type MetadataStatusTool struct {
	cache MetadataCache
	queue QueueStats // nil when export is disabled
}

// NewMetadataStatusTool creates a MetadataStatusTool. q may be nil.
func NewMetadataStatusTool(cache MetadataCache, q QueueStats) *MetadataStatusTool {
	return &MetadataStatusTool{cache: cache, queue: q}
}

// Definition returns the MCP tool definition for registration.
func (t *MetadataStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("metadata_status",
		mcp.WithDescription(
			"Show what the metadata cache holds: every known board with its column "+
				"count and sync time, the last full sync, and the export queue counters.",
		),
	)
}

type boardStatus struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	ColumnCount int       `json:"columnCount"`
	SyncedAt    time.Time `json:"syncedAt"`
}

type statusReport struct {
	Boards       []boardStatus `json:"boards"`
	BoardCount   int           `json:"boardCount"`
	ColumnCount  int           `json:"totalColumnCount"`
	LastFullSync *time.Time    `json:"lastFullSync"`
	Queue        *queue.Stats  `json:"queue,omitempty"`
}

// Handle processes the metadata_status tool call.
func (t *MetadataStatusTool) Handle(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := t.cache.Snapshot()

	report := statusReport{
		Boards:      make([]boardStatus, 0, len(snap.Boards)),
		BoardCount:  len(snap.Boards),
		ColumnCount: snap.ColumnCount(),
	}
	for _, id := range snap.BoardIDs() {
		b := snap.Boards[id]
		report.Boards = append(report.Boards, boardStatus{
			ID: id, Name: b.Name, ColumnCount: len(b.Columns), SyncedAt: b.SyncedAt,
		})
	}
	if !snap.LastFullSync.IsZero() {
		last := snap.LastFullSync
		report.LastFullSync = &last
	}
	if t.queue != nil {
		stats := t.queue.Stats()
		report.Queue = &stats
	}
	return jsonResult(report)
}
