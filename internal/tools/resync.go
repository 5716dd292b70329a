package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// ResyncTool handles the resync_metadata MCP tool, the manual trigger for
// a full metadata sync.
type ResyncTool struct {
	cache MetadataCache
}

// NewResyncTool creates a ResyncTool.
func NewResyncTool(cache MetadataCache) *ResyncTool {
	return &ResyncTool{cache: cache}
}

// Definition returns the MCP tool definition for registration.
func (t *ResyncTool) Definition() mcp.Tool {
	return mcp.NewTool("resync_metadata",
		mcp.WithDescription(
			"Force a full refresh of the board metadata cache. Use after columns were "+
				"added, renamed or removed on the remote side. If a sync is already "+
				"running, this waits for it instead of starting another.",
		),
	)
}

// ResyncReport is the resync payload.
type ResyncReport struct {
	DurationMs        int64  `json:"durationMs"`
	ResourceCount     int    `json:"resourceCount"`
	TotalColumnCount  int    `json:"totalColumnCount"`
	LastSyncTimestamp string `json:"lastSyncTimestamp"`
}

// Handle processes the resync_metadata tool call.
func (t *ResyncTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := t.cache.Sync(ctx)
	if err != nil {
		data, _ := json.Marshal(map[string]string{"error": describeError(err)})
		return mcp.NewToolResultError(string(data)), nil
	}
	return jsonResult(ResyncReport{
		DurationMs:        res.Duration.Milliseconds(),
		ResourceCount:     res.BoardCount,
		TotalColumnCount:  res.ColumnCount,
		LastSyncTimestamp: res.LastFullSync.UTC().Format(time.RFC3339),
	})
}
