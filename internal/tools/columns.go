package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// BoardColumnsTool handles the get_board_columns MCP tool.
type BoardColumnsTool struct {
	resolver ColumnResolver
}

// NewBoardColumnsTool creates a BoardColumnsTool.
func NewBoardColumnsTool(r ColumnResolver) *BoardColumnsTool {
	return &BoardColumnsTool{resolver: r}
}

// Definition returns the MCP tool definition for registration.
func (t *BoardColumnsTool) Definition() mcp.Tool {
	return mcp.NewTool("get_board_columns",
		mcp.WithDescription(
			"List the columns of a board: id, title and type. "+
				"Column ids are what item queries and exports need. "+
				"Served from the metadata cache when fresh.",
		),
		mcp.WithString("board_id",
			mcp.Required(),
			mcp.Description("The board id."),
		),
	)
}

// Handle processes the get_board_columns tool call.
func (t *BoardColumnsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	boardID := boardIDArg(req)
	if boardID == "" {
		return mcp.NewToolResultError("'board_id' is required"), nil
	}

	cols, err := t.resolver.ResolveColumns(ctx, boardID)
	if err != nil {
		return errorResult("resolving columns", err), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Columns of board %s\n\n", boardID)
	sb.WriteString("| ID | Title | Type |\n|---|---|---|\n")
	for _, col := range cols {
		fmt.Fprintf(&sb, "| `%s` | %s | %s |\n", col.ID, escapeCell(col.Title), col.Type)
	}
	fmt.Fprintf(&sb, "\n%d columns.\n", len(cols))
	return mcp.NewToolResultText(sb.String()), nil
}
