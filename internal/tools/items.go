package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/workboard-mcp/internal/metadata"
	"github.com/HendryAvila/workboard-mcp/internal/workboard"
)

const (
	defaultItemLimit = 25
	maxItemLimit     = 500
)

// BoardItemsTool handles the get_board_items MCP tool. Column ids come from
// the resolver, so the query follows the board's current schema.
type BoardItemsTool struct {
	resolver ColumnResolver
	items    ItemFetcher
}

// NewBoardItemsTool creates a BoardItemsTool.
func NewBoardItemsTool(r ColumnResolver, items ItemFetcher) *BoardItemsTool {
	return &BoardItemsTool{resolver: r, items: items}
}

// Definition returns the MCP tool definition for registration.
func (t *BoardItemsTool) Definition() mcp.Tool {
	return mcp.NewTool("get_board_items",
		mcp.WithDescription(
			"List items of a board with the text of every column, or of the "+
				"requested columns only. Results are rendered as a markdown table.",
		),
		mcp.WithString("board_id",
			mcp.Required(),
			mcp.Description("The board id."),
		),
		mcp.WithArray("column_ids",
			mcp.Description("Optional subset of column ids. Defaults to all columns."),
			stringItems,
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum items to return (default %d, max %d).", defaultItemLimit, maxItemLimit)),
		),
	)
}

// Handle processes the get_board_items tool call.
func (t *BoardItemsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	boardID := boardIDArg(req)
	if boardID == "" {
		return mcp.NewToolResultError("'board_id' is required"), nil
	}
	limit := clampLimit(intArg(req, "limit", defaultItemLimit), defaultItemLimit)

	cols, err := t.resolver.ResolveColumns(ctx, boardID)
	if err != nil {
		return errorResult("resolving columns", err), nil
	}
	cols, err = selectColumns(cols, stringsArg(req, "column_ids"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	items, err := t.items.FetchItems(ctx, boardID, columnIDs(cols), limit)
	if err != nil {
		return errorResult("fetching items", err), nil
	}
	return mcp.NewToolResultText(renderItems(boardID, cols, items)), nil
}

func renderItems(boardID string, cols []metadata.Column, items []workboard.Item) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Items of board %s\n\n", boardID)
	if len(items) == 0 {
		sb.WriteString("_No items._\n")
		return sb.String()
	}

	sb.WriteString("| Item | Name |")
	for _, col := range cols {
		fmt.Fprintf(&sb, " %s |", escapeCell(col.Title))
	}
	sb.WriteString("\n|---|---|")
	sb.WriteString(strings.Repeat("---|", len(cols)))
	sb.WriteString("\n")

	for _, it := range items {
		fmt.Fprintf(&sb, "| %s | %s |", it.ID, escapeCell(it.Name))
		for _, col := range cols {
			fmt.Fprintf(&sb, " %s |", escapeCell(it.Values[col.ID]))
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "\n%d items.\n", len(items))
	return sb.String()
}

// selectColumns keeps the requested columns in the requested order. An
// empty request keeps all of them.
func selectColumns(all []metadata.Column, requested []string) ([]metadata.Column, error) {
	if len(requested) == 0 {
		return all, nil
	}
	byID := make(map[string]metadata.Column, len(all))
	for _, col := range all {
		byID[col.ID] = col
	}
	var (
		out     []metadata.Column
		unknown []string
	)
	for _, id := range requested {
		col, ok := byID[strings.TrimSpace(id)]
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		out = append(out, col)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown column ids: %s (use get_board_columns to list them)", strings.Join(unknown, ", "))
	}
	return out, nil
}

func columnIDs(cols []metadata.Column) []string {
	ids := make([]string, len(cols))
	for i, col := range cols {
		ids[i] = col.ID
	}
	return ids
}

func clampLimit(n, def int) int {
	switch {
	case n <= 0:
		return def
	case n > maxItemLimit:
		return maxItemLimit
	default:
		return n
	}
}
