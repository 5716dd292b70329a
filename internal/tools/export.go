package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/workboard-mcp/internal/metadata"
	"github.com/HendryAvila/workboard-mcp/internal/workboard"
)

const defaultExportLimit = 100

// ExportTool handles the export_board_to_sheet MCP tool. Appends go through
// the rate limited export queue.
type ExportTool struct {
	resolver ColumnResolver
	items    ItemFetcher
	sheets   RowAppender
}

// NewExportTool creates an ExportTool.
func NewExportTool(r ColumnResolver, items ItemFetcher, sheets RowAppender) *ExportTool {
	return &ExportTool{resolver: r, items: items, sheets: sheets}
}

// Definition returns the MCP tool definition for registration.
func (t *ExportTool) Definition() mcp.Tool {
	return mcp.NewTool("export_board_to_sheet",
		mcp.WithDescription(
			"Append a board's items to a spreadsheet, one row per item. The first "+
				"row holds the column titles unless include_header is false. The "+
				"spreadsheet provider has a strict quota, so calls are queued.",
		),
		mcp.WithString("board_id",
			mcp.Required(),
			mcp.Description("The board id."),
		),
		mcp.WithString("spreadsheet_id",
			mcp.Required(),
			mcp.Description("Target spreadsheet id."),
		),
		mcp.WithString("sheet",
			mcp.Description("Sheet name or A1 range to append to (default Sheet1)."),
		),
		mcp.WithArray("column_ids",
			mcp.Description("Optional subset of column ids. Defaults to all columns."),
			stringItems,
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum items to export (default %d, max %d).", defaultExportLimit, maxItemLimit)),
		),
		mcp.WithBoolean("include_header",
			mcp.Description("Write a header row with the column titles (default true)."),
		),
	)
}

// Handle processes the export_board_to_sheet tool call.
func (t *ExportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	boardID := boardIDArg(req)
	spreadsheetID := req.GetString("spreadsheet_id", "")
	if boardID == "" || spreadsheetID == "" {
		return mcp.NewToolResultError("'board_id' and 'spreadsheet_id' are required"), nil
	}
	sheet := req.GetString("sheet", "Sheet1")
	limit := clampLimit(intArg(req, "limit", defaultExportLimit), defaultExportLimit)
	includeHeader := boolArg(req, "include_header", true)

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

	rows := buildRows(cols, items, includeHeader)
	if len(rows) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Board %s has no items; nothing was exported.", boardID)), nil
	}

	res, err := t.sheets.AppendRows(ctx, spreadsheetID, sheet, rows)
	if err != nil {
		return errorResult("exporting to spreadsheet", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Exported %d items of board %s to %s (%d rows, %d cells).",
		len(items), boardID, res.UpdatedRange, res.UpdatedRows, res.UpdatedCells)), nil
}

func buildRows(cols []metadata.Column, items []workboard.Item, header bool) [][]string {
	if len(items) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(items)+1)
	if header {
		row := []string{"Item ID", "Name"}
		for _, col := range cols {
			row = append(row, col.Title)
		}
		rows = append(rows, row)
	}
	for _, it := range items {
		row := []string{it.ID, it.Name}
		for _, col := range cols {
			row = append(row, it.Values[col.ID])
		}
		rows = append(rows, row)
	}
	return rows
}
