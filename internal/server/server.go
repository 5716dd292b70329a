// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools, prompts and resources that depend on
// abstractions. No business logic lives here, only wiring.
package server

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/HendryAvila/workboard-mcp/internal/config"
	"github.com/HendryAvila/workboard-mcp/internal/prompts"
	"github.com/HendryAvila/workboard-mcp/internal/resources"
	"github.com/HendryAvila/workboard-mcp/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New builds the services for cfg and an MCP server with every tool,
// prompt and resource registered.
//
// The returned cleanup function drains the request queue and closes the
// snapshot store. It is always non-nil and safe to call even when New
// fails.
func New(cfg *config.Config, logger *zap.SugaredLogger) (*server.MCPServer, *Services, func(), error) {
	svc, err := NewServices(cfg, logger)
	if err != nil {
		return nil, nil, noop, err
	}
	return NewMCPServer(svc), svc, svc.Close, nil
}

// NewMCPServer registers the handlers backed by svc.
func NewMCPServer(svc *Services) *server.MCPServer {
	s := server.NewMCPServer(
		"workboard-mcp",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Board tools ---

	columnsTool := tools.NewBoardColumnsTool(svc.Resolver)
	s.AddTool(columnsTool.Definition(), columnsTool.Handle)

	itemsTool := tools.NewBoardItemsTool(svc.Resolver, svc.Boards)
	s.AddTool(itemsTool.Definition(), itemsTool.Handle)

	exportTool := tools.NewExportTool(svc.Resolver, svc.Boards, svc.Sheets)
	s.AddTool(exportTool.Definition(), exportTool.Handle)

	// --- Diagnostics ---

	statusTool := tools.NewMetadataStatusTool(svc.Metadata, svc.Queue)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	resyncTool := tools.NewResyncTool(svc.Metadata)
	s.AddTool(resyncTool.Definition(), resyncTool.Handle)

	// --- Prompts ---

	explorePrompt := prompts.NewExplorePrompt()
	s.AddPrompt(explorePrompt.Definition(), explorePrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Resources ---

	resourceHandler := resources.NewHandler(svc.Metadata, svc.Resolver)
	s.AddResource(resourceHandler.MetadataResource(), resourceHandler.HandleMetadata)
	s.AddResourceTemplate(resourceHandler.ColumnsTemplate(), resourceHandler.HandleColumns)

	return s
}

// noop is the cleanup returned when nothing was built.
func noop() {}

// serverInstructions tells the AI how to use the workboard tools.
func serverInstructions() string {
	return `You have access to workboard-mcp, a bridge to a work-management board API
with a spreadsheet export.

## Tools

- get_board_columns: the columns of a board (id, title, type). Served from a
  metadata cache; a cold or stale board is fetched once and cached.
- get_board_items: rows of a board, rendered with the board's own column
  titles. Pass column_ids to narrow the output.
- export_board_to_sheet: appends a board's rows to a spreadsheet. Writes go
  through a rate-limited queue, so large exports take a while. Do not call
  it twice for the same rows: appends are not idempotent.
- metadata_status: what the cache holds and how busy the export queue is.
- resync_metadata: refreshes every known board at once. Use it after the user
  says they changed a board's columns.

## Workflow

1. Start with get_board_columns so you know the column ids and titles.
2. Read rows with get_board_items, narrowing to the columns you need.
3. Export only when the user asks for it, and confirm the spreadsheet id first.

## Errors

- "does not exist or is not visible to this token": the board id is wrong.
  Ask the user for the correct id; do not retry.
- "spreadsheet export is not configured": the service identity is missing.
  Tell the user which setting is missing; retrying will not help.
- "retry later": the API rejected the request (usually rate limiting). Wait
  a little, then retry once.`
}
