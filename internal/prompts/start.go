// Package prompts implements MCP prompt handlers for the workboard server.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// ExplorePrompt handles the workboard-explore MCP prompt.
// It walks the AI through a board's schema and items.
type ExplorePrompt struct{}

// NewExplorePrompt creates an ExplorePrompt.
func NewExplorePrompt() *ExplorePrompt {
	return &ExplorePrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ExplorePrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("workboard-explore",
		mcp.WithPromptDescription(
			"Explore a board: list its columns, then summarize its items. "+
				"Optionally export them to a spreadsheet.",
		),
		mcp.WithArgument("board_id",
			mcp.ArgumentDescription("The board to explore"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("spreadsheet_id",
			mcp.ArgumentDescription("Spreadsheet to export to. Leave empty to skip the export."),
		),
	)
}

// Handle processes the workboard-explore prompt request.
func (p *ExplorePrompt) Handle(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := req.Params.Arguments
	boardID := args["board_id"]
	if boardID == "" {
		return nil, fmt.Errorf("board_id is required")
	}

	text := fmt.Sprintf(
		"Please explore board %s.\n\n"+
			"1. Call `get_board_columns` with board_id=%q and show the columns grouped by type\n"+
			"2. Call `get_board_items` for the same board and summarize the items by status\n"+
			"3. Point out empty columns or items missing key values\n",
		boardID, boardID)
	if sheet := args["spreadsheet_id"]; sheet != "" {
		text += fmt.Sprintf(
			"4. Finally call `export_board_to_sheet` with spreadsheet_id=%q and report what was written\n", sheet)
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Explore board %s", boardID),
		Messages: []mcp.PromptMessage{
			{Role: mcp.RoleUser, Content: mcp.NewTextContent(text)},
		},
	}, nil
}
