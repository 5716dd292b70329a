package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the workboard-status MCP prompt.
// It instructs the AI to report on the metadata cache.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("workboard-status",
		mcp.WithPromptDescription(
			"Check the health of the board metadata cache: "+
				"known boards, staleness, and the export queue.",
		),
	)
}

// Handle processes the workboard-status prompt request.
func (p *StatusPrompt) Handle(_ context.Context, _ mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Workboard Metadata Status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `metadata_status` to check the board metadata cache.\n\n" +
						"Then:\n" +
						"1. List the known boards with their column counts\n" +
						"2. Flag boards whose sync time is older than the last full sync\n" +
						"3. If the cache is empty or the last full sync is missing, offer to run `resync_metadata`\n" +
						"4. If the export queue has pending work, say how much",
				),
			},
		},
	}, nil
}
