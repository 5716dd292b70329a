// Package tools implements the MCP tool handlers of the workboard server.
//
// Each tool is a struct that receives its dependencies through its
// constructor and exposes Definition and Handle for registration with
// mcp-go. Domain failures are reported as tool errors, never as Go errors,
// so a failing call cannot take the server down.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/workboard-mcp/internal/credentials"
	"github.com/HendryAvila/workboard-mcp/internal/graphql"
	"github.com/HendryAvila/workboard-mcp/internal/metadata"
	"github.com/HendryAvila/workboard-mcp/internal/queue"
	"github.com/HendryAvila/workboard-mcp/internal/resolver"
)

// jsonResult renders v as an indented JSON text result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult turns a domain error into a tool error the host can show.
func errorResult(action string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %s", action, describeError(err)))
}

// describeError maps the error taxonomy to user facing text.
func describeError(err error) string {
	var (
		notFound  *metadata.ResourceNotFoundError
		schemaErr *resolver.SchemaResolutionError
		gqlErr    *graphql.GraphQLError
		trErr     *graphql.TransportError
		cfgErr    *credentials.ConfigurationError
		authErr   *credentials.AuthorizationError
		fetchErr  *credentials.TokenFetchError
	)
	switch {
	case errors.As(err, &notFound):
		return fmt.Sprintf("board %s does not exist or is not visible to this token", notFound.BoardID)
	case errors.As(err, &schemaErr):
		return fmt.Sprintf("board %s has no columns to query", schemaErr.BoardID)
	case errors.As(err, &cfgErr):
		return fmt.Sprintf("spreadsheet export is not configured (missing %s)", strings.Join(cfgErr.Missing, ", "))
	case errors.As(err, &authErr), errors.As(err, &fetchErr):
		return "could not obtain spreadsheet credentials: " + err.Error()
	case errors.As(err, &gqlErr):
		return "the API reported an error: " + strings.Join(gqlErr.Messages, "; ")
	case errors.As(err, &trErr):
		if trErr.StatusCode != 0 {
			return fmt.Sprintf("request failed with HTTP %d, retry later", trErr.StatusCode)
		}
		return "request failed: " + err.Error()
	case errors.Is(err, queue.ErrClosed):
		return "the server is shutting down"
	default:
		return err.Error()
	}
}

// boardIDArg reads and trims the required board_id argument.
func boardIDArg(req mcp.CallToolRequest) string {
	return strings.TrimSpace(req.GetString("board_id", ""))
}

// escapeCell makes s safe inside a markdown table cell.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// stringsArg extracts a string array argument. Non-string entries are
// skipped.
func stringsArg(req mcp.CallToolRequest, key string) []string {
	raw, ok := req.GetArguments()[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// stringItems is the items schema of a string array argument.
var stringItems = mcp.Items(map[string]any{"type": "string"})
