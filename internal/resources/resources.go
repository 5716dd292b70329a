// Package resources implements MCP resource handlers for the workboard
// server.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (workboard://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/workboard-mcp/internal/metadata"
)

const (
	metadataURI        = "workboard://metadata"
	boardColumnsURITpl = "workboard://boards/{board_id}/columns"
)

// SnapshotSource is the metadata cache, read-only.
type SnapshotSource interface {
	Snapshot() metadata.Snapshot
}

// ColumnSource resolves one board's columns.
type ColumnSource interface {
	ResolveColumns(ctx context.Context, boardID string) ([]metadata.Column, error)
}

// Handler manages workboard resource endpoints.
type Handler struct {
	cache    SnapshotSource
	resolver ColumnSource
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(cache SnapshotSource, resolver ColumnSource) *Handler {
	return &Handler{cache: cache, resolver: resolver}
}

// MetadataResource returns the MCP resource definition for the cache snapshot.
func (h *Handler) MetadataResource() mcp.Resource {
	return mcp.NewResource(
		metadataURI,
		"Board Metadata Snapshot",
		mcp.WithResourceDescription("Every cached board with its columns and sync times"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleMetadata returns the current snapshot as JSON.
func (h *Handler) HandleMetadata(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonContents(req.Params.URI, h.cache.Snapshot())
}

// ColumnsTemplate returns the resource template for one board's columns.
func (h *Handler) ColumnsTemplate() mcp.ResourceTemplate {
	return mcp.NewResourceTemplate(
		boardColumnsURITpl,
		"Board Columns",
		mcp.WithTemplateDescription("Columns of one board, resolved through the metadata cache"),
		mcp.WithTemplateMIMEType("application/json"),
	)
}

// HandleColumns resolves the board named in the URI.
func (h *Handler) HandleColumns(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	boardID, ok := boardIDFromURI(req.Params.URI)
	if !ok {
		return errorResource(req.Params.URI, "expected "+boardColumnsURITpl), nil
	}
	cols, err := h.resolver.ResolveColumns(ctx, boardID)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonContents(req.Params.URI, cols)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
