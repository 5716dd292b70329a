// Package workboard reads boards, columns and items from the remote
// work-management API.
package workboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/workboard-mcp/internal/graphql"
	"github.com/HendryAvila/workboard-mcp/internal/metadata"
)

// API limits.
const (
	maxBoardsPerQuery = 50
	listPageSize      = 100
	maxItemsPerPage   = 500
	// fetchParallelism bounds concurrent chunk queries during a sync.
	fetchParallelism = 4
)

// notFoundCodes are the error codes the API uses for an unknown board.
var notFoundCodes = []string{"InvalidBoardIdException", "ResourceNotFoundException"}

// Item is one board row with the text of the requested columns.
type Item struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Values map[string]string `json:"values"`
}

// Client implements metadata.Fetcher over a graphql.Transport.
type Client struct {
	transport graphql.Transport
	logger    *zap.SugaredLogger
}

// New creates a Client. A nil logger discards output.
func New(transport graphql.Transport, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{transport: transport, logger: logger}
}

var _ metadata.Fetcher = (*Client)(nil)

// FetchBoard returns one board's metadata.
func (c *Client) FetchBoard(ctx context.Context, boardID string) (metadata.Board, error) {
	boards, err := c.fetchChunk(ctx, []string{boardID})
	if err != nil {
		var gqlErr *graphql.GraphQLError
		if errors.As(err, &gqlErr) && hasAnyCode(gqlErr, notFoundCodes) {
			return metadata.Board{}, &metadata.ResourceNotFoundError{BoardID: boardID}
		}
		return metadata.Board{}, fmt.Errorf("fetching board %s: %w", boardID, err)
	}
	for _, b := range boards {
		if b.ID == boardID {
			return b, nil
		}
	}
	return metadata.Board{}, &metadata.ResourceNotFoundError{BoardID: boardID}
}

// FetchBoards returns the boards in ids, in chunks queried concurrently.
// Ids the API does not return are left out. A nil ids lists every active
// board page by page.
func (c *Client) FetchBoards(ctx context.Context, ids []string) ([]metadata.Board, error) {
	if ids == nil {
		return c.listAll(ctx)
	}
	if len(ids) == 0 {
		return []metadata.Board{}, nil
	}

	var chunks [][]string
	for start := 0; start < len(ids); start += maxBoardsPerQuery {
		end := min(start+maxBoardsPerQuery, len(ids))
		chunks = append(chunks, ids[start:end])
	}

	results := make([][]metadata.Board, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchParallelism)
	for i, chunk := range chunks {
		g.Go(func() error {
			boards, err := c.fetchChunk(gctx, chunk)
			if err != nil {
				return fmt.Errorf("fetching boards: %w", err)
			}
			results[i] = boards
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []metadata.Board
	for _, boards := range results {
		out = append(out, boards...)
	}
	c.logger.Debugw("fetched board metadata", "requested", len(ids), "returned", len(out), "chunks", len(chunks))
	return out, nil
}

func (c *Client) fetchChunk(ctx context.Context, ids []string) ([]metadata.Board, error) {
	resp, err := c.transport.Do(ctx, boardsByIDQuery, map[string]any{
		"ids":   ids,
		"limit": len(ids),
	})
	if err != nil {
		return nil, err
	}
	return parseBoards(resp.Get("boards")), nil
}

func (c *Client) listAll(ctx context.Context) ([]metadata.Board, error) {
	var out []metadata.Board
	for page := 1; ; page++ {
		resp, err := c.transport.Do(ctx, listBoardsQuery, map[string]any{
			"limit": listPageSize,
			"page":  page,
		})
		if err != nil {
			return nil, fmt.Errorf("listing boards page %d: %w", page, err)
		}
		boards := parseBoards(resp.Get("boards"))
		out = append(out, boards...)
		if len(boards) < listPageSize {
			c.logger.Debugw("listed boards", "pages", page, "boards", len(out))
			return out, nil
		}
	}
}

func parseBoards(result gjson.Result) []metadata.Board {
	var boards []metadata.Board
	result.ForEach(func(_, b gjson.Result) bool {
		board := metadata.Board{
			ID:      b.Get("id").String(),
			Name:    b.Get("name").String(),
			Columns: []metadata.Column{},
		}
		b.Get("columns").ForEach(func(_, col gjson.Result) bool {
			board.Columns = append(board.Columns, metadata.Column{
				ID:    col.Get("id").String(),
				Title: col.Get("title").String(),
				Type:  col.Get("type").String(),
			})
			return true
		})
		boards = append(boards, board)
		return true
	})
	return boards
}

// FetchItems returns up to limit items of boardID with the text of the
// given columns, following the items cursor as needed.
func (c *Client) FetchItems(ctx context.Context, boardID string, columnIDs []string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 25
	}
	pageLimit := min(limit, maxItemsPerPage)

	resp, err := c.transport.Do(ctx, itemsQuery, map[string]any{
		"board":   []string{boardID},
		"limit":   pageLimit,
		"columns": columnIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching items of board %s: %w", boardID, err)
	}
	if len(resp.Get("boards").Array()) == 0 {
		return nil, &metadata.ResourceNotFoundError{BoardID: boardID}
	}

	page := resp.Get("boards.0.items_page")
	items := parseItems(page.Get("items"))
	cursor := page.Get("cursor").String()

	for len(items) < limit && cursor != "" {
		resp, err := c.transport.Do(ctx, nextItemsQuery, map[string]any{
			"cursor":  cursor,
			"limit":   min(limit-len(items), maxItemsPerPage),
			"columns": columnIDs,
		})
		if err != nil {
			return nil, fmt.Errorf("fetching next items page of board %s: %w", boardID, err)
		}
		page := resp.Get("next_items_page")
		items = append(items, parseItems(page.Get("items"))...)
		cursor = page.Get("cursor").String()
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func parseItems(result gjson.Result) []Item {
	items := []Item{}
	result.ForEach(func(_, it gjson.Result) bool {
		item := Item{
			ID:     it.Get("id").String(),
			Name:   it.Get("name").String(),
			Values: map[string]string{},
		}
		it.Get("column_values").ForEach(func(_, v gjson.Result) bool {
			item.Values[v.Get("id").String()] = v.Get("text").String()
			return true
		})
		items = append(items, item)
		return true
	})
	return items
}

func hasAnyCode(err *graphql.GraphQLError, codes []string) bool {
	for _, code := range codes {
		if err.HasCode(code) {
			return true
		}
	}
	return false
}
