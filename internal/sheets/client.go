// Package sheets exports rows to a spreadsheet provider with a strict
// per-minute quota. Every call goes through the request queue and carries a
// bearer token from the credential cache.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/HendryAvila/workboard-mcp/internal/graphql"
	"github.com/HendryAvila/workboard-mcp/internal/queue"
)

// DefaultBaseURL is the spreadsheet API root.
const DefaultBaseURL = "https://sheets.googleapis.com"

// TokenProvider is the slice of the credential cache the client needs.
type TokenProvider interface {
	TokenSource(ctx context.Context) oauth2.TokenSource
	Invalidate()
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Base is the underlying round tripper. Nil uses http.DefaultTransport.
	Base   http.RoundTripper
	Logger *zap.SugaredLogger
}

// AppendResult reports what the provider wrote.
type AppendResult struct {
	UpdatedRange string `json:"updatedRange"`
	UpdatedRows  int    `json:"updatedRows"`
	UpdatedCells int    `json:"updatedCells"`
}

// Client appends values to spreadsheets.
type Client struct {
	baseURL string
	queue   *queue.Queue
	tokens  TokenProvider
	http    *http.Client
	logger  *zap.SugaredLogger
}

// New creates a Client that sends every request through q.
func New(q *queue.Queue, tokens TokenProvider, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		queue:   q,
		tokens:  tokens,
		http: &http.Client{
			Timeout: timeout,
			Transport: &oauth2.Transport{
				Source: tokens.TokenSource(context.Background()),
				Base:   opts.Base,
			},
		},
		logger: logger,
	}
}

// AppendRows appends rows after the last row of sheetRange. The call waits
// its turn in the queue; ctx bounds only the wait.
func (c *Client) AppendRows(ctx context.Context, spreadsheetID, sheetRange string, rows [][]string) (AppendResult, error) {
	if spreadsheetID == "" {
		return AppendResult{}, fmt.Errorf("spreadsheet id is required")
	}
	if sheetRange == "" {
		sheetRange = "Sheet1"
	}
	f := queue.Submit(ctx, c.queue, func(ctx context.Context) (AppendResult, error) {
		return c.appendRows(ctx, spreadsheetID, sheetRange, rows)
	})
	return f.Wait(ctx)
}

func (c *Client) appendRows(ctx context.Context, spreadsheetID, sheetRange string, rows [][]string) (AppendResult, error) {
	values := make([][]any, len(rows))
	for i, row := range rows {
		values[i] = make([]any, len(row))
		for j, cell := range row {
			values[i][j] = cell
		}
	}
	payload, err := json.Marshal(map[string]any{
		"range":          sheetRange,
		"majorDimension": "ROWS",
		"values":         values,
	})
	if err != nil {
		return AppendResult{}, fmt.Errorf("encoding rows: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s:append?%s",
		c.baseURL, url.PathEscape(spreadsheetID), url.PathEscape(sheetRange),
		url.Values{"valueInputOption": {"RAW"}, "insertDataOption": {"INSERT_ROWS"}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return AppendResult{}, fmt.Errorf("creating append request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return AppendResult{}, &graphql.TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return AppendResult{}, &graphql.TransportError{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// The provider rejected a token we still considered valid.
		c.tokens.Invalidate()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warnw("sheet append rejected", "spreadsheet_id", spreadsheetID, "status", resp.StatusCode)
		return AppendResult{}, &graphql.TransportError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	updates := gjson.GetBytes(body, "updates")
	res := AppendResult{
		UpdatedRange: updates.Get("updatedRange").String(),
		UpdatedRows:  int(updates.Get("updatedRows").Int()),
		UpdatedCells: int(updates.Get("updatedCells").Int()),
	}
	c.logger.Debugw("rows appended", "spreadsheet_id", spreadsheetID, "range", res.UpdatedRange, "rows", res.UpdatedRows)
	return res, nil
}
