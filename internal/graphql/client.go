// Package graphql is the transport to the work-management GraphQL API.
//
// Tools and the metadata cache depend on the Transport interface; the
// HTTPTransport here is the production implementation.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/time/rate"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 16 << 20

// Transport executes a GraphQL query or mutation.
type Transport interface {
	Do(ctx context.Context, query string, variables map[string]any) (*Response, error)
}

// Response is a successful GraphQL response. Data is the raw "data" member.
type Response struct {
	Data      json.RawMessage
	RequestID string
}

// Get runs a gjson path against the data member.
func (r *Response) Get(path string) gjson.Result {
	if r == nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(r.Data, path)
}

// Options configures an HTTPTransport.
type Options struct {
	URL        string
	Token      string
	APIVersion string
	Timeout    time.Duration
	// RequestsPerSecond enables a client-side token bucket. Zero disables it.
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
	Logger            *zap.SugaredLogger
}

// HTTPTransport posts GraphQL documents over HTTP.
type HTTPTransport struct {
	url        string
	token      string
	apiVersion string
	client     *http.Client
	limiter    *rate.Limiter
	logger     *zap.SugaredLogger
}

// NewHTTPTransport creates an HTTPTransport from opts.
func NewHTTPTransport(opts Options) *HTTPTransport {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = newHTTPClient(timeout, logger)
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &HTTPTransport{
		url:        strings.TrimSpace(opts.URL),
		token:      strings.TrimSpace(opts.Token),
		apiVersion: strings.TrimSpace(opts.APIVersion),
		client:     client,
		limiter:    limiter,
		logger:     logger,
	}
}

// newHTTPClient builds a client whose transport negotiates HTTP/2.
func newHTTPClient(timeout time.Duration, logger *zap.SugaredLogger) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if err := http2.ConfigureTransport(base); err != nil {
		logger.Debugw("http2 not configured, using default transport", "error", err)
	}
	return &http.Client{Timeout: timeout, Transport: base}
}

type requestBody struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Do posts query with variables. A non-2xx status yields *TransportError; a
// response carrying an "errors" member yields *GraphQLError.
func (t *HTTPTransport) Do(ctx context.Context, query string, variables map[string]any) (*Response, error) {
	if t.url == "" {
		return nil, &TransportError{Err: errors.New("api url is not configured")}
	}
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}
	}

	payload, err := json.Marshal(requestBody{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("encoding graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating graphql request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if t.token != "" {
		req.Header.Set("Authorization", t.token)
	}
	if t.apiVersion != "" {
		req.Header.Set("API-Version", t.apiVersion)
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.logger.Debugw("closing response body", "error", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}
	t.logger.Debugw("graphql request finished",
		"request_id", requestID, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if !gjson.ValidBytes(body) {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: errors.New("response is not valid JSON")}
	}

	if gqlErr := parseErrors(body); gqlErr != nil {
		return nil, gqlErr
	}

	return &Response{
		Data:      json.RawMessage(gjson.GetBytes(body, "data").Raw),
		RequestID: requestID,
	}, nil
}

// parseErrors collects the standard "errors" array plus the top-level
// error_message some endpoints return instead.
func parseErrors(body []byte) *GraphQLError {
	var gqlErr GraphQLError
	gjson.GetBytes(body, "errors").ForEach(func(_, entry gjson.Result) bool {
		gqlErr.Messages = append(gqlErr.Messages, entry.Get("message").String())
		if code := entry.Get("extensions.code").String(); code != "" {
			gqlErr.Codes = append(gqlErr.Codes, code)
		}
		return true
	})
	if msg := gjson.GetBytes(body, "error_message").String(); msg != "" {
		gqlErr.Messages = append(gqlErr.Messages, msg)
		if code := gjson.GetBytes(body, "error_code").String(); code != "" {
			gqlErr.Codes = append(gqlErr.Codes, code)
		}
	}
	if len(gqlErr.Messages) == 0 {
		return nil
	}
	return &gqlErr
}
