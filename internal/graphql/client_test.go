package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransport(t *testing.T, handler http.HandlerFunc) *HTTPTransport {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPTransport(Options{
		URL:        srv.URL,
		Token:      "api-token",
		APIVersion: "2024-10",
		HTTPClient: srv.Client(),
	})
}

func TestDo_Success(t *testing.T) {
	var gotBody requestBody
	var gotHeaders http.Header
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		_, _ = w.Write([]byte(`{"data":{"boards":[{"id":"B1","name":"Roadmap"}]}}`))
	})

	resp, err := tr.Do(context.Background(), "query { boards { id } }", map[string]any{"ids": []string{"B1"}})
	require.NoError(t, err)

	assert.Equal(t, "B1", resp.Get("boards.0.id").String())
	assert.Equal(t, "Roadmap", resp.Get("boards.0.name").String())
	assert.NotEmpty(t, resp.RequestID)

	assert.Equal(t, "query { boards { id } }", gotBody.Query)
	assert.Equal(t, []any{"B1"}, gotBody.Variables["ids"])
	assert.Equal(t, "api-token", gotHeaders.Get("Authorization"))
	assert.Equal(t, "2024-10", gotHeaders.Get("API-Version"))
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, resp.RequestID, gotHeaders.Get("X-Request-Id"))
}

func TestDo_GraphQLErrorsWithData(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"boards":[]},"errors":[{"message":"Field 'x' doesn't exist","extensions":{"code":"undefinedField"}}]}`))
	})

	_, err := tr.Do(context.Background(), "query { x }", nil)
	require.Error(t, err)

	var gqlErr *GraphQLError
	require.True(t, errors.As(err, &gqlErr))
	assert.Equal(t, []string{"Field 'x' doesn't exist"}, gqlErr.Messages)
	assert.True(t, gqlErr.HasCode("undefinedField"))
}

func TestDo_TopLevelErrorMessage(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error_code":"ComplexityException","error_message":"Complexity budget exhausted"}`))
	})

	_, err := tr.Do(context.Background(), "query { boards { id } }", nil)
	var gqlErr *GraphQLError
	require.True(t, errors.As(err, &gqlErr))
	assert.Contains(t, gqlErr.Error(), "Complexity budget exhausted")
	assert.True(t, gqlErr.HasCode("complexityexception"))
}

func TestDo_NonSuccessStatus(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error_message":"rate limited"}`))
	})

	_, err := tr.Do(context.Background(), "query { boards { id } }", nil)
	var trErr *TransportError
	require.True(t, errors.As(err, &trErr))
	assert.Equal(t, http.StatusTooManyRequests, trErr.StatusCode)
	assert.Contains(t, trErr.Body, "rate limited")

	var gqlErr *GraphQLError
	assert.False(t, errors.As(err, &gqlErr), "an HTTP failure is not a GraphQL error")
}

func TestDo_InvalidJSON(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	})

	_, err := tr.Do(context.Background(), "query { boards { id } }", nil)
	var trErr *TransportError
	require.True(t, errors.As(err, &trErr))
	assert.Contains(t, trErr.Error(), "not valid JSON")
}

func TestDo_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	tr := NewHTTPTransport(Options{URL: url, Timeout: time.Second})
	_, err := tr.Do(context.Background(), "query { boards { id } }", nil)

	var trErr *TransportError
	require.True(t, errors.As(err, &trErr))
	assert.Zero(t, trErr.StatusCode)
	assert.NotNil(t, trErr.Unwrap())
}

func TestDo_MissingURL(t *testing.T) {
	tr := NewHTTPTransport(Options{})
	_, err := tr.Do(context.Background(), "query { boards { id } }", nil)

	var trErr *TransportError
	require.True(t, errors.As(err, &trErr))
}

func TestDo_RateLimiterHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	t.Cleanup(srv.Close)

	tr := NewHTTPTransport(Options{URL: srv.URL, HTTPClient: srv.Client(), RequestsPerSecond: 0.001, Burst: 1})

	_, err := tr.Do(context.Background(), "query { me { id } }", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = tr.Do(ctx, "query { me { id } }", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait failed")
}
