package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/HendryAvila/workboard-mcp/internal/config"
	"github.com/HendryAvila/workboard-mcp/internal/logging"
	"github.com/HendryAvila/workboard-mcp/internal/metadata"
	"github.com/HendryAvila/workboard-mcp/internal/snapshot"
)

const boardResponse = `{"data":{"boards":[{"id":"42","name":"Roadmap","columns":[
	{"id":"name","title":"Name","type":"name"},
	{"id":"status","title":"Status","type":"status"}]}]}}`

func newTestConfig(t *testing.T, apiURL string) *config.Config {
	t.Helper()
	cfg, err := config.Load(viper.New())
	require.NoError(t, err)
	cfg.API.URL = apiURL
	cfg.API.RequestsPerSecond = 0
	cfg.Metadata.SyncInterval = 0
	cfg.Metadata.SnapshotDSN = "memory://"
	cfg.Queue.MinInterval = time.Millisecond
	return cfg
}

func newBoardAPI(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(boardResponse))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func rpc(t *testing.T, svc *Services, id int, method string, params any) gjson.Result {
	t.Helper()
	s := NewMCPServer(svc)
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)

	resp := s.HandleMessage(context.Background(), msg)
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	return gjson.ParseBytes(data)
}

func TestNewMCPServer_RegistersTools(t *testing.T) {
	var calls atomic.Int32
	svc, err := NewServices(newTestConfig(t, newBoardAPI(t, &calls).URL), logging.Nop())
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	res := rpc(t, svc, 1, "tools/list", map[string]any{})
	var names []string
	for _, n := range res.Get("result.tools.#.name").Array() {
		names = append(names, n.String())
	}
	assert.ElementsMatch(t, []string{
		"get_board_columns",
		"get_board_items",
		"export_board_to_sheet",
		"metadata_status",
		"resync_metadata",
	}, names)

	prompts := rpc(t, svc, 2, "prompts/list", map[string]any{})
	assert.Len(t, prompts.Get("result.prompts").Array(), 2)

	templates := rpc(t, svc, 3, "resources/templates/list", map[string]any{})
	assert.Equal(t, "workboard://boards/{board_id}/columns",
		templates.Get("result.resourceTemplates.0.uriTemplate").String())
}

func TestGetBoardColumns_CachesAcrossCalls(t *testing.T) {
	var calls atomic.Int32
	svc, err := NewServices(newTestConfig(t, newBoardAPI(t, &calls).URL), logging.Nop())
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	params := map[string]any{"name": "get_board_columns", "arguments": map[string]any{"board_id": "42"}}
	for i := range 3 {
		res := rpc(t, svc, 10+i, "tools/call", params)
		assert.False(t, res.Get("result.isError").Bool())
		text := res.Get("result.content.0.text").String()
		assert.Contains(t, text, "| `status` | Status | status |")
	}
	assert.Equal(t, int32(1), calls.Load(), "columns should be fetched once")
	assert.Equal(t, []string{"42"}, svc.Metadata.Snapshot().BoardIDs())
}

func TestServices_StartRestoresSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.db")
	seed, err := snapshot.NewSQLiteStore(path)
	require.NoError(t, err)
	synced := time.Now().Add(-time.Minute).UTC()
	require.NoError(t, seed.Save(context.Background(), metadata.Snapshot{
		Boards: map[string]metadata.Board{
			"7": {ID: "7", Name: "Ops", Columns: []metadata.Column{{ID: "c1", Title: "Owner", Type: "people"}}, SyncedAt: synced},
		},
		LastFullSync: synced,
	}))
	require.NoError(t, seed.Close())

	var calls atomic.Int32
	cfg := newTestConfig(t, newBoardAPI(t, &calls).URL)
	cfg.Metadata.SnapshotDSN = path
	svc, err := NewServices(cfg, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, svc.Start(ctx))

	cols, err := svc.Resolver.ResolveColumns(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "Owner", cols[0].Title)
	assert.Zero(t, calls.Load(), "restored board should not be refetched")
}

func TestNewServices_InvalidSnapshotDSN(t *testing.T) {
	cfg := newTestConfig(t, "http://127.0.0.1:1")
	cfg.Metadata.SnapshotDSN = "ftp://example.com/meta"
	_, err := NewServices(cfg, nil)
	require.ErrorIs(t, err, snapshot.ErrUnsupportedScheme)
}

func TestNew_NilConfig(t *testing.T) {
	s, svc, cleanup, err := New(nil, nil)
	require.Error(t, err)
	assert.Nil(t, s)
	assert.Nil(t, svc)
	require.NotNil(t, cleanup)
	cleanup()
}

func TestServices_CloseIsIdempotent(t *testing.T) {
	svc, err := NewServices(newTestConfig(t, "http://127.0.0.1:1"), logging.Nop())
	require.NoError(t, err)
	svc.Close()
	svc.Close()
}

func TestServerInstructions_NameEveryTool(t *testing.T) {
	instructions := serverInstructions()
	for _, name := range []string{"get_board_columns", "get_board_items", "export_board_to_sheet", "metadata_status", "resync_metadata"} {
		assert.Contains(t, instructions, name, fmt.Sprintf("instructions should mention %s", name))
	}
}
