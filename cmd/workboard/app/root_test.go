package app

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/workboard-mcp/internal/server"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "workboard v"+server.Version+"\n", out)
}

func TestValidateCommand_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queue:\n  max_concurrency: 2\n"), 0o600))

	out, err := execute(t, "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration is valid")
}

func TestValidateCommand_RejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queue:\n  max_concurrency: 0\n"), 0o600))

	_, err := execute(t, "validate", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue.max_concurrency")
}

func TestStatusCommand_PrintsEmptySnapshot(t *testing.T) {
	t.Setenv("WORKBOARD_METADATA_SNAPSHOT_DSN", "memory://")

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, `"boardCount": 0`)
}

func TestRootCommand_ListsSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "resync", "status", "validate", "version"})
}
