package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirel/converse/internal/config"
	"github.com/amirel/converse/pkg/history"
	"github.com/amirel/converse/pkg/transcript"
)

func writeTestConfig(t *testing.T, dataDir, historyDir string, maxTurns int) string {
	t.Helper()
	configPath := filepath.Join(dataDir, "converse.json")
	content := fmt.Sprintf(
		`{"history": {"dir": %q, "max_age": 7, "max_turns": %d}, "data_dir": %q}`,
		historyDir, maxTurns, dataDir,
	)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))
	return configPath
}

func TestSessionsCleanupCommand_PrunesTranscripts(t *testing.T) {
	dataDir := t.TempDir()
	historyDir := filepath.Join(dataDir, "history")

	hist, err := history.New(historyDir)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		require.NoError(t, hist.Append("long-session", transcript.NewTurn(transcript.RoleUser, "msg")))
	}
	require.NoError(t, hist.Close())

	configPath := writeTestConfig(t, dataDir, historyDir, 2)

	cmd := GetRootCmd()
	cmd.SetArgs([]string{"sessions", "cleanup", "--config", configPath})

	output := &bytes.Buffer{}
	cmd.SetOut(output)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, output.String(), "Cleanup complete")

	reopened, err := history.New(historyDir)
	require.NoError(t, err)
	defer reopened.Close()

	turns, err := reopened.Load("long-session")
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestNewCleanup_FromRetentionConfig(t *testing.T) {
	hist, err := history.New(filepath.Join(t.TempDir(), "history"))
	require.NoError(t, err)
	defer hist.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, hist.Append("sess", transcript.NewTurn(transcript.RoleUser, "msg")))
	}

	cleanup := newCleanup(hist, config.HistoryConfig{MaxAge: 7, MaxTurns: 3})
	require.NoError(t, cleanup.CleanupNow())

	turns, err := hist.Load("sess")
	require.NoError(t, err)
	assert.Len(t, turns, 3)

	// A fresh transcript inside the retention window survives.
	list, err := hist.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"sess"}, list)
}
