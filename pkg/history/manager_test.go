package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirel/converse/pkg/transcript"
)

func setupTestManager(t *testing.T) (*Manager, string) {
	tempDir := t.TempDir()
	m, err := New(tempDir)
	require.NoError(t, err)
	return m, tempDir
}

func TestManager_ValidateSessionID(t *testing.T) {
	m, _ := setupTestManager(t)
	defer m.Close()

	tests := []struct {
		name      string
		id        string
		shouldErr bool
	}{
		{"valid id", "test-session", false},
		{"empty id", "", true},
		{"path traversal", "../etc/passwd", true},
		{"forward slash", "test/session", true},
		{"backslash", "test\\session", true},
		{"null byte", "test\x00session", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.validateSessionID(tt.id)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestManager_AppendAndLoad(t *testing.T) {
	m, _ := setupTestManager(t)
	defer m.Close()

	turns := []transcript.Turn{
		transcript.NewTurn(transcript.RoleUser, "Hi"),
		transcript.NewTurn(transcript.RoleAssistant, "Hello"),
		transcript.NewTurn(transcript.RoleUser, "How are you?"),
	}

	for _, turn := range turns {
		require.NoError(t, m.Append("test-session", turn))
	}

	loaded, err := m.Load("test-session")
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	for i, turn := range loaded {
		assert.Equal(t, turns[i].Role, turn.Role)
		assert.Equal(t, turns[i].Content, turn.Content)
	}
}

func TestManager_AppendValidation(t *testing.T) {
	m, _ := setupTestManager(t)
	defer m.Close()

	err := m.Append("test-session", transcript.Turn{Role: transcript.RoleUser})
	assert.Error(t, err)

	err = m.Append("test-session", transcript.Turn{Role: "tool", Content: "x"})
	assert.Error(t, err)
}

func TestManager_LoadNonExistent(t *testing.T) {
	m, _ := setupTestManager(t)
	defer m.Close()

	turns, err := m.Load("non-existent")
	assert.NoError(t, err)
	assert.Empty(t, turns)
}

func TestManager_Delete(t *testing.T) {
	m, _ := setupTestManager(t)
	defer m.Close()

	require.NoError(t, m.Append("test-session", transcript.NewTurn(transcript.RoleUser, "Hi")))
	require.NoError(t, m.Delete("test-session"))

	_, err := os.Stat(m.transcriptPath("test-session"))
	assert.True(t, os.IsNotExist(err))
}

func TestManager_List(t *testing.T) {
	m, _ := setupTestManager(t)
	defer m.Close()

	ids := []string{"session1", "session2", "session3"}
	for _, id := range ids {
		require.NoError(t, m.Append(id, transcript.NewTurn(transcript.RoleUser, "Hi")))
	}

	list, err := m.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, list)
}

func TestManager_Repair(t *testing.T) {
	m, tempDir := setupTestManager(t)
	defer m.Close()

	path := filepath.Join(tempDir, "test-session.jsonl")
	content := `{"sessionId":"test-session","turn":{"role":"user","content":"Valid 1","timestamp":"2026-01-01T00:00:00Z"}}
invalid json line
{"sessionId":"test-session","turn":{"role":"assistant","content":"Valid 2","timestamp":"2026-01-01T00:00:01Z"}}
{"invalid":"record"}
{"sessionId":"test-session","turn":{"role":"user","content":"Valid 3","timestamp":"2026-01-01T00:00:02Z"}}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	require.NoError(t, m.Repair("test-session"))

	turns, err := m.Load("test-session")
	require.NoError(t, err)
	assert.Len(t, turns, 3)

	// Repaired file should contain exactly the valid lines.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "invalid json line")
}

func TestManager_Replace(t *testing.T) {
	m, _ := setupTestManager(t)
	defer m.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Append("test-session", transcript.NewTurn(transcript.RoleUser, "msg")))
	}

	replacement := []transcript.Turn{
		transcript.NewTurn(transcript.RoleUser, "only"),
	}
	require.NoError(t, m.Replace("test-session", replacement))

	turns, err := m.Load("test-session")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "only", turns[0].Content)
}

func TestManager_GetInfo(t *testing.T) {
	m, _ := setupTestManager(t)
	defer m.Close()

	for i := 0; i < 4; i++ {
		require.NoError(t, m.Append("test-session", transcript.NewTurn(transcript.RoleUser, "msg")))
	}

	info, err := m.GetInfo("test-session")
	require.NoError(t, err)
	assert.Equal(t, "test-session", info.SessionID)
	assert.Equal(t, 4, info.TurnCount)
	assert.Greater(t, info.Size, int64(0))

	_, err = m.GetInfo("missing")
	assert.Error(t, err)
}

func TestManager_ConcurrentAppends(t *testing.T) {
	m, _ := setupTestManager(t)
	defer m.Close()

	const numGoroutines = 10
	const turnsPerGoroutine = 10

	done := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			for j := 0; j < turnsPerGoroutine; j++ {
				err := m.Append("concurrent-session", transcript.NewTurn(transcript.RoleUser, "concurrent"))
				assert.NoError(t, err)
			}
			done <- true
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	turns, err := m.Load("concurrent-session")
	require.NoError(t, err)
	assert.Len(t, turns, numGoroutines*turnsPerGoroutine)
}
