package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4", cfg.Chat.Model)
	assert.NotEmpty(t, cfg.DataDir)
	assert.NotEmpty(t, cfg.History.Dir)
	assert.NotEmpty(t, cfg.Logging.File)
}

func TestLoad_FromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "converse.json")
	content := `{
		"ai": {
			"profiles": [
				{"id": "main", "provider": "anthropic", "api_key": "sk-ant-test"}
			]
		},
		"chat": {
			"model": "claude-opus-4",
			"max_context_turns": 20
		},
		"data_dir": "/tmp/converse-test"
	}`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "claude-opus-4", cfg.Chat.Model)
	assert.Equal(t, 20, cfg.Chat.MaxContextTurns)
	require.Len(t, cfg.AI.Profiles, 1)
	assert.Equal(t, "anthropic", cfg.AI.Profiles[0].Provider)

	// Unset fields keep defaults, paths derive from data_dir
	assert.Equal(t, 4096, cfg.Chat.MaxTokens)
	assert.Equal(t, filepath.Join("/tmp/converse-test", "history"), cfg.History.Dir)
	assert.Equal(t, filepath.Join("/tmp/converse-test", "converse.log"), cfg.Logging.File)
}

func TestLoad_MalformedFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "converse.json")
	require.NoError(t, os.WriteFile(configPath, []byte("{not json"), 0600))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "converse.json")

	cfg := DefaultConfig()
	cfg.AI.Profiles = []AIProfile{
		{ID: "main", Provider: "openai", APIKey: "sk-test", Priority: 5},
	}
	cfg.Chat.Model = "gpt-4-turbo"
	cfg.DataDir = "/tmp/converse-test"

	loader := NewLoader(configPath)
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4-turbo", loaded.Chat.Model)
	require.Len(t, loaded.AI.Profiles, 1)
	assert.Equal(t, "main", loaded.AI.Profiles[0].ID)
	assert.Equal(t, 5, loaded.AI.Profiles[0].Priority)
}

func TestGetConfigPath(t *testing.T) {
	loader := NewLoader("/explicit/path.json")
	assert.Equal(t, "/explicit/path.json", loader.GetConfigPath())

	defaulted := NewLoader("")
	assert.Contains(t, defaulted.GetConfigPath(), ".converse")
}
