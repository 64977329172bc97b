package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.AI.Profiles = []AIProfile{
		{ID: "main", Provider: "anthropic", APIKey: "sk-ant-test"},
	}
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "claude-sonnet-4", cfg.Chat.Model)
	assert.Equal(t, 0.7, cfg.Chat.Temperature)
	assert.Equal(t, 4096, cfg.Chat.MaxTokens)
	assert.Equal(t, 0, cfg.Chat.MaxContextTurns)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.AI.Profiles)
}

func TestValidate_RequiresProfile(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no AI credentials")
}

func TestValidate_ProfileFields(t *testing.T) {
	tests := []struct {
		name    string
		profile AIProfile
		wantErr string
	}{
		{
			name:    "missing id",
			profile: AIProfile{Provider: "anthropic", APIKey: "sk-ant-x"},
			wantErr: "ID is required",
		},
		{
			name:    "missing provider",
			profile: AIProfile{ID: "p", APIKey: "sk-ant-x"},
			wantErr: "provider is required",
		},
		{
			name:    "missing key",
			profile: AIProfile{ID: "p", Provider: "anthropic"},
			wantErr: "api_key is required",
		},
		{
			name:    "unknown provider",
			profile: AIProfile{ID: "p", Provider: "gemini", APIKey: "x"},
			wantErr: "invalid provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.AI.Profiles = []AIProfile{tt.profile}
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_NegativeContextWindow(t *testing.T) {
	cfg := validConfig()
	cfg.Chat.MaxContextTurns = -1
	assert.Error(t, cfg.Validate())
}

func TestValidate_EnforcesFieldRules(t *testing.T) {
	cfg := validConfig()
	cfg.AI.Profiles[0].APIKey = "wrong-prefix"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key format")

	cfg = validConfig()
	cfg.Chat.Temperature = 2.0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Logging.Level = "loud"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Chat.Model = ""
	assert.Error(t, cfg.Validate())
}

func TestDefaultProfile_HighestPriorityWins(t *testing.T) {
	cfg := validConfig()
	cfg.AI.Profiles = []AIProfile{
		{ID: "backup", Provider: "openai", APIKey: "sk-x", Priority: 1},
		{ID: "main", Provider: "anthropic", APIKey: "sk-ant-x", Priority: 10},
	}

	profile, err := cfg.DefaultProfile()
	require.NoError(t, err)
	assert.Equal(t, "main", profile.ID)
}

func TestDefaultProfile_NoProfiles(t *testing.T) {
	cfg := DefaultConfig()
	_, err := cfg.DefaultProfile()
	assert.Error(t, err)
}
