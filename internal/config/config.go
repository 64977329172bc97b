package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main converse configuration
type Config struct {
	// AI provider profiles
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Chat defaults
	Chat ChatConfig `json:"chat" mapstructure:"chat"`

	// History retention
	History HistoryConfig `json:"history" mapstructure:"history"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	Profiles []AIProfile `json:"profiles" mapstructure:"profiles"`
}

// AIProfile represents an AI provider profile
type AIProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

// ChatConfig holds chat session defaults
type ChatConfig struct {
	Model           string  `json:"model" mapstructure:"model"`
	SystemPrompt    string  `json:"system_prompt" mapstructure:"system_prompt"`
	Temperature     float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens       int     `json:"max_tokens" mapstructure:"max_tokens"`
	MaxContextTurns int     `json:"max_context_turns" mapstructure:"max_context_turns"`
	TimeoutSeconds  int     `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// HistoryConfig holds transcript history settings
type HistoryConfig struct {
	Dir      string `json:"dir" mapstructure:"dir"`
	MaxAge   int    `json:"max_age" mapstructure:"max_age"` // days
	MaxTurns int    `json:"max_turns" mapstructure:"max_turns"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		AI: AIConfig{
			Profiles: []AIProfile{},
		},
		Chat: ChatConfig{
			Model:           "claude-sonnet-4",
			Temperature:     0.7,
			MaxTokens:       4096,
			MaxContextTurns: 0,
			TimeoutSeconds:  120,
		},
		History: HistoryConfig{
			MaxAge:   7,
			MaxTurns: 500,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.AI.Profiles) == 0 {
		return fmt.Errorf("no AI credentials configured: at least one AI profile is required")
	}

	for i, profile := range c.AI.Profiles {
		if profile.ID == "" {
			return fmt.Errorf("AI profile %d: ID is required", i)
		}
		if profile.Provider == "" {
			return fmt.Errorf("AI profile %s: provider is required", profile.ID)
		}
		if profile.APIKey == "" {
			return fmt.Errorf("AI profile %s: api_key is required", profile.ID)
		}
		if profile.Provider != "anthropic" && profile.Provider != "openai" {
			return fmt.Errorf("AI profile %s: invalid provider %s (must be: anthropic, openai)", profile.ID, profile.Provider)
		}
	}

	// Field-level rules (key formats, model, ranges) live in Validator.
	if errs := NewValidator().ValidateConfig(c); len(errs) > 0 {
		return errs[0]
	}

	return nil
}

// DefaultProfile returns the highest-priority AI profile.
func (c *Config) DefaultProfile() (AIProfile, error) {
	if len(c.AI.Profiles) == 0 {
		return AIProfile{}, fmt.Errorf("no AI profiles configured")
	}

	best := c.AI.Profiles[0]
	for _, profile := range c.AI.Profiles[1:] {
		if profile.Priority > best.Priority {
			best = profile
		}
	}
	return best, nil
}
