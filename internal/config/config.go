// Package config manages user configuration stored as JSON in the assistant
// config directory (~/.ankicli by default, override via ANKICLI_HOME).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// =============================================================================
// MODEL SPECS
// =============================================================================

// ModelSpec describes a usable Claude model.
type ModelSpec struct {
	Name            string `json:"name"`
	ContextWindow   int    `json:"context_window"`
	MaxOutputTokens int    `json:"max_output_tokens"`
}

// DefaultModel is used for both the main conversation and sub-agents until
// the user overrides it.
const DefaultModel = "claude-sonnet-4-20250514"

// ClaudeModels maps model IDs to their specs.
var ClaudeModels = map[string]ModelSpec{
	"claude-opus-4-6": {
		Name: "Claude Opus 4.6", ContextWindow: 200_000, MaxOutputTokens: 32_000,
	},
	"claude-sonnet-4-5-20250929": {
		Name: "Claude Sonnet 4.5", ContextWindow: 200_000, MaxOutputTokens: 16_384,
	},
	"claude-haiku-4-5-20251001": {
		Name: "Claude Haiku 4.5", ContextWindow: 200_000, MaxOutputTokens: 8_192,
	},
	"claude-sonnet-4-20250514": {
		Name: "Claude Sonnet 4", ContextWindow: 200_000, MaxOutputTokens: 16_384,
	},
}

// LookupModel returns the spec for a model ID, falling back to a generic
// 200k-window spec for unknown IDs so a new model name never breaks the
// context gauge.
func LookupModel(id string) ModelSpec {
	if spec, ok := ClaudeModels[id]; ok {
		return spec
	}
	return ModelSpec{Name: id, ContextWindow: 200_000, MaxOutputTokens: 8_192}
}

// ModelIDs returns the known model IDs in sorted order.
func ModelIDs() []string {
	ids := make([]string, 0, len(ClaudeModels))
	for id := range ClaudeModels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// =============================================================================
// USER CONFIG
// =============================================================================

// UserConfig is the persistent user configuration.
type UserConfig struct {
	// Models
	MainModel     string `json:"main_model"`
	SubagentModel string `json:"subagent_model"`

	// Delegate batch processing
	DelegateMaxWorkers      int `json:"delegate_max_workers"`
	DelegateRateLimitMillis int `json:"delegate_rate_limit_ms"`

	// Conversation
	AutoSave bool `json:"auto_save"`

	// External services
	AnkiConnectURL string `json:"anki_connect_url"`

	// Per-tool usage notes appended to tool descriptions for the model.
	ToolNotes map[string]string `json:"tool_notes,omitempty"`

	// Logging
	DebugMode bool `json:"debug_mode"`
}

// Default returns the configuration used when no file exists.
func Default() *UserConfig {
	return &UserConfig{
		MainModel:               DefaultModel,
		SubagentModel:           DefaultModel,
		DelegateMaxWorkers:      5,
		DelegateRateLimitMillis: 100,
		AutoSave:                true,
		AnkiConnectURL:          "http://localhost:8765",
		ToolNotes:               map[string]string{},
	}
}

// Dir returns the assistant config directory, creating it if needed.
func Dir() (string, error) {
	if dir := os.Getenv("ANKICLI_HOME"); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create config directory: %w", err)
		}
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".ankicli")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// Path returns the config file path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, "config.json")
}

// Load reads the config file from dir. A missing file yields defaults; a
// corrupt file is backed up to config.json.bak and replaced with defaults
// rather than failing startup.
func Load(dir string) (*UserConfig, error) {
	path := Path(dir)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		_ = os.WriteFile(path+".bak", data, 0o644)
		return Default(), nil
	}
	cfg.normalize()
	return cfg, nil
}

// Save writes the config atomically via a temp file rename.
func (c *UserConfig) Save(dir string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	path := Path(dir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

// normalize clamps or fills fields a hand-edited file may have broken.
func (c *UserConfig) normalize() {
	if c.MainModel == "" {
		c.MainModel = DefaultModel
	}
	if c.SubagentModel == "" {
		c.SubagentModel = DefaultModel
	}
	if c.DelegateMaxWorkers <= 0 {
		c.DelegateMaxWorkers = 5
	}
	if c.DelegateRateLimitMillis < 0 {
		c.DelegateRateLimitMillis = 100
	}
	if c.AnkiConnectURL == "" {
		c.AnkiConnectURL = "http://localhost:8765"
	}
	if c.ToolNotes == nil {
		c.ToolNotes = map[string]string{}
	}
}

// APIKey resolves the Anthropic API key from the environment.
func APIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}
