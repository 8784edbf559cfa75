package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoad(t *testing.T) {
	path := writeFile(t, t.TempDir(), "relay.yaml", `
llm:
  provider: gemini
  model: gemini-2.5-flash
  api_key: secret
history:
  max_length: 12
  pruning_strategy: none
tools:
  allow_dry_run: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, 12, cfg.History.MaxLength)
	assert.Equal(t, "none", cfg.History.PruningStrategy)
	assert.False(t, cfg.Tools.AllowDryRun)

	// untouched keys keep their defaults
	assert.Equal(t, 10, cfg.Tools.MaxToolIterations)
	assert.Equal(t, 30, cfg.Tools.CommandTimeoutSeconds)
	assert.True(t, cfg.History.PrioritizeSystemMessages)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RELAY_LLM_MODEL", "llama3.1:8b")
	t.Setenv("RELAY_TOOLS_MAX_TOOL_ITERATIONS", "4")

	path := writeFile(t, t.TempDir(), "relay.yaml", "llm:\n  model: qwen2.5:7b\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "llama3.1:8b", cfg.LLM.Model)
	assert.Equal(t, 4, cfg.Tools.MaxToolIterations)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad provider", "llm:\n  provider: mystery\n", "llm.provider"},
		{"bad strategy", "history:\n  pruning_strategy: oldest\n", "history.pruning_strategy"},
		{"zero max length", "history:\n  max_length: 0\n", "history.max_length"},
		{"bad level", "logging:\n  level: loud\n", "logging.level"},
		{"negative temperature", "llm:\n  temperature: -1\n", "llm.temperature"},
		{"zero input length", "ui:\n  max_input_length: 0\n", "ui.max_input_length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "relay.yaml", tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadFromPaths(t *testing.T) {
	dir := t.TempDir()
	second := writeFile(t, dir, "relay.yaml", "llm:\n  model: second\n")

	cfg, err := LoadFromPaths(filepath.Join(dir, "relay.local.yaml"), second)
	require.NoError(t, err)
	assert.Equal(t, "second", cfg.LLM.Model)

	cfg, err = LoadFromPaths(filepath.Join(dir, "nothing.yaml"))
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "relay.yaml")

	cfg := DefaultConfig()
	cfg.LLM.Provider = "openai"
	cfg.LLM.Endpoint = "http://localhost:8000/v1"
	cfg.Personas.Default = "forge"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRedacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.APIKey = "secret"

	red := cfg.Redacted()
	assert.Equal(t, "********", red.LLM.APIKey)
	assert.Equal(t, "secret", cfg.LLM.APIKey)
}
