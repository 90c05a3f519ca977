package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 0.6, cfg.Intent.AcceptThreshold)
	assert.Equal(t, 0.8, cfg.Intent.HighConfidence)
	assert.Equal(t, 10*time.Second, cfg.Intent.ClassifyTimeout)
	assert.Equal(t, 30*time.Second, cfg.Intent.FallbackTimeout)
	assert.Equal(t, 5, cfg.Intent.HistorySize)
	assert.True(t, cfg.RateLimit.Enabled())
	assert.True(t, cfg.Knowledge.Enabled)
	assert.Equal(t, 3, cfg.Knowledge.TopK)
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("BIZDESK_TEST_KEY", "sk-test")

	cfg, err := Parse([]byte("dashscope:\n  apiKey: ${BIZDESK_TEST_KEY}\n  model: qwen-turbo\n"))
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.DashScope.APIKey)
	assert.Equal(t, "qwen-turbo", cfg.DashScope.Model)
	assert.True(t, cfg.LLMConfigured())
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"accept threshold above one", "intent:\n  acceptThreshold: 1.5\n"},
		{"negative high confidence", "intent:\n  highConfidence: -0.1\n"},
		{"zero classify timeout", "intent:\n  classifyTimeout: 0s\n"},
		{"empty database path", "database:\n  path: \"\"\n"},
		{"invalid server mode", "server:\n  mode: prod\n"},
		{"negative knowledge topK", "knowledge:\n  topK: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assistant.yaml")
	require.NoError(t, os.WriteFile(path, []byte("intent:\n  aiEnabled: false\n  classifyTimeout: 5s\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.False(t, cfg.Intent.AIEnabled)
	assert.Equal(t, 5*time.Second, cfg.Intent.ClassifyTimeout)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
