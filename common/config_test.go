package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv 清空会影响 LoadConfig 的环境变量
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GENAI_API_KEY", "API_KEY", "GENAI_BASE_URL", "GENAI_MODEL_NAME",
		"SERVER_MODE", "SERVER_ADDRESS", "SERVER_PORT", "SESSION_TTL_MINUTES",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_OUTPUT", "LOG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		clearEnv(t)

		_, err := LoadConfig()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfigurationMissing)
	})

	t.Run("defaults", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GENAI_API_KEY", "test-key")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "test-key", cfg.GenAIAPIKey)
		assert.Equal(t, DefaultModelName, cfg.GenAIModelName)
		assert.Equal(t, ServerModeHTTP, cfg.ServerMode)
		assert.Equal(t, "0.0.0.0:8080", cfg.GetServerAddr())
		assert.Equal(t, time.Hour, cfg.SessionTTL)
		assert.Equal(t, "stdout", cfg.LogOutput)
	})

	t.Run("API_KEY fallback", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("API_KEY", "legacy-key")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "legacy-key", cfg.GenAIAPIKey)
	})

	t.Run("GENAI_API_KEY wins over API_KEY", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("API_KEY", "legacy-key")
		t.Setenv("GENAI_API_KEY", "primary-key")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "primary-key", cfg.GenAIAPIKey)
	})

	t.Run("stdio mode moves logs to stderr", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GENAI_API_KEY", "test-key")
		t.Setenv("SERVER_MODE", "STDIO")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, ServerModeStdio, cfg.ServerMode)
		assert.Equal(t, "stderr", cfg.LogOutput)
	})

	t.Run("unsupported mode", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GENAI_API_KEY", "test-key")
		t.Setenv("SERVER_MODE", "grpc")

		_, err := LoadConfig()
		assert.ErrorContains(t, err, "unsupported SERVER_MODE")
	})

	t.Run("non-positive session ttl", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GENAI_API_KEY", "test-key")
		t.Setenv("SESSION_TTL_MINUTES", "0")

		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("invalid ttl falls back to default", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GENAI_API_KEY", "test-key")
		t.Setenv("SESSION_TTL_MINUTES", "soon")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, time.Hour, cfg.SessionTTL)
	})
}
