package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv sets the env vars without which validation fails.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("VOXQUEUE_ENGINE_TRANSCRIBER_URL", "http://localhost:5000")
	t.Setenv("VOXQUEUE_ENGINE_LLM_BASE_URL", "http://localhost:8081/v1")
}

func TestLoad(t *testing.T) {
	t.Run("defaults apply when only required values are set", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "info", cfg.Server.LogLevel)
		assert.Equal(t, "redis://localhost:6379", cfg.Redis.URL)
		assert.Equal(t, "llama-3-8b", cfg.Engine.LLMModel)
		assert.Empty(t, cfg.Notify.WebhookURL)
	})

	t.Run("environment variables override defaults", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("VOXQUEUE_SERVER_PORT", "9090")
		t.Setenv("VOXQUEUE_SERVER_LOG_LEVEL", "debug")
		t.Setenv("VOXQUEUE_REDIS_URL", "redis://cache.internal:6379/2")
		t.Setenv("VOXQUEUE_ENGINE_LLM_MODEL", "qwen-7b")
		t.Setenv("VOXQUEUE_NOTIFY_WEBHOOK_URL", "https://hooks.example.com/tasks")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Server.LogLevel)
		assert.Equal(t, "redis://cache.internal:6379/2", cfg.Redis.URL)
		assert.Equal(t, "qwen-7b", cfg.Engine.LLMModel)
		assert.Equal(t, "https://hooks.example.com/tasks", cfg.Notify.WebhookURL)
	})

	t.Run("missing engine endpoints fail validation", func(t *testing.T) {
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
	})

	t.Run("invalid log level fails validation", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("VOXQUEUE_SERVER_LOG_LEVEL", "verbose")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
	})

	t.Run("invalid engine url fails validation", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("VOXQUEUE_ENGINE_TRANSCRIBER_URL", "not-a-url")

		_, err := Load()
		require.Error(t, err)
	})

	t.Run("queue intervals default to zero for the queue package to fill", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, time.Duration(0), cfg.Queue.IdleInterval)
		assert.Equal(t, time.Duration(0), cfg.Queue.BaseTimeout)
	})
}
