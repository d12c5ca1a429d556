package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("should create a console logger", func(t *testing.T) {
		logger, err := New(Config{Level: "info", Console: true})
		require.NoError(t, err)
		require.NotNil(t, logger)
		assert.NoError(t, logger.Close())
	})

	t.Run("should write to a file", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "circle.log")

		logger, err := New(Config{Level: "debug", File: logFile})
		require.NoError(t, err)

		l := logger.Component("relay")
		l.Info().Msg("relay started")
		require.NoError(t, logger.Close())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "relay started")
		assert.Contains(t, string(data), `"component":"relay"`)
	})

	t.Run("should redact API keys in the file", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "circle.log")

		logger, err := New(Config{Level: "info", File: logFile, Redaction: true})
		require.NoError(t, err)

		zl := logger.GetZerolog()
		zl.Info().Str("key", "sk-abcdefghijklmnopqrstuvwxyz123456").Msg("provider configured")
		require.NoError(t, logger.Close())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "sk-abcdefghijklmnopqrstuvwxyz123456")
		assert.Contains(t, string(data), "[REDACTED]")
	})

	t.Run("should keep redacted lines valid JSON", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "circle.log")

		logger, err := New(Config{Level: "info", File: logFile, Redaction: true})
		require.NoError(t, err)

		l := logger.Component("agent")
		l.Info().Str("api_key", "abc123").Msg("provider configured")
		require.NoError(t, logger.Close())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)

		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &line))
		assert.Equal(t, "[REDACTED]", line["api_key"])
		assert.Equal(t, "agent", line["component"])
		assert.Equal(t, "provider configured", line["message"])
	})

	t.Run("should fall back to info on a bad level", func(t *testing.T) {
		logger, err := New(Config{Level: "loud"})
		require.NoError(t, err)
		assert.Equal(t, zerolog.InfoLevel, logger.GetZerolog().GetLevel())
	})

	t.Run("should honour debug level", func(t *testing.T) {
		logger, err := New(Config{Level: "debug"})
		require.NoError(t, err)
		assert.Equal(t, zerolog.DebugLevel, logger.GetZerolog().GetLevel())
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Redaction)
}
