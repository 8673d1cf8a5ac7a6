package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredLogger(t *testing.T) {
	t.Run("creates JSON logger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)

		logger.Info("tick written",
			slog.String("component", "simulator"),
			slog.Int("vehicles", 42))

		output := buf.String()
		assert.Contains(t, output, `"level":"INFO"`)
		assert.Contains(t, output, `"msg":"tick written"`)
		assert.Contains(t, output, `"component":"simulator"`)
		assert.Contains(t, output, `"vehicles":42`)
		assert.Contains(t, output, `"time":`)
	})

	t.Run("respects log level configuration", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelWarn)

		logger.Debug("debug message")
		logger.Info("info message")
		logger.Warn("warning message")

		output := buf.String()
		assert.NotContains(t, output, "debug message")
		assert.NotContains(t, output, "info message")
		assert.Contains(t, output, "warning message")
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestLoggerHelpers(t *testing.T) {
	t.Run("LogError creates structured error log", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)

		LogError(logger, "failed to read snapshot", assert.AnError,
			slog.String("path", "live-telemetry"))

		output := buf.String()
		assert.Contains(t, output, `"level":"ERROR"`)
		assert.Contains(t, output, `"error":"assert.AnError general error for testing"`)
		assert.Contains(t, output, `"path":"live-telemetry"`)
	})

	t.Run("LogWriteFailure marks the write as not retried", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)

		LogWriteFailure(logger, "live-telemetry", assert.AnError)

		output := buf.String()
		assert.Contains(t, output, `"msg":"store write failed"`)
		assert.Contains(t, output, `"path":"live-telemetry"`)
		assert.Contains(t, output, `"retried":false`)
	})

	t.Run("LogOperation skips zero durations", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)

		LogOperation(logger, "fleet_generated",
			slog.Int("vehicles", 12),
			slog.Duration("duration", 0))

		output := buf.String()
		assert.Contains(t, output, `"msg":"fleet_generated"`)
		assert.Contains(t, output, `"vehicles":12`)
		assert.NotContains(t, output, `"duration"`)
	})

	t.Run("LogHTTPRequest logs request details", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)

		LogHTTPRequest(logger, "GET", "/api/vehicles.json", 200, 1.5,
			slog.String("user_agent", "test-client"))

		output := buf.String()
		assert.Contains(t, output, `"msg":"http_request"`)
		assert.Contains(t, output, `"path":"/api/vehicles.json"`)
		assert.Contains(t, output, `"status":200`)
		assert.Contains(t, output, `"duration_ms":1.5`)
	})

	t.Run("nil loggers are ignored", func(t *testing.T) {
		LogError(nil, "ignored", assert.AnError)
		LogOperation(nil, "ignored")
		LogHTTPRequest(nil, "GET", "/", 200, 0)
	})
}

func TestContextLogger(t *testing.T) {
	t.Run("stores and retrieves logger from context", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)

		ctx := WithLogger(context.Background(), logger)
		retrieved := FromContext(ctx)
		require.NotNil(t, retrieved)

		retrieved.Info("from context")
		assert.Contains(t, buf.String(), "from context")
	})

	t.Run("returns default logger when not in context", func(t *testing.T) {
		logger := FromContext(context.Background())
		require.NotNil(t, logger)
	})

	t.Run("Component tags the logger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := Component(NewStructuredLogger(&buf, slog.LevelInfo), "live_feed")
		logger.Info("snapshot")
		assert.Contains(t, buf.String(), `"component":"live_feed"`)

		assert.NotNil(t, Component(nil, "x"))
	})
}
