// File: internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dkwon-dev/ezvoucher/internal/config"
)

// testWriter adapts a bytes.Buffer into a zapcore.WriteSyncer so tests can
// capture console output without touching os.Stdout.
type testWriter struct {
	buf bytes.Buffer
}

func (w *testWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *testWriter) Sync() error                 { return nil }

func TestInitialize(t *testing.T) {

	t.Run("console format contains level and message", func(t *testing.T) {
		ResetForTest()
		w := &testWriter{}

		cfg := config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
		}
		Initialize(cfg, w)
		GetLogger().Info("This is a test message.")

		output := w.buf.String()
		assert.Contains(t, output, "INFO", "Output should contain the log level")
		assert.Contains(t, output, "This is a test message.")
		assert.Contains(t, output, "TestService")
	})

	t.Run("json format emits valid JSON with fields", func(t *testing.T) {
		ResetForTest()
		w := &testWriter{}

		cfg := config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "JSONTest",
		}
		Initialize(cfg, w)
		GetLogger().Warn("This is a JSON message.", zap.String("key", "value"))

		var logEntry map[string]interface{}
		err := json.Unmarshal(w.buf.Bytes(), &logEntry)
		require.NoError(t, err, "Log output should be valid JSON")

		assert.Equal(t, "WARN", logEntry["level"])
		assert.Equal(t, "JSONTest", logEntry["logger"])
		assert.Equal(t, "This is a JSON message.", logEntry["msg"])
		assert.Equal(t, "value", logEntry["key"])
	})

	t.Run("writes to the rotating log file when configured", func(t *testing.T) {
		ResetForTest()
		logFile := filepath.Join(t.TempDir(), "test.log")

		cfg := config.LoggerConfig{
			Level:   "debug",
			Format:  "json",
			LogFile: logFile,
			MaxSize: 1, // 1 MB
		}
		Initialize(cfg, zapcore.AddSync(&testWriter{}))
		GetLogger().Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "This should go to the file.")
	})

	t.Run("only initializes once", func(t *testing.T) {
		ResetForTest()
		w := &testWriter{}

		Initialize(config.LoggerConfig{Level: "info", ServiceName: "First"}, w)
		logger1 := GetLogger()

		// The second call must be a no-op.
		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, w)
		logger2 := GetLogger()

		assert.Equal(t, logger1, logger2)
		logger2.Info("test")

		assert.True(t, strings.Contains(w.buf.String(), "First"))
		assert.False(t, strings.Contains(w.buf.String(), "Second"))
	})

	t.Run("falls back to info on a bad level", func(t *testing.T) {
		ResetForTest()
		w := &testWriter{}

		Initialize(config.LoggerConfig{Level: "not-a-level", Format: "json"}, w)
		GetLogger().Debug("should be suppressed")
		GetLogger().Info("should appear")

		output := w.buf.String()
		assert.NotContains(t, output, "should be suppressed")
		assert.Contains(t, output, "should appear")
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("returns a fallback logger before initialization", func(t *testing.T) {
		ResetForTest()
		logger := GetLogger()
		require.NotNil(t, logger)
	})

	t.Run("returns the global logger after initialization", func(t *testing.T) {
		ResetForTest()
		Initialize(config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"}, zapcore.AddSync(&testWriter{}))

		logger := GetLogger()
		assert.Equal(t, globalLogger.Load(), logger)
	})
}
