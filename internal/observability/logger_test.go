// internal/observability/logger_test.go
package observability

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/marketcheck/internal/config"
)

func TestInitialize(t *testing.T) {
	t.Cleanup(ResetForTest)

	t.Run("console logger colorizes levels", func(t *testing.T) {
		ResetForTest()
		buf := &zaptest.Buffer{}

		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "marketcheck",
			Colors:      config.ColorConfig{Info: "green"},
		}, buf)
		GetLogger().Named("workflow").Info("Collected products.", zap.Int("count", 3))
		Sync()

		out := buf.String()
		assert.Contains(t, out, colorMap["green"]+"INFO"+colorReset)
		assert.Contains(t, out, "marketcheck.workflow.")
		assert.Contains(t, out, "Collected products.")
		assert.Contains(t, out, `"count": 3`)
	})

	t.Run("unknown colors fall back to plain labels", func(t *testing.T) {
		ResetForTest()
		buf := &zaptest.Buffer{}

		Initialize(config.LoggerConfig{Level: "info", Format: "console", Colors: config.ColorConfig{Warn: "mauve"}}, buf)
		GetLogger().Warn("careful")

		assert.Contains(t, buf.String(), "\tWARN\t")
		assert.NotContains(t, buf.String(), colorReset)
	})

	t.Run("json logger", func(t *testing.T) {
		ResetForTest()
		buf := &zaptest.Buffer{}

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}, buf)
		GetLogger().Warn("Screenshot capture failed.", zap.String("label", "Action: click"))

		lines := buf.Lines()
		require.Len(t, lines, 1)
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "Screenshot capture failed.", entry["msg"])
		assert.Equal(t, "Action: click", entry["label"])
	})

	t.Run("level filtering", func(t *testing.T) {
		ResetForTest()
		buf := &zaptest.Buffer{}

		Initialize(config.LoggerConfig{Level: "warn", Format: "json"}, buf)
		GetLogger().Info("hidden")
		GetLogger().Error("shown")

		lines := buf.Lines()
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], "shown")
	})

	t.Run("invalid level defaults to info", func(t *testing.T) {
		ResetForTest()
		buf := &zaptest.Buffer{}

		Initialize(config.LoggerConfig{Level: "chatty", Format: "json"}, buf)
		GetLogger().Debug("hidden")
		GetLogger().Info("shown")

		assert.Len(t, buf.Lines(), 1)
	})

	t.Run("log file receives json entries", func(t *testing.T) {
		ResetForTest()
		logFile := filepath.Join(t.TempDir(), "marketcheck.log")

		Initialize(config.LoggerConfig{
			Level:   "debug",
			Format:  "console",
			LogFile: logFile,
			MaxSize: 1,
		}, &zaptest.Buffer{})
		GetLogger().Error("Case failed.", zap.String("case", "laptops"))
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(content, &entry))
		assert.Equal(t, "Case failed.", entry["msg"])
		assert.Equal(t, "laptops", entry["case"])
	})

	t.Run("only the first initialization applies", func(t *testing.T) {
		ResetForTest()
		first := &zaptest.Buffer{}
		second := &zaptest.Buffer{}

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "First"}, first)
		l1 := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "Second"}, second)
		l2 := GetLogger()

		assert.Same(t, l1, l2)
		l2.Info("test")
		assert.Contains(t, first.String(), `"logger":"First"`)
		assert.Empty(t, second.String())
	})
}

func TestGetLogger(t *testing.T) {
	t.Cleanup(ResetForTest)

	t.Run("fallback before initialization", func(t *testing.T) {
		ResetForTest()
		logger := GetLogger()
		require.NotNil(t, logger)
		assert.Nil(t, globalLogger.Load())
	})

	t.Run("global logger after initialization", func(t *testing.T) {
		ResetForTest()
		Initialize(config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"}, &zaptest.Buffer{})
		assert.Same(t, globalLogger.Load(), GetLogger())
	})
}
