// cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/marketcheck/internal/config"
	"github.com/xkilldash9x/marketcheck/internal/observability"
)

// resetForTest silences the global logger and restores it when the test ends.
func resetForTest(t *testing.T) {
	t.Helper()
	observability.ResetForTest()
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})
	t.Cleanup(observability.ResetForTest)
}

// executeCommand runs a fresh command tree with args and returns its output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// executeCommandNoPreRun runs args without loading configuration, for testing
// argument and flag validation.
func executeCommandNoPreRun(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	root.PersistentPreRunE = nil
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// createTempConfig writes content to a config file inside a temp directory.
func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// newTestConfig returns the default configuration with fast scrolling and a
// temporary report directory.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Site.URL = "https://market.example/"
	cfg.Scroll.DownPause = 0
	cfg.Scroll.UpPause = 0
	cfg.Report.Dir = t.TempDir()
	cfg.Report.Screenshots = false
	return cfg
}

// commandWithConfig returns a command whose context carries cfg.
func commandWithConfig(cfg *config.Config) *cobra.Command {
	c := &cobra.Command{}
	c.SetContext(context.WithValue(context.Background(), configKey, cfg))
	return c
}
