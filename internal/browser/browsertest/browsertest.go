// internal/browser/browsertest/browsertest.go
package browsertest

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/marketcheck/internal/browser"
	"github.com/xkilldash9x/marketcheck/internal/config"
)

// ChromeEnv names the environment variable that points at a Chrome binary.
const ChromeEnv = "MARKETCHECK_CHROME"

var chromeCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
	"chrome",
}

// ChromePath locates a Chrome or Chromium binary.
func ChromePath() (string, bool) {
	if p := os.Getenv(ChromeEnv); p != "" {
		return p, true
	}
	for _, name := range chromeCandidates {
		if p, err := exec.LookPath(name); err == nil {
			return p, true
		}
	}
	return "", false
}

// RequireChrome skips the test in -short mode or when no browser is installed.
func RequireChrome(t testing.TB) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	p, ok := ChromePath()
	if !ok {
		t.Skipf("no Chrome binary found; set %s to run browser tests", ChromeEnv)
	}
	return p
}

// Config returns a configuration tuned for fast, headless test runs.
func Config(chromePath string) *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Browser.Headless = true
	cfg.Browser.ExecPath = chromePath
	cfg.Browser.IgnoreTLSErrors = true
	cfg.Browser.WaitTimeout = 5 * time.Second
	cfg.Browser.ActionTimeout = 10 * time.Second
	cfg.Browser.Viewport = map[string]int{"width": 1280, "height": 800}
	cfg.Network.NavigationTimeout = 30 * time.Second
	cfg.Network.PostLoadWait = 0
	cfg.Scroll.DownPause = 20 * time.Millisecond
	cfg.Scroll.UpPause = 10 * time.Millisecond
	return cfg
}

// NewManager creates a browser manager that is shut down when the test ends.
func NewManager(t testing.TB, cfg *config.Config) *browser.Manager {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	mgr := browser.NewManager(ctx, cfg, zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel)))
	t.Cleanup(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		_ = mgr.Shutdown(shutdownCtx)
		cancel()
	})
	return mgr
}

// Recorder is an Attacher that keeps attachments in memory.
type Recorder struct {
	Names []string
	Data  [][]byte
}

// Attach records the attachment.
func (r *Recorder) Attach(name, _ string, data []byte) error {
	r.Names = append(r.Names, name)
	r.Data = append(r.Data, data)
	return nil
}
