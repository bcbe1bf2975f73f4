// internal/browser/options.go
package browser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/marketcheck/internal/config"
)

// chromeFlags computes the command line flags layered on top of chromedp's
// defaults. A false value removes a default flag.
func chromeFlags(cfg config.BrowserConfig) map[string]interface{} {
	flags := map[string]interface{}{
		// Required on hardened hosts and in containers.
		"no-sandbox":            true,
		"disable-dev-shm-usage": true,
		"headless":              cfg.Headless,
		"hide-scrollbars":       cfg.Headless,
		"mute-audio":            true,
		"disable-notifications": true,
	}

	if cfg.DisableGPU {
		flags["disable-gpu"] = true
	}

	if cfg.DisableCache {
		flags["disk-cache-size"] = "0"
		flags["media-cache-size"] = "0"
		flags["disable-application-cache"] = true
	}

	if cfg.IgnoreTLSErrors {
		flags["ignore-certificate-errors"] = true
		flags["allow-insecure-localhost"] = true
	}

	if w, h := cfg.Viewport["width"], cfg.Viewport["height"]; w > 0 && h > 0 {
		flags["window-size"] = fmt.Sprintf("%d,%d", w, h)
	}

	// User supplied args win over everything above.
	for _, arg := range cfg.Args {
		arg = strings.TrimPrefix(strings.TrimSpace(arg), "--")
		if arg == "" {
			continue
		}
		if key, value, ok := strings.Cut(arg, "="); ok {
			flags[key] = value
			continue
		}
		flags[arg] = true
	}
	return flags
}

// AllocatorOptions builds the exec allocator options for a browser config.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	flags := chromeFlags(cfg)
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts = append(opts, chromedp.Flag(name, flags[name]))
	}

	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}
