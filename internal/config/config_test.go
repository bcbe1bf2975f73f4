// File: internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "marketcheck", cfg.Logger.ServiceName)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1, cfg.Browser.Concurrency)
	assert.Equal(t, 10*time.Second, cfg.Browser.WaitTimeout)
	assert.Equal(t, 1920, cfg.Browser.Viewport["width"])
	assert.Equal(t, 60*time.Second, cfg.Network.NavigationTimeout)

	assert.Equal(t, ScrollConfig{
		DownStep:     600,
		DownPause:    400 * time.Millisecond,
		DownMaxSteps: 20,
		UpStep:       1000,
		UpPause:      200 * time.Millisecond,
		UpMaxSteps:   50,
	}, cfg.Scroll)

	assert.Equal(t, DefaultLocators, cfg.Locators)

	require.Len(t, cfg.Cases, 1)
	c := cfg.Cases[0]
	assert.Equal(t, "Electronics", c.Category)
	assert.Equal(t, "Laptops", c.Subcategory)
	assert.Equal(t, 10000, c.MinPrice)
	assert.Equal(t, 20000, c.MaxPrice)
	assert.Equal(t, []string{"Lenovo", "HP"}, c.Brands)
	assert.Equal(t, 0, c.CheckedIndex)
	assert.Equal(t, 12, c.MinProducts)

	assert.NoError(t, cfg.Validate())
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing site url", func(c *Config) { c.Site.URL = "" }, "site.url is a required"},
		{"zero concurrency", func(c *Config) { c.Browser.Concurrency = 0 }, "browser.concurrency must be a positive integer"},
		{"zero wait timeout", func(c *Config) { c.Browser.WaitTimeout = 0 }, "browser.wait_timeout"},
		{"zero scroll step", func(c *Config) { c.Scroll.DownStep = 0 }, "scroll steps must be positive"},
		{"zero step cap", func(c *Config) { c.Scroll.UpMaxSteps = 0 }, "scroll step caps must be positive"},
		{"negative pause", func(c *Config) { c.Scroll.UpPause = -time.Second }, "pauses cannot be negative"},
		{"missing report dir", func(c *Config) { c.Report.Dir = "" }, "report.dir is a required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// -- Loading Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("YAML overrides merge with defaults", func(t *testing.T) {
		yaml := `
site:
  url: http://127.0.0.1:8080/
browser:
  concurrency: 3
  wait_timeout: 2s
scroll:
  down_pause: 0s
locators:
  card: //div[@class='card']
cases:
  - name: phones
    category: Electronics
    subcategory: Phones
    min_price: 100
    max_price: 900
    brands: [Acme]
    checked_index: 2
    min_products: 4
`
		v := NewViper()
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "http://127.0.0.1:8080/", cfg.Site.URL)
		assert.Equal(t, 3, cfg.Browser.Concurrency)
		assert.Equal(t, 2*time.Second, cfg.Browser.WaitTimeout)
		assert.Equal(t, time.Duration(0), cfg.Scroll.DownPause)
		assert.Equal(t, 600, cfg.Scroll.DownStep, "untouched keys keep their defaults")

		assert.Equal(t, "//div[@class='card']", cfg.Locators["card"])
		assert.Equal(t, DefaultLocators["card_price"], cfg.Locators["card_price"])

		require.Len(t, cfg.Cases, 1)
		assert.Equal(t, CaseConfig{
			Name:         "phones",
			Category:     "Electronics",
			Subcategory:  "Phones",
			MinPrice:     100,
			MaxPrice:     900,
			Brands:       []string{"Acme"},
			CheckedIndex: 2,
			MinProducts:  4,
		}, cfg.Cases[0])
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("MARKETCHECK_BROWSER_HEADLESS", "false")
		t.Setenv("MARKETCHECK_DATABASE_URL", "postgres://u:p@localhost/runs")

		cfg, err := NewConfigFromViper(NewViper())
		require.NoError(t, err)
		assert.False(t, cfg.Browser.Headless)
		assert.Equal(t, "postgres://u:p@localhost/runs", cfg.Database.URL)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		v := NewViper()
		v.Set("browser.concurrency", 0)
		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("home directory is expanded", func(t *testing.T) {
		home, err := homedir.Dir()
		if err != nil {
			t.Skip("no home directory available")
		}
		v := NewViper()
		v.Set("report.dir", "~/marketcheck-reports")
		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "marketcheck-reports"), cfg.Report.Dir)
	})
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("MARKETCHECK_TEST_DOTENV=loaded\n"), 0o600))
	t.Setenv("MARKETCHECK_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("MARKETCHECK_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), envFile))
	assert.Equal(t, "loaded", os.Getenv("MARKETCHECK_TEST_DOTENV"))
}
