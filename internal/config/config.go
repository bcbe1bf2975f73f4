// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides (MARKETCHECK_BROWSER_HEADLESS, ...).
const EnvPrefix = "MARKETCHECK"

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Database DatabaseConfig    `mapstructure:"database" yaml:"database"`
	Browser  BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Network  NetworkConfig     `mapstructure:"network" yaml:"network"`
	Scroll   ScrollConfig      `mapstructure:"scroll" yaml:"scroll"`
	Report   ReportConfig      `mapstructure:"report" yaml:"report"`
	Site     SiteConfig        `mapstructure:"site" yaml:"site"`
	Locators map[string]string `mapstructure:"locators" yaml:"locators"`
	Cases    []CaseConfig      `mapstructure:"cases" yaml:"cases"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the run history database connection details.
// An empty URL disables persistence.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	DisableCache    bool           `mapstructure:"disable_cache" yaml:"disable_cache"`
	DisableGPU      bool           `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Concurrency     int            `mapstructure:"concurrency" yaml:"concurrency"`
	Debug           bool           `mapstructure:"debug" yaml:"debug"`
	ExecPath        string         `mapstructure:"exec_path" yaml:"exec_path"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        map[string]int `mapstructure:"viewport" yaml:"viewport"`
	// WaitTimeout bounds every explicit wait for an element to become visible.
	WaitTimeout time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	// ActionTimeout bounds a single element interaction (click, hover, typing).
	ActionTimeout time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
}

// NetworkConfig tunes page loading.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// ScrollConfig controls how a listing page is scrolled before cards are read.
// Down and up passes have their own step size, settle pause and step cap.
type ScrollConfig struct {
	DownStep     int           `mapstructure:"down_step" yaml:"down_step"`
	DownPause    time.Duration `mapstructure:"down_pause" yaml:"down_pause"`
	DownMaxSteps int           `mapstructure:"down_max_steps" yaml:"down_max_steps"`
	UpStep       int           `mapstructure:"up_step" yaml:"up_step"`
	UpPause      time.Duration `mapstructure:"up_pause" yaml:"up_pause"`
	UpMaxSteps   int           `mapstructure:"up_max_steps" yaml:"up_max_steps"`
}

// ReportConfig controls where run reports and screenshots are written.
type ReportConfig struct {
	Dir         string `mapstructure:"dir" yaml:"dir"`
	Screenshots bool   `mapstructure:"screenshots" yaml:"screenshots"`
}

// SiteConfig points at the catalog under test.
type SiteConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// CaseConfig is one parameter tuple for the catalog scenario.
type CaseConfig struct {
	Name         string   `mapstructure:"name" yaml:"name"`
	Category     string   `mapstructure:"category" yaml:"category"`
	Subcategory  string   `mapstructure:"subcategory" yaml:"subcategory"`
	MinPrice     int      `mapstructure:"min_price" yaml:"min_price"`
	MaxPrice     int      `mapstructure:"max_price" yaml:"max_price"`
	Brands       []string `mapstructure:"brands" yaml:"brands"`
	CheckedIndex int      `mapstructure:"checked_index" yaml:"checked_index"`
	MinProducts  int      `mapstructure:"min_products" yaml:"min_products"`
}

// DefaultLocators are XPath templates for the catalog pages. Tokens wrapped in
// asterisks (*category*, *subcategory*, *brand*) are substituted at lookup time.
// card_title and card_price are evaluated relative to a product card.
var DefaultLocators = map[string]string{
	"search_input":        "//input[@name='text']",
	"catalog_button":      "//button[@data-testid='catalog-button']",
	"catalog_category":    "//*[@data-testid='catalog-category' and normalize-space(.)='*category*']",
	"catalog_subcategory": "//a[@data-testid='catalog-subcategory' and normalize-space(.)='*subcategory*']",
	"filter_price_min":    "//input[@data-testid='filter-price-min']",
	"filter_price_max":    "//input[@data-testid='filter-price-max']",
	"filter_brand":        "//label[@data-testid='filter-brand' and normalize-space(.)='*brand*']",
	"card":                "//article[@data-testid='product-card']",
	"card_title":          ".//*[@data-testid='product-title']",
	"card_price":          ".//*[@data-testid='product-price']",
}

// NewDefaultConfig creates a configuration populated with every default value.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration parameter.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "marketcheck")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Database --
	v.SetDefault("database.url", "")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", false)
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.concurrency", 1)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.viewport.width", 1920)
	v.SetDefault("browser.viewport.height", 1080)
	v.SetDefault("browser.wait_timeout", "10s")
	v.SetDefault("browser.action_timeout", "15s")

	// -- Network --
	v.SetDefault("network.navigation_timeout", "60s")
	v.SetDefault("network.post_load_wait", "0s")

	// -- Scroll --
	v.SetDefault("scroll.down_step", 600)
	v.SetDefault("scroll.down_pause", "400ms")
	v.SetDefault("scroll.down_max_steps", 20)
	v.SetDefault("scroll.up_step", 1000)
	v.SetDefault("scroll.up_pause", "200ms")
	v.SetDefault("scroll.up_max_steps", 50)

	// -- Report --
	v.SetDefault("report.dir", "reports")
	v.SetDefault("report.screenshots", true)

	// -- Site --
	v.SetDefault("site.url", "https://market.yandex.ru/")

	// -- Locators --
	for key, tmpl := range DefaultLocators {
		v.SetDefault("locators."+key, tmpl)
	}

	// -- Cases --
	v.SetDefault("cases", []map[string]interface{}{
		{
			"name":          "laptops",
			"category":      "Electronics",
			"subcategory":   "Laptops",
			"min_price":     10000,
			"max_price":     20000,
			"brands":        []string{"Lenovo", "HP"},
			"checked_index": 0,
			"min_products":  12,
		},
	})
}

// NewViper returns a viper instance with defaults registered and environment
// overrides enabled under EnvPrefix.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Keep credentials out of config files.
	_ = v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	dir, err := homedir.Expand(c.Report.Dir)
	if err != nil {
		return fmt.Errorf("could not expand report.dir %q: %w", c.Report.Dir, err)
	}
	c.Report.Dir = dir

	if c.Logger.LogFile != "" {
		logFile, err := homedir.Expand(c.Logger.LogFile)
		if err != nil {
			return fmt.Errorf("could not expand logger.log_file %q: %w", c.Logger.LogFile, err)
		}
		c.Logger.LogFile = logFile
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Site.URL == "" {
		return fmt.Errorf("site.url is a required configuration field")
	}
	if c.Browser.Concurrency <= 0 {
		return fmt.Errorf("browser.concurrency must be a positive integer")
	}
	if c.Browser.WaitTimeout <= 0 {
		return fmt.Errorf("browser.wait_timeout must be a positive duration")
	}
	if err := c.Scroll.Validate(); err != nil {
		return fmt.Errorf("scroll configuration invalid: %w", err)
	}
	if c.Report.Dir == "" {
		return fmt.Errorf("report.dir is a required configuration field")
	}
	return nil
}

// Validate checks the scroll parameters.
func (s ScrollConfig) Validate() error {
	if s.DownStep <= 0 || s.UpStep <= 0 {
		return fmt.Errorf("scroll steps must be positive (down_step=%d, up_step=%d)", s.DownStep, s.UpStep)
	}
	if s.DownMaxSteps <= 0 || s.UpMaxSteps <= 0 {
		return fmt.Errorf("scroll step caps must be positive (down_max_steps=%d, up_max_steps=%d)", s.DownMaxSteps, s.UpMaxSteps)
	}
	if s.DownPause < 0 || s.UpPause < 0 {
		return fmt.Errorf("scroll pauses cannot be negative")
	}
	return nil
}

// LoadDotEnv loads environment variables from the given files (".env" when none
// are given). Missing files are ignored; variables already set are kept.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}
