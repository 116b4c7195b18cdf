// Package config loads hltvquery settings from a YAML file, a .env file and
// the process environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the full hltvquery configuration
type Config struct {
	Site      SiteConfig      `yaml:"site" json:"site"`
	Browser   BrowserConfig   `yaml:"browser" json:"browser"`
	Fetch     FetchConfig     `yaml:"fetch" json:"fetch"`
	Capture   CaptureConfig   `yaml:"capture" json:"capture"`
	Selection SelectionConfig `yaml:"selection" json:"selection"`
	Catalog   CatalogConfig   `yaml:"catalog" json:"catalog"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// SiteConfig points at the statistics site
type SiteConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
}

// BrowserConfig controls how browser sessions are launched
type BrowserConfig struct {
	Headless        bool     `yaml:"headless" json:"headless"`
	UserAgent       string   `yaml:"user_agent" json:"user_agent"`
	ViewportWidth   int      `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight  int      `yaml:"viewport_height" json:"viewport_height"`
	CaptureWidth    int      `yaml:"capture_viewport_width" json:"capture_viewport_width"`
	LaunchArgs      []string `yaml:"launch_args" json:"launch_args"`
	MaxSessions     int      `yaml:"max_sessions" json:"max_sessions"`
	InstallBrowsers bool     `yaml:"install" json:"install"`
}

// Engine selects what serves document fetches
type Engine string

const (
	// EngineBrowser renders pages in Chromium (default)
	EngineBrowser Engine = "browser"
	// EngineHTTP fetches raw HTML over HTTP; capture still needs the browser
	EngineHTTP Engine = "http"
)

// FetchConfig controls navigation timeouts and the capture retry policy
type FetchConfig struct {
	Engine          Engine        `yaml:"engine" json:"engine"`
	DocumentTimeout time.Duration `yaml:"document_timeout" json:"document_timeout"`
	CaptureTimeout  time.Duration `yaml:"capture_timeout" json:"capture_timeout"`
	MaxAttempts     int           `yaml:"max_attempts" json:"max_attempts"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay" json:"retry_base_delay"`
	SettleDelay     time.Duration `yaml:"settle_delay" json:"settle_delay"`
}

// CaptureConfig controls where region screenshots and composites go
type CaptureConfig struct {
	ScreenshotDir string `yaml:"screenshot_dir" json:"screenshot_dir"`
}

// SelectionConfig controls the follow-up window
type SelectionConfig struct {
	TTL time.Duration `yaml:"ttl" json:"ttl"`
}

// CatalogConfig locates the team cache file
type CatalogConfig struct {
	TeamsFile string `yaml:"teams_file" json:"teams_file"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level" json:"level"`
	Dir   string `yaml:"dir" json:"dir"`
}

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultBaseURL   = "https://www.hltv.org"
)

// Environment variables that override file values
const (
	EnvHeadless      = "HLTVQUERY_HEADLESS"
	EnvScreenshotDir = "HLTVQUERY_SCREENSHOT_DIR"
	EnvTeamsFile     = "HLTVQUERY_TEAMS_FILE"
	EnvLogLevel      = "HLTVQUERY_LOG_LEVEL"
	EnvFetchEngine   = "HLTVQUERY_FETCH_ENGINE"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Site: SiteConfig{BaseURL: DefaultBaseURL},
		Browser: BrowserConfig{
			Headless:       true,
			UserAgent:      DefaultUserAgent,
			ViewportWidth:  1920,
			ViewportHeight: 1080,
			CaptureWidth:   1280,
			LaunchArgs: []string{
				"--disable-web-security",
				"--disable-features=IsolateOrigins,site-per-process",
				"--no-sandbox",
				"--disable-setuid-sandbox",
				"--disable-dev-shm-usage",
				"--disable-blink-features=AutomationControlled",
			},
			MaxSessions:     4,
			InstallBrowsers: true,
		},
		Fetch: FetchConfig{
			Engine:          EngineBrowser,
			DocumentTimeout: 60 * time.Second,
			CaptureTimeout:  45 * time.Second,
			MaxAttempts:     3,
			RetryBaseDelay:  2 * time.Second,
			SettleDelay:     2 * time.Second,
		},
		Capture:   CaptureConfig{ScreenshotDir: "screenshots"},
		Selection: SelectionConfig{TTL: 30 * time.Second},
		Catalog:   CatalogConfig{TeamsFile: "teams.txt"},
		Logging:   LoggingConfig{Level: "info"},
	}
}

// Load reads the YAML file at path on top of the defaults. An empty path
// skips the file. A .env file next to the working directory is honored,
// then environment overrides are applied and the result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := LoadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads .env into the process environment if it exists.
// Variables already set are not overwritten.
func LoadEnv() error {
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from HLTVQUERY_* environment variables.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvHeadless); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		c.Browser.Headless = b
	}
	if v := os.Getenv(EnvScreenshotDir); v != "" {
		c.Capture.ScreenshotDir = v
	}
	if v := os.Getenv(EnvTeamsFile); v != "" {
		c.Catalog.TeamsFile = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvFetchEngine); v != "" {
		c.Fetch.Engine = Engine(v)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport must be positive, got %dx%d", c.Browser.ViewportWidth, c.Browser.ViewportHeight)
	}
	if c.Browser.CaptureWidth <= 0 {
		return fmt.Errorf("browser.capture_viewport_width must be positive")
	}
	if c.Browser.MaxSessions <= 0 {
		return fmt.Errorf("browser.max_sessions must be positive")
	}

	switch c.Fetch.Engine {
	case EngineBrowser, EngineHTTP:
	default:
		return fmt.Errorf("invalid fetch.engine: %s (must be 'browser' or 'http')", c.Fetch.Engine)
	}
	if c.Fetch.DocumentTimeout <= 0 || c.Fetch.CaptureTimeout <= 0 {
		return fmt.Errorf("fetch timeouts must be positive")
	}
	if c.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("fetch.max_attempts must be positive")
	}
	if c.Fetch.RetryBaseDelay < 0 || c.Fetch.SettleDelay < 0 {
		return fmt.Errorf("fetch delays cannot be negative")
	}

	if c.Capture.ScreenshotDir == "" {
		return fmt.Errorf("capture.screenshot_dir is required")
	}
	if c.Selection.TTL <= 0 {
		return fmt.Errorf("selection.ttl must be positive")
	}
	if c.Catalog.TeamsFile == "" {
		return fmt.Errorf("catalog.teams_file is required")
	}

	switch c.Logging.Level {
	case "":
		c.Logging.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}
	return nil
}

// EnsureDirs creates the screenshot directory and the parent of the teams file.
func (c *Config) EnsureDirs() error {
	if err := os.MkdirAll(c.Capture.ScreenshotDir, 0750); err != nil {
		return fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	if dir := filepath.Dir(c.Catalog.TeamsFile); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}
	return nil
}
