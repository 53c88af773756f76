package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML files can use "5s" syntax.
type Duration time.Duration

// UnmarshalYAML parses either a duration string or integer nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if n, err := strconv.ParseInt(value.Value, 10, 64); err == nil {
		*d = Duration(n)
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in "5s" form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// Config holds all configuration options for the mirror
type Config struct {
	// Browser session settings
	WebDriver WebDriverConfig `yaml:"webdriver" json:"webdriver"`

	// Local store settings
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Search index sink settings
	Index IndexConfig `yaml:"index" json:"index"`

	// Scraping behavior
	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// WebDriverConfig holds settings for the browser driver endpoint
type WebDriverConfig struct {
	URL          string   `yaml:"url" json:"url"`
	BrowserArgs  []string `yaml:"browser_args" json:"browser_args"`
	Language     string   `yaml:"language" json:"language"`
	ImplicitWait Duration `yaml:"implicit_wait" json:"implicit_wait"`
}

// DatabaseConfig holds settings for the SQLite store
type DatabaseConfig struct {
	Path string `yaml:"path" json:"path"`
}

// IndexConfig holds settings for the search index sink
type IndexConfig struct {
	URL     string `yaml:"url" json:"url"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

// ScrapeConfig holds scraping behavior settings
type ScrapeConfig struct {
	// MaxPostsPerSync caps how many codes one run consumes from the feed
	MaxPostsPerSync int `yaml:"max_posts_per_sync" json:"max_posts_per_sync"`
	// ScrollWait bounds the poll for new feed content after a scroll
	ScrollWait Duration `yaml:"scroll_wait" json:"scroll_wait"`
	// ChallengeCooldown is the fixed placeholder wait when the platform
	// interposes a security challenge
	ChallengeCooldown Duration `yaml:"challenge_cooldown" json:"challenge_cooldown"`
	// SyncInterval is the daemon's per-cycle delay
	SyncInterval Duration `yaml:"sync_interval" json:"sync_interval"`
	// NavigationsPerMinute paces page loads to avoid platform blocks
	NavigationsPerMinute int `yaml:"navigations_per_minute" json:"navigations_per_minute"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		WebDriver: WebDriverConfig{
			URL: "http://localhost:9515",
			BrowserArgs: []string{
				"--dns-prefetch-disable",
				"--no-sandbox",
				"--disable-setuid-sandbox",
				"--lang=en-US",
			},
			Language:     "en-US",
			ImplicitWait: Duration(5 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "igmirror.db",
		},
		Index: IndexConfig{
			URL:     "http://localhost:9200",
			Enabled: true,
		},
		Scrape: ScrapeConfig{
			MaxPostsPerSync:      100,
			ScrollWait:           Duration(5 * time.Second),
			ChallengeCooldown:    Duration(60 * time.Second),
			SyncInterval:         Duration(6 * time.Hour),
			NavigationsPerMinute: 30,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given YAML file, falling back to
// defaults, then applies environment overrides. A missing file is not an
// error; a present-but-invalid one is.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads configuration overrides from environment variables
func (c *Config) LoadFromEnv() error {
	if url := os.Getenv("IGMIRROR_WEBDRIVER_URL"); url != "" {
		c.WebDriver.URL = url
	}
	if path := os.Getenv("IGMIRROR_DATABASE_PATH"); path != "" {
		c.Database.Path = path
	}
	if url := os.Getenv("IGMIRROR_INDEX_URL"); url != "" {
		c.Index.URL = url
	}
	if v := os.Getenv("IGMIRROR_INDEX_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid IGMIRROR_INDEX_ENABLED: %w", err)
		}
		c.Index.Enabled = enabled
	}
	if v := os.Getenv("IGMIRROR_MAX_POSTS_PER_SYNC"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid IGMIRROR_MAX_POSTS_PER_SYNC: %w", err)
		}
		c.Scrape.MaxPostsPerSync = n
	}
	if level := os.Getenv("IGMIRROR_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	return nil
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.WebDriver.URL == "" {
		return errors.New("webdriver url is required")
	}
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Index.Enabled && c.Index.URL == "" {
		return errors.New("index url is required when indexing is enabled")
	}
	if c.Scrape.MaxPostsPerSync <= 0 {
		return errors.New("max_posts_per_sync must be positive")
	}
	if c.Scrape.ScrollWait <= 0 {
		return errors.New("scroll_wait must be positive")
	}
	if c.Scrape.NavigationsPerMinute <= 0 {
		return errors.New("navigations_per_minute must be positive")
	}
	return nil
}
