package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Scrape.MaxPostsPerSync != 100 {
		t.Errorf("Expected default max posts per sync to be 100, got %d", config.Scrape.MaxPostsPerSync)
	}
	if config.Scrape.ScrollWait.Std() != 5*time.Second {
		t.Errorf("Expected default scroll wait to be 5s, got %s", config.Scrape.ScrollWait)
	}
	if config.Scrape.ChallengeCooldown.Std() != 60*time.Second {
		t.Errorf("Expected default challenge cooldown to be 60s, got %s", config.Scrape.ChallengeCooldown)
	}
	if config.WebDriver.ImplicitWait.Std() != 5*time.Second {
		t.Errorf("Expected default implicit wait to be 5s, got %s", config.WebDriver.ImplicitWait)
	}
	if config.WebDriver.Language != "en-US" {
		t.Errorf("Expected default language to be en-US, got %s", config.WebDriver.Language)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("IGMIRROR_WEBDRIVER_URL", "http://driver:4444")
	os.Setenv("IGMIRROR_DATABASE_PATH", "/tmp/test.db")
	os.Setenv("IGMIRROR_INDEX_ENABLED", "false")
	os.Setenv("IGMIRROR_MAX_POSTS_PER_SYNC", "25")
	os.Setenv("IGMIRROR_LOG_LEVEL", "debug")

	defer func() {
		os.Unsetenv("IGMIRROR_WEBDRIVER_URL")
		os.Unsetenv("IGMIRROR_DATABASE_PATH")
		os.Unsetenv("IGMIRROR_INDEX_ENABLED")
		os.Unsetenv("IGMIRROR_MAX_POSTS_PER_SYNC")
		os.Unsetenv("IGMIRROR_LOG_LEVEL")
	}()

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.WebDriver.URL != "http://driver:4444" {
		t.Errorf("Expected webdriver url http://driver:4444, got %s", config.WebDriver.URL)
	}
	if config.Database.Path != "/tmp/test.db" {
		t.Errorf("Expected database path /tmp/test.db, got %s", config.Database.Path)
	}
	if config.Index.Enabled {
		t.Error("Expected indexing to be disabled")
	}
	if config.Scrape.MaxPostsPerSync != 25 {
		t.Errorf("Expected max posts per sync 25, got %d", config.Scrape.MaxPostsPerSync)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
database:
  path: /data/mirror.db
scrape:
  max_posts_per_sync: 10
  scroll_wait: 2s
logging:
  level: warn
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Database.Path != "/data/mirror.db" {
		t.Errorf("Expected database path /data/mirror.db, got %s", config.Database.Path)
	}
	if config.Scrape.MaxPostsPerSync != 10 {
		t.Errorf("Expected max posts per sync 10, got %d", config.Scrape.MaxPostsPerSync)
	}
	if config.Scrape.ScrollWait.Std() != 2*time.Second {
		t.Errorf("Expected scroll wait 2s, got %s", config.Scrape.ScrollWait)
	}
	// Sections absent from the file keep their defaults
	if config.WebDriver.URL != "http://localhost:9515" {
		t.Errorf("Expected default webdriver url, got %s", config.WebDriver.URL)
	}
}

func TestValidate(t *testing.T) {
	config := DefaultConfig()
	if err := config.Validate(); err != nil {
		t.Fatalf("Expected default config to validate, got %v", err)
	}

	config.Scrape.MaxPostsPerSync = 0
	if err := config.Validate(); err == nil {
		t.Error("Expected validation error for zero max_posts_per_sync")
	}

	config = DefaultConfig()
	config.Database.Path = ""
	if err := config.Validate(); err == nil {
		t.Error("Expected validation error for empty database path")
	}

	config = DefaultConfig()
	config.Index.URL = ""
	if err := config.Validate(); err == nil {
		t.Error("Expected validation error for enabled index without url")
	}
}

func TestMissingFileUsesDefaults(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Expected missing file to fall back to defaults, got %v", err)
	}
	if config.Scrape.MaxPostsPerSync != 100 {
		t.Errorf("Expected default max posts per sync, got %d", config.Scrape.MaxPostsPerSync)
	}
}
