package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"igmirror/internal/webdriver"
	"igmirror/pkg/browser"
	"igmirror/pkg/config"
	"igmirror/pkg/index"
	"igmirror/pkg/logger"
	"igmirror/pkg/ratelimit"
	"igmirror/pkg/store"
	"igmirror/pkg/sync"
)

// navWindow is the refill period for the navigation rate limit.
const navWindow = time.Minute

var (
	version = "1.0.0"

	// Global flags
	configFile string
	logLevel   string

	cfg *config.Config
	log logger.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "igmirror",
	Short: "Mirror a platform account's profile and post history locally",
	Long: `igmirror keeps a local, queryable mirror of an account's public face:
aggregate counts, bio, every post with its media, tags and location, and
daily history snapshots. It drives a real browser over WebDriver, stores
everything in SQLite and optionally feeds a search index.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if err := logger.Initialize(&cfg.Logging); err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		log = logger.GetLogger()
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default igmirror.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// openStore opens the configured SQLite database.
func openStore() (*store.Store, error) {
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.Database.Path, err)
	}
	return st, nil
}

// buildSink returns the configured index sink, or a no-op when disabled.
func buildSink() index.Sink {
	if !cfg.Index.Enabled {
		return index.NopSink{}
	}
	return index.NewClient(cfg.Index.URL, log)
}

// buildSyncer wires the reconciler over the shared collaborators.
func buildSyncer(st *store.Store) *sync.Syncer {
	limiter := ratelimit.NewTokenBucket(cfg.Scrape.NavigationsPerMinute, navWindow)
	return sync.New(st, buildSink(), limiter, cfg.Scrape, log)
}

// sessionFactory opens fresh WebDriver sessions; the syncer loads stored
// cookies into them after navigating onto the platform.
func sessionFactory() sync.SessionFactory {
	client := webdriver.New(cfg.WebDriver, log)
	return func() (browser.Session, error) {
		return client.NewSession()
	}
}
