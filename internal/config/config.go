// Package config loads and validates the sitebuilder configuration.
//
// Configuration is sourced from a YAML file (sitebuilder.yaml by
// default), overlaid with environment variables. A .env file in the
// working directory is honored so local setups can keep credentials
// out of the config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file name looked up in the working
// directory when no explicit path is given.
const DefaultFile = "sitebuilder.yaml"

var (
	ErrInvalidBaseURL  = errors.New("config: base_url must be an absolute http(s) URL")
	ErrInvalidPerPage  = errors.New("config: per_page must be at least 1")
	ErrInvalidInterval = errors.New("config: rebuild_every is not a valid duration")
	ErrInvalidListen   = errors.New("config: listen address must not be empty")
)

// Config is the root configuration for a site.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Build   BuildConfig   `yaml:"build"`
	Daemon  DaemonConfig  `yaml:"daemon,omitempty"`
	Notify  NotifyConfig  `yaml:"notify,omitempty"`
	History HistoryConfig `yaml:"history,omitempty"`
	Deploy  DeployConfig  `yaml:"deploy,omitempty"`
}

// SiteConfig describes the published site.
type SiteConfig struct {
	// BaseURL is the absolute URL the site is served under. When empty
	// the build skips link absolutization entirely.
	BaseURL     string `yaml:"base_url,omitempty"`
	Title       string `yaml:"title,omitempty"`
	Description string `yaml:"description,omitempty"`
	// DateFormat is the Go reference layout used when rendering post
	// dates. Defaults to 2006-01-02.
	DateFormat string `yaml:"date_format,omitempty"`
}

// BuildConfig controls source discovery and artifact generation.
type BuildConfig struct {
	ContentDir string `yaml:"content_dir,omitempty"`
	CacheDir   string `yaml:"cache_dir,omitempty"`
	OutputDir  string `yaml:"output_dir,omitempty"`
	// OutputSuffix is appended to every generated page name. nil means
	// the default ".html"; an explicit empty string produces
	// extensionless pages.
	OutputSuffix *string `yaml:"output_suffix,omitempty"`
	// PerPage is the number of entries per listing page.
	PerPage int `yaml:"per_page,omitempty"`
	// InsertDates controls whether sources without a leading date line
	// get one stamped in. nil means enabled.
	InsertDates *bool `yaml:"insert_dates,omitempty"`
}

// Suffix returns the configured output suffix, defaulting to ".html".
func (b *BuildConfig) Suffix() string {
	if b.OutputSuffix == nil {
		return ".html"
	}
	return *b.OutputSuffix
}

// AutoDate reports whether missing date lines are stamped into
// sources, which also makes every source a post.
func (b *BuildConfig) AutoDate() bool {
	return b.InsertDates == nil || *b.InsertDates
}

// DaemonConfig controls the watch/serve daemon.
type DaemonConfig struct {
	Listen     string `yaml:"listen,omitempty"`
	LiveReload *bool  `yaml:"live_reload,omitempty"`
	// RebuildEvery schedules periodic full rebuilds, e.g. "30m".
	// Empty disables the schedule.
	RebuildEvery string `yaml:"rebuild_every,omitempty"`
	Metrics      bool   `yaml:"metrics,omitempty"`
}

// LiveReloadEnabled reports whether served pages get the SSE reload
// snippet injected. Defaults to enabled.
func (d *DaemonConfig) LiveReloadEnabled() bool {
	return d.LiveReload == nil || *d.LiveReload
}

// RebuildInterval parses RebuildEvery. A zero duration means no
// scheduled rebuilds.
func (d *DaemonConfig) RebuildInterval() (time.Duration, error) {
	if d.RebuildEvery == "" {
		return 0, nil
	}
	iv, err := time.ParseDuration(d.RebuildEvery)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, d.RebuildEvery)
	}
	return iv, nil
}

// NotifyConfig configures build event publishing over NATS.
type NotifyConfig struct {
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// Enabled reports whether build events should be published.
func (n *NotifyConfig) Enabled() bool { return n.URL != "" }

// HistoryConfig configures the build history store.
type HistoryConfig struct {
	// Path of the SQLite database. Empty means <cache_dir>/history.db;
	// "off" disables recording.
	Path string `yaml:"path,omitempty"`
}

// Disabled reports whether history recording is switched off.
func (h *HistoryConfig) Disabled() bool { return h.Path == "off" }

// Resolve returns the database path, defaulting to history.db inside
// the cache directory when none is configured.
func (h *HistoryConfig) Resolve(cacheDir string) string {
	if h.Path != "" {
		return h.Path
	}
	return filepath.Join(cacheDir, "history.db")
}

// DeployConfig configures publishing the output directory to a git
// remote.
type DeployConfig struct {
	Remote      string `yaml:"remote,omitempty"`
	Branch      string `yaml:"branch,omitempty"`
	AuthorName  string `yaml:"author_name,omitempty"`
	AuthorEmail string `yaml:"author_email,omitempty"`
}

// Default returns a configuration with every default applied, suitable
// for running without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Site.DateFormat == "" {
		c.Site.DateFormat = "2006-01-02"
	}
	if c.Build.ContentDir == "" {
		c.Build.ContentDir = "content"
	}
	if c.Build.CacheDir == "" {
		c.Build.CacheDir = "cache"
	}
	if c.Build.OutputDir == "" {
		c.Build.OutputDir = "public"
	}
	if c.Build.PerPage == 0 {
		c.Build.PerPage = 10
	}
	if c.Daemon.Listen == "" {
		c.Daemon.Listen = ":8080"
	}
	if c.Notify.Subject == "" {
		c.Notify.Subject = "sitebuilder.builds"
	}
	if c.Deploy.Branch == "" {
		c.Deploy.Branch = "main"
	}
	if c.Deploy.AuthorName == "" {
		c.Deploy.AuthorName = "sitebuilder"
	}
	if c.Deploy.AuthorEmail == "" {
		c.Deploy.AuthorEmail = "sitebuilder@localhost"
	}
}

// Validate checks the configuration for values that would break a
// build later on.
func (c *Config) Validate() error {
	if c.Site.BaseURL != "" {
		u, err := url.Parse(c.Site.BaseURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.Site.BaseURL)
		}
	}
	if c.Build.PerPage < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPerPage, c.Build.PerPage)
	}
	if _, err := c.Daemon.RebuildInterval(); err != nil {
		return err
	}
	if c.Daemon.Listen == "" {
		return ErrInvalidListen
	}
	return nil
}

// Load reads, expands and validates the config file at path. Missing
// files surface as fs.ErrNotExist so callers can fall back to
// defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	loadDotEnv()
	expanded := os.ExpandEnv(string(raw))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path if it exists and otherwise returns the
// default configuration with environment overrides applied.
func LoadOrDefault(path string, log *slog.Logger) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if log != nil {
		log.Debug("no config file, using defaults", slog.String("path", path))
	}
	loadDotEnv()
	cfg = Default()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv() {
	// godotenv never overrides variables already present in the
	// environment, so real env wins over .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Debug("skipping .env", slog.String("error", err.Error()))
	}
}

// applyEnvOverrides lets SITEBUILDER_* variables override file values,
// mirroring how the config file itself can reference ${VARS}.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString("SITEBUILDER_BASE_URL", &cfg.Site.BaseURL)
	setString("SITEBUILDER_TITLE", &cfg.Site.Title)
	setString("SITEBUILDER_CONTENT_DIR", &cfg.Build.ContentDir)
	setString("SITEBUILDER_CACHE_DIR", &cfg.Build.CacheDir)
	setString("SITEBUILDER_OUTPUT_DIR", &cfg.Build.OutputDir)
	setString("SITEBUILDER_LISTEN", &cfg.Daemon.Listen)
	setString("SITEBUILDER_NATS_URL", &cfg.Notify.URL)
	setString("SITEBUILDER_DEPLOY_REMOTE", &cfg.Deploy.Remote)

	if v, ok := os.LookupEnv("SITEBUILDER_PER_PAGE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Build.PerPage = n
		}
	}
	if v, ok := os.LookupEnv("SITEBUILDER_OUTPUT_SUFFIX"); ok {
		cfg.Build.OutputSuffix = &v
	}
}
