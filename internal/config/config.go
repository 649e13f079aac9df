package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesnap/internal/foundation/normalization"
)

// Config is the validated, fixed-shape configuration of a sitesnap installation.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Paths      PathsConfig      `yaml:"paths"`
	Content    ContentConfig    `yaml:"content"`
	Assets     AssetsConfig     `yaml:"assets,omitempty"`
	Backend    *BackendConfig   `yaml:"backend"`
	Generation GenerationConfig `yaml:"generation,omitempty"`
	History    HistoryConfig    `yaml:"history,omitempty"`
	Notify     NotifyConfig     `yaml:"notify,omitempty"`
	Daemon     DaemonConfig     `yaml:"daemon,omitempty"`
	Monitoring MonitoringConfig `yaml:"monitoring,omitempty"`
}

// SiteConfig describes the live site being frozen.
type SiteConfig struct {
	BaseURL       string `yaml:"base_url"`
	IndexFilename string `yaml:"index_filename,omitempty"`
	RSSFilename   string `yaml:"rss_filename,omitempty"`
}

// PathsConfig mirrors the path configuration of the content-managed site.
// An empty path disables the corresponding asset source.
type PathsConfig struct {
	Core      string `yaml:"core"`
	Images    string `yaml:"images"`
	ImagesRel string `yaml:"images_rel,omitempty"`
	Theme     string `yaml:"theme"`
}

// ContentSource selects the content/settings store adapter.
type ContentSource string

const (
	ContentSourceGhostSQLite ContentSource = "ghost_sqlite"
	ContentSourceFile        ContentSource = "file"
)

var contentSources = normalization.NewNormalizer(map[string]ContentSource{
	"ghost_sqlite": ContentSourceGhostSQLite,
	"ghost":        ContentSourceGhostSQLite,
	"file":         ContentSourceFile,
	"yaml":         ContentSourceFile,
}, ContentSourceGhostSQLite)

// ContentConfig locates the content store.
type ContentConfig struct {
	Source   ContentSource `yaml:"source"`
	Database string        `yaml:"database,omitempty"` // Ghost SQLite database file
	File     string        `yaml:"file,omitempty"`     // YAML content file
}

// AssetsConfig tunes static asset handling.
type AssetsConfig struct {
	CopyLocal bool          `yaml:"copy_local"` // read crawled assets from disk instead of over HTTP
	Extra     []AssetSource `yaml:"extra,omitempty"`
}

// AssetSource maps a local directory onto a route prefix.
type AssetSource struct {
	Source string `yaml:"source"`
	Route  string `yaml:"route"`
}

// GenerationConfig controls the fetch/write fan-out.
type GenerationConfig struct {
	Concurrency    int    `yaml:"concurrency,omitempty"`
	FetchTimeout   string `yaml:"fetch_timeout,omitempty"`
	CommandTimeout string `yaml:"command_timeout,omitempty"`
	UserAgent      string `yaml:"user_agent,omitempty"`
	AuditLinks     bool   `yaml:"audit_links,omitempty"`
}

// FetchTimeoutDuration returns the parsed per-fetch timeout.
func (g GenerationConfig) FetchTimeoutDuration() time.Duration {
	return parseDurationOr(g.FetchTimeout, DefaultFetchTimeout)
}

// CommandTimeoutDuration returns the parsed per-command timeout.
func (g GenerationConfig) CommandTimeoutDuration() time.Duration {
	return parseDurationOr(g.CommandTimeout, DefaultCommandTimeout)
}

// HistoryConfig enables persistent run history. Empty database disables it.
type HistoryConfig struct {
	Database string `yaml:"database,omitempty"`
}

// NotifyConfig publishes run outcomes to NATS. Empty URL disables it.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// DaemonConfig configures the long-running mode.
type DaemonConfig struct {
	Interval  string `yaml:"interval,omitempty"` // e.g. "1h"
	Cron      string `yaml:"cron,omitempty"`     // cron expression, exclusive with interval
	Watch     bool   `yaml:"watch,omitempty"`    // regenerate when asset directories change
	Debounce  string `yaml:"debounce,omitempty"`
	AdminAddr string `yaml:"admin_addr,omitempty"`
}

// IntervalDuration returns the parsed schedule interval, zero if unset.
func (d DaemonConfig) IntervalDuration() time.Duration {
	return parseDurationOr(d.Interval, 0)
}

// DebounceDuration returns the parsed watch debounce.
func (d DaemonConfig) DebounceDuration() time.Duration {
	return parseDurationOr(d.Debounce, DefaultDebounce)
}

// MonitoringConfig groups observability settings.
type MonitoringConfig struct {
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// Load reads, expands, decodes, defaults and validates a configuration file.
func Load(configPath string) (*Config, error) {
	loadEnvFile()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").WithContext("path", configPath).Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").WithContext("path", configPath).Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Backend.CheckWorkingDirAgainst(configPath); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML (after ${VAR} expansion), applies defaults and validates.
// Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).Build()
	}

	example := Config{
		Site: SiteConfig{BaseURL: "http://localhost:2368/"},
		Paths: PathsConfig{
			Core:      "/var/www/ghost/core",
			Images:    "/var/www/ghost/content/images",
			ImagesRel: "content/images",
			Theme:     "/var/www/ghost/content/themes",
		},
		Content: ContentConfig{Source: ContentSourceGhostSQLite, Database: "/var/www/ghost/content/data/ghost.db"},
		Backend: &BackendConfig{
			Name:       BackendGit,
			WorkingDir: "./snapshot",
			RemoteRepo: "git@example.com:me/site.git",
			Branch:     "main",
		},
		Generation: GenerationConfig{Concurrency: DefaultConcurrency, FetchTimeout: "30s", CommandTimeout: "5m"},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").WithContext("path", configPath).Build()
	}
	return nil
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
