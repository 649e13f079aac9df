package config

import (
	"strings"
	"time"
)

// Defaults shared with the components that consume the configuration.
const (
	DefaultIndexFilename  = "index.html"
	DefaultRSSFilename    = "rss.xml"
	DefaultImagesRel      = "content/images"
	DefaultConcurrency    = 4
	MaxConcurrency        = 32
	DefaultFetchTimeout   = 30 * time.Second
	DefaultCommandTimeout = 5 * time.Minute
	DefaultDebounce       = 2 * time.Second
	DefaultCommitMessage  = "Update static site snapshot"
	DefaultAuthorName     = "sitesnap"
	DefaultAuthorEmail    = "sitesnap@localhost"
	DefaultUserAgent      = "sitesnap"
	DefaultNotifySubject  = "sitesnap.runs"
	DefaultAdminAddr      = "127.0.0.1:9091"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// SiteDefaultApplier handles site defaults.
type SiteDefaultApplier struct{}

func (SiteDefaultApplier) Domain() string { return "site" }

func (SiteDefaultApplier) ApplyDefaults(cfg *Config) error {
	cfg.Site.BaseURL = strings.TrimSpace(cfg.Site.BaseURL)
	if cfg.Site.BaseURL != "" && !strings.HasSuffix(cfg.Site.BaseURL, "/") {
		cfg.Site.BaseURL += "/"
	}
	if cfg.Site.IndexFilename == "" {
		cfg.Site.IndexFilename = DefaultIndexFilename
	}
	if cfg.Site.RSSFilename == "" {
		cfg.Site.RSSFilename = DefaultRSSFilename
	}
	if cfg.Paths.ImagesRel == "" {
		cfg.Paths.ImagesRel = DefaultImagesRel
	}
	if cfg.Content.Source == "" {
		if cfg.Content.File != "" {
			cfg.Content.Source = ContentSourceFile
		} else {
			cfg.Content.Source = ContentSourceGhostSQLite
		}
	}
	source, err := contentSources.Parse("content.source", string(cfg.Content.Source))
	if err != nil {
		return err
	}
	cfg.Content.Source = source
	return nil
}

// BackendDefaultApplier handles backend defaults.
type BackendDefaultApplier struct{}

func (BackendDefaultApplier) Domain() string { return "backend" }

func (BackendDefaultApplier) ApplyDefaults(cfg *Config) error {
	b := cfg.Backend
	if b == nil {
		return nil
	}
	b.Name = strings.ToLower(strings.TrimSpace(b.Name))
	if b.CommitMessage == "" {
		b.CommitMessage = DefaultCommitMessage
	}
	if b.AuthorName == "" {
		b.AuthorName = DefaultAuthorName
	}
	if b.AuthorEmail == "" {
		b.AuthorEmail = DefaultAuthorEmail
	}
	return nil
}

// GenerationDefaultApplier handles generation and ambient defaults.
type GenerationDefaultApplier struct{}

func (GenerationDefaultApplier) Domain() string { return "generation" }

func (GenerationDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Generation.Concurrency == 0 {
		cfg.Generation.Concurrency = DefaultConcurrency
	}
	if cfg.Generation.UserAgent == "" {
		cfg.Generation.UserAgent = DefaultUserAgent
	}
	if cfg.Notify.NATSURL != "" && cfg.Notify.Subject == "" {
		cfg.Notify.Subject = DefaultNotifySubject
	}
	if cfg.Daemon.AdminAddr == "" {
		cfg.Daemon.AdminAddr = DefaultAdminAddr
	}
	cfg.Monitoring.Logging.Level = NormalizeLogLevel(string(cfg.Monitoring.Logging.Level))
	cfg.Monitoring.Logging.Format = NormalizeLogFormat(string(cfg.Monitoring.Logging.Format))
	return nil
}

var defaultAppliers = []DefaultApplier{
	SiteDefaultApplier{},
	BackendDefaultApplier{},
	GenerationDefaultApplier{},
}

func applyDefaults(cfg *Config) error {
	for _, applier := range defaultAppliers {
		if err := applier.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}
