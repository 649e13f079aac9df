package config

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

// Validate validates the complete configuration. It never touches the
// filesystem or network so it is safe to call before any side effect.
func Validate(cfg *Config) error {
	validator := &configurationValidator{config: cfg}
	return validator.validate()
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validate() error {
	if err := cv.validateSite(); err != nil {
		return err
	}
	if err := cv.config.Backend.Validate(); err != nil {
		return err
	}
	if err := cv.validateContent(); err != nil {
		return err
	}
	if err := cv.validateAssets(); err != nil {
		return err
	}
	if err := cv.validateGeneration(); err != nil {
		return err
	}
	return cv.validateDaemon()
}

func (cv *configurationValidator) validateSite() error {
	site := cv.config.Site
	if site.BaseURL == "" {
		return errors.ConfigError("site base_url is required").Build()
	}
	u, err := url.Parse(site.BaseURL)
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "invalid site base_url").Fatal().WithContext("base_url", site.BaseURL).Build()
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.ConfigError("site base_url must be an absolute http(s) URL").WithContext("base_url", site.BaseURL).Build()
	}
	for key, name := range map[string]string{"index_filename": site.IndexFilename, "rss_filename": site.RSSFilename} {
		if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			return errors.ConfigError(fmt.Sprintf("site %s must be a plain file name", key)).WithContext(key, name).Build()
		}
	}
	return nil
}

func (cv *configurationValidator) validateContent() error {
	c := cv.config.Content
	switch c.Source {
	case ContentSourceGhostSQLite:
		if c.Database == "" {
			return errors.ConfigError("content database is required for ghost_sqlite source").Build()
		}
	case ContentSourceFile:
		if c.File == "" {
			return errors.ConfigError("content file is required for file source").Build()
		}
	default:
		return errors.ConfigError(fmt.Sprintf("unknown content source %q", c.Source)).Build()
	}
	return nil
}

func (cv *configurationValidator) validateAssets() error {
	if err := validateRoute("paths.images_rel", cv.config.Paths.ImagesRel); err != nil {
		return err
	}
	for i, extra := range cv.config.Assets.Extra {
		if extra.Source == "" {
			return errors.ConfigError(fmt.Sprintf("assets.extra[%d].source is required", i)).Build()
		}
		if err := validateRoute(fmt.Sprintf("assets.extra[%d].route", i), extra.Route); err != nil {
			return err
		}
	}
	return nil
}

func validateRoute(field, route string) error {
	trimmed := strings.Trim(route, "/")
	if trimmed == "" {
		return errors.ConfigError(field + " must not be empty").Build()
	}
	if strings.Contains(route, `\`) || path.Clean(trimmed) != trimmed || strings.HasPrefix(trimmed, "..") {
		return errors.ConfigError(field+" must be a clean relative route").WithContext("route", route).Build()
	}
	return nil
}

func (cv *configurationValidator) validateGeneration() error {
	g := cv.config.Generation
	if g.Concurrency < 1 || g.Concurrency > MaxConcurrency {
		return errors.ConfigError(fmt.Sprintf("generation concurrency must be between 1 and %d", MaxConcurrency)).
			WithContext("concurrency", g.Concurrency).
			Build()
	}
	if err := validateDuration("generation.fetch_timeout", g.FetchTimeout); err != nil {
		return err
	}
	return validateDuration("generation.command_timeout", g.CommandTimeout)
}

func (cv *configurationValidator) validateDaemon() error {
	d := cv.config.Daemon
	if d.Interval != "" && d.Cron != "" {
		return errors.ConfigError("daemon interval and cron are mutually exclusive").Build()
	}
	if err := validateDuration("daemon.interval", d.Interval); err != nil {
		return err
	}
	return validateDuration("daemon.debounce", d.Debounce)
}

func validateDuration(field, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "invalid duration for "+field).Fatal().UserAction().Build()
	}
	if d <= 0 {
		return errors.ConfigError(field + " must be positive").Build()
	}
	return nil
}
