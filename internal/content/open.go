package content

import (
	"git.home.luguber.info/inful/sitesnap/internal/config"
	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

// Open returns the Source selected by the content configuration.
func Open(cfg config.ContentConfig) (Source, error) {
	switch cfg.Source {
	case config.ContentSourceGhostSQLite:
		return OpenGhost(cfg.Database)
	case config.ContentSourceFile:
		return OpenFile(cfg.File)
	default:
		return nil, errors.ConfigError("unknown content source").
			WithContext("source", string(cfg.Source)).
			Build()
	}
}
