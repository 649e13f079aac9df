// Package content models the content items a site is generated from and the
// stores that supply them.
package content

import (
	"context"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

// Status is the publication state of an item.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Tag is a label attached to an item.
type Tag struct {
	Slug string `json:"slug" yaml:"slug"`
}

// Item is a post or a static page. Page marks static pages, which get their
// own route but do not count towards pagination.
type Item struct {
	Slug   string `json:"slug"`
	Status Status `json:"status"`
	Tags   []Tag  `json:"tags,omitempty"`
	Page   bool   `json:"page,omitempty"`
}

// IsPublished reports whether the item is part of the live site. Any status
// other than published counts as not published.
func (i Item) IsPublished() bool {
	return i.Status == StatusPublished
}

// Setting keys read during a run.
const (
	SettingActiveTheme  = "activeTheme"
	SettingPostsPerPage = "postsPerPage"
)

// Store supplies every content item, drafts included, in a stable order.
type Store interface {
	FindAll(ctx context.Context) ([]Item, error)
}

// Settings supplies site settings by key.
type Settings interface {
	Read(ctx context.Context, key string) (string, error)
}

// Source is a store that also serves settings, which is what every concrete
// backing store in this package is.
type Source interface {
	Store
	Settings
	Close() error
}

// ErrSettingNotFound is returned by Settings.Read for unknown keys.
var ErrSettingNotFound = errors.NewError(errors.CategoryNotFound, "setting not found").Build()

func settingNotFound(key string) error {
	return ErrSettingNotFound.WithContext("key", key)
}

// PostsPerPage reads and parses the postsPerPage setting. A value that is not
// a positive integer is a configuration error.
func PostsPerPage(ctx context.Context, s Settings) (int, error) {
	raw, err := s.Read(ctx, SettingPostsPerPage)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, errors.ConfigError("postsPerPage setting is not an integer").
			WithCause(err).
			WithContext("value", raw).
			Build()
	}
	if n <= 0 {
		return 0, errors.ConfigError("postsPerPage setting must be positive").
			WithContext("value", n).
			Build()
	}
	return n, nil
}
