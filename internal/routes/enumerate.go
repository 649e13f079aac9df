package routes

import (
	"path"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/sitesnap/internal/config"
	"git.home.luguber.info/inful/sitesnap/internal/content"
	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

// EnumerateOptions control page enumeration.
type EnumerateOptions struct {
	BaseURL       string
	PostsPerPage  int
	IndexFilename string
	RSSFilename   string
}

// Derived is what enumeration reads out of the content items.
type Derived struct {
	// Posts are the slugs of published items, in input order.
	Posts []string
	// Tags are the slugs of tags on published items, first-seen order.
	Tags []string
	// Listed counts published items that are not static pages.
	Listed int
}

// Derive extracts post slugs, tag slugs and the paginated item count from
// items. Drafts are ignored.
func Derive(items []content.Item) Derived {
	var d Derived
	seenTags := make(map[string]struct{})
	for _, item := range items {
		if !item.IsPublished() {
			continue
		}
		d.Posts = append(d.Posts, item.Slug)
		if !item.Page {
			d.Listed++
		}
		for _, tag := range item.Tags {
			if _, ok := seenTags[tag.Slug]; ok {
				continue
			}
			seenTags[tag.Slug] = struct{}{}
			d.Tags = append(d.Tags, tag.Slug)
		}
	}
	return d
}

// PaginationPages returns the listing page numbers beyond the home page:
// 2..ceil(listed/perPage), or none when everything fits on the home page.
func PaginationPages(listed, perPage int) []int {
	if perPage <= 0 || listed <= perPage {
		return nil
	}
	last := (listed + perPage - 1) / perPage
	pages := make([]int, 0, last-1)
	for n := 2; n <= last; n++ {
		pages = append(pages, n)
	}
	return pages
}

// Enumerate maps content items to the dynamic pages of the site: home, one
// page per published post, one per tag, the pagination pages, then the rss
// feed, favicon and robots file.
func Enumerate(items []content.Item, opts EnumerateOptions) ([]Mapping, error) {
	if opts.PostsPerPage <= 0 {
		return nil, errors.ConfigError("posts per page must be positive").
			WithContext("posts_per_page", opts.PostsPerPage).
			Build()
	}
	if opts.IndexFilename == "" {
		opts.IndexFilename = config.DefaultIndexFilename
	}
	if opts.RSSFilename == "" {
		opts.RSSFilename = config.DefaultRSSFilename
	}
	base := withTrailingSlash(opts.BaseURL)

	d := Derive(items)
	for _, slug := range d.Posts {
		if err := validateSlug("post", slug); err != nil {
			return nil, err
		}
	}
	for _, slug := range d.Tags {
		if err := validateSlug("tag", slug); err != nil {
			return nil, err
		}
	}

	segments := make([][]string, 0, 1+len(d.Posts)+len(d.Tags))
	segments = append(segments, nil)
	for _, slug := range d.Posts {
		segments = append(segments, []string{slug})
	}
	for _, slug := range d.Tags {
		segments = append(segments, []string{"tag", slug})
	}
	for _, n := range PaginationPages(d.Listed, opts.PostsPerPage) {
		segments = append(segments, []string{"page", strconv.Itoa(n)})
	}

	mappings := make([]Mapping, 0, len(segments)+3)
	for _, segs := range segments {
		mappings = append(mappings, pageMapping(base, segs, opts.IndexFilename))
	}
	mappings = append(mappings,
		Mapping{URL: base + "rss/", Target: path.Join("rss", opts.RSSFilename)},
		Mapping{URL: base + "favicon.ico", Target: "favicon.ico"},
		Mapping{URL: base + "robots.txt", Target: "robots.txt"},
	)

	if err := Check(mappings); err != nil {
		return nil, err
	}
	return mappings, nil
}

func pageMapping(base string, segs []string, indexFilename string) Mapping {
	var u strings.Builder
	u.WriteString(base)
	for _, s := range segs {
		u.WriteString(escapePath(s))
		u.WriteByte('/')
	}
	return Mapping{
		URL:    u.String(),
		Target: path.Join(append(append([]string{}, segs...), indexFilename)...),
	}
}

func validateSlug(kind, slug string) error {
	switch {
	case slug == "":
		return errors.EnumerationError("empty " + kind + " slug").Build()
	case slug == "." || slug == "..":
		return errors.EnumerationError("invalid "+kind+" slug").WithContext("slug", slug).Build()
	case strings.ContainsAny(slug, `/\`):
		return errors.EnumerationError(kind+" slug contains a path separator").WithContext("slug", slug).Build()
	}
	return nil
}
