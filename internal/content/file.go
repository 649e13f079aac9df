package content

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

// fileDocument is the on-disk layout read by FileStore:
//
//	settings:
//	  activeTheme: casper
//	  postsPerPage: "5"
//	items:
//	  - slug: welcome
//	    status: published
//	    tags: [news]
//	  - slug: about
//	    status: published
//	    page: true
type fileDocument struct {
	Settings map[string]string `yaml:"settings"`
	Items    []fileItem        `yaml:"items"`
}

type fileItem struct {
	Slug   string   `yaml:"slug"`
	Status string   `yaml:"status"`
	Tags   []string `yaml:"tags"`
	Page   bool     `yaml:"page"`
}

// FileStore reads items and settings from a YAML document.
type FileStore struct {
	*Memory
	path string
}

// OpenFile loads the YAML content file at path.
func OpenFile(path string) (*FileStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.EnumerationError("failed to read content file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	mem, err := parseFile(data)
	if err != nil {
		return nil, errors.EnumerationError("failed to parse content file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return &FileStore{Memory: mem, path: path}, nil
}

func parseFile(data []byte) (*Memory, error) {
	var doc fileDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, err
	}

	items := make([]Item, 0, len(doc.Items))
	for i, fi := range doc.Items {
		if fi.Slug == "" {
			return nil, fmt.Errorf("item %d has no slug", i)
		}
		item := Item{Slug: fi.Slug, Status: Status(fi.Status), Page: fi.Page}
		if item.Status == "" {
			item.Status = StatusDraft
		}
		for _, t := range fi.Tags {
			item.Tags = append(item.Tags, Tag{Slug: t})
		}
		items = append(items, item)
	}
	return NewMemory(items, doc.Settings), nil
}

// Path returns the file the store was loaded from.
func (f *FileStore) Path() string { return f.path }
