// Package directory writes a snapshot into a plain directory. Nothing is
// published: the directory is recreated on every run and finalize only
// records that the snapshot is complete.
package directory

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/sitesnap/internal/backend/worktree"
	"git.home.luguber.info/inful/sitesnap/internal/config"
	"git.home.luguber.info/inful/sitesnap/internal/eventlog"
	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

// Name is the configuration name of this backend.
const Name = config.BackendDirectory

// Backend is a plain directory target.
type Backend struct {
	dir string
	log *eventlog.Log
}

// New validates cfg and returns a backend.
func New(cfg *config.BackendConfig, log *eventlog.Log) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Name != Name {
		return nil, errors.ConfigError("backend name mismatch").
			WithContext("expected", Name).
			WithContext("got", cfg.Name).
			Build()
	}
	dir, err := filepath.Abs(cfg.WorkingDir)
	if err != nil {
		return nil, errors.ConfigError("backend working_dir is not a valid path").WithCause(err).Build()
	}
	return &Backend{dir: dir, log: log}, nil
}

func (b *Backend) Name() string { return Name }

// LockPath is a sibling of the working directory.
func (b *Backend) LockPath() string { return b.dir + ".lock" }

// Dir returns the absolute output directory.
func (b *Backend) Dir() string { return b.dir }

// Initialize removes the output directory and creates it empty.
func (b *Backend) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Append(eventlog.KindCommand, "remove %s", b.dir)
	if err := os.RemoveAll(b.dir); err != nil {
		return errors.FileSystemError("failed to remove output directory").
			WithCause(err).
			WithContext("path", b.dir).
			Build()
	}
	b.log.Append(eventlog.KindCommand, "mkdir %s", b.dir)
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return errors.FileSystemError("failed to create output directory").
			WithCause(err).
			WithContext("path", b.dir).
			Build()
	}
	return nil
}

// Write stores one target file in the output directory.
func (b *Backend) Write(ctx context.Context, r io.Reader, target string) error {
	_, err := worktree.WriteFile(ctx, b.dir, r, target)
	return err
}

// Finalize has nothing to publish.
func (b *Backend) Finalize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Append(eventlog.KindInfo, "snapshot complete in %s; directory backend does not publish", b.dir)
	return nil
}
