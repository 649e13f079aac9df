// Package worktree holds the filesystem operations every backend variant
// shares: clearing a working directory and writing one target file into it.
package worktree

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

// MetadataDir is the version control directory kept by Clear and never
// written to by WriteFile.
const MetadataDir = ".git"

// Resolve maps a slash separated target onto root. Absolute targets, targets
// escaping root and targets inside MetadataDir are rejected.
func Resolve(root, target string) (string, error) {
	if target == "" {
		return "", errors.FileSystemError("empty target path").Build()
	}
	slashed := filepath.ToSlash(target)
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(target) {
		return "", errors.FileSystemError("target path must be relative").WithContext("target", target).Build()
	}
	clean := path.Clean(slashed)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errors.FileSystemError("target path escapes the working directory").WithContext("target", target).Build()
	}
	first, _, _ := strings.Cut(clean, "/")
	if strings.EqualFold(first, MetadataDir) {
		return "", errors.FileSystemError("target path points into version control metadata").WithContext("target", target).Build()
	}
	return filepath.Join(root, filepath.FromSlash(clean)), nil
}

// WriteFile streams r into target under root. The bytes land in a temporary
// file in the destination directory which is renamed into place once fully
// written, so a failed write never leaves a truncated target behind. The
// temporary file is closed exactly once on every path. Parent directories
// are created as needed; concurrent writers of disjoint targets are safe.
// WriteFile does not close r.
func WriteFile(ctx context.Context, root string, r io.Reader, target string) (int64, error) {
	dest, err := Resolve(root, target)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, writeError("failed to create target directory", target, err)
	}

	tmp, err := os.CreateTemp(dir, ".sitesnap-*.tmp")
	if err != nil {
		return 0, writeError("failed to create temporary file", target, err)
	}
	tmpName := tmp.Name()
	closed := false
	fail := func(e error) (int64, error) {
		if !closed {
			_ = tmp.Close()
		}
		_ = os.Remove(tmpName)
		return 0, e
	}

	src := &trackingReader{ctx: ctx, r: r}
	n, err := io.Copy(tmp, src)
	if err != nil {
		if src.err != nil {
			// Read side failures keep their own classification.
			if _, ok := errors.AsClassified(src.err); ok {
				return fail(src.err)
			}
			return fail(writeError("failed to read source stream", target, src.err))
		}
		return fail(writeError("failed to write target file", target, err))
	}

	closed = true
	if err := tmp.Close(); err != nil {
		return fail(writeError("failed to close target file", target, err))
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fail(writeError("failed to set target file mode", target, err))
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fail(writeError("failed to move target file into place", target, err))
	}
	return n, nil
}

// trackingReader remembers read side errors and stops on cancellation.
type trackingReader struct {
	ctx context.Context
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	if err := t.ctx.Err(); err != nil {
		t.err = err
		return 0, err
	}
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

// Clear removes every entry of root except MetadataDir, creating root first
// if needed. It returns the number of entries removed.
func Clear(root string) (int, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return 0, errors.FileSystemError("failed to create working directory").
			WithCause(err).
			WithContext("path", root).
			Build()
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, errors.FileSystemError("failed to list working directory").
			WithCause(err).
			WithContext("path", root).
			Build()
	}
	removed := 0
	for _, e := range entries {
		if e.Name() == MetadataDir {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
			return removed, errors.FileSystemError("failed to clear working directory").
				WithCause(err).
				WithContext("path", filepath.Join(root, e.Name())).
				Build()
		}
		removed++
	}
	return removed, nil
}

// HasMetadata reports whether root already holds a repository.
func HasMetadata(root string) bool {
	info, err := os.Stat(filepath.Join(root, MetadataDir))
	return err == nil && info.IsDir()
}

func writeError(msg, target string, cause error) error {
	return errors.FileSystemError(msg).WithCause(cause).WithContext("target", target).Build()
}
