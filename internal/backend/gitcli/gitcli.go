// Package gitcli publishes a snapshot through a git repository by driving the
// git executable. Commands run strictly one after another; each is recorded
// in the run's event log before it starts.
package gitcli

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitesnap/internal/backend/runner"
	"git.home.luguber.info/inful/sitesnap/internal/backend/worktree"
	"git.home.luguber.info/inful/sitesnap/internal/config"
	"git.home.luguber.info/inful/sitesnap/internal/eventlog"
	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesnap/internal/logfields"
)

// Name is the configuration name of this backend.
const Name = config.BackendGit

const gitCommand = "git"

// Backend is the git executable backed publishing target.
type Backend struct {
	cfg    config.BackendConfig
	dir    string
	log    *eventlog.Log
	runner runner.Runner
}

// New validates cfg and returns a backend. r runs the git commands; when nil
// an exec runner honouring cfg.GitBinDir is used.
func New(cfg *config.BackendConfig, log *eventlog.Log, r runner.Runner) (*Backend, error) {
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
	if r == nil {
		r = &runner.Exec{BinDir: cfg.GitBinDir, Timeout: config.DefaultCommandTimeout}
	}
	return &Backend{cfg: *cfg, dir: dir, log: log, runner: r}, nil
}

func (b *Backend) Name() string { return Name }

// LockPath is a sibling of the working directory.
func (b *Backend) LockPath() string { return b.dir + ".lock" }

// Dir returns the absolute working directory.
func (b *Backend) Dir() string { return b.dir }

// Initialize brings the working directory to the tip of the configured branch
// with an empty worktree: everything except .git is deleted, then the
// repository is cloned (without checkout) or fetched, the branch checked out
// and fast-forwarded, and the worktree cleared once more. A remote that
// cannot be fast-forwarded fails the step.
func (b *Backend) Initialize(ctx context.Context) error {
	existing := worktree.HasMetadata(b.dir)
	if err := b.clear(); err != nil {
		return err
	}

	if existing {
		if _, err := b.git(ctx, "fetch", "fetch", "origin"); err != nil {
			return err
		}
	} else {
		if _, err := b.git(ctx, "clone", "clone", "--no-checkout", b.cfg.RemoteRepo, "."); err != nil {
			return err
		}
	}
	if _, err := b.git(ctx, "checkout", "checkout", b.cfg.Branch); err != nil {
		return err
	}
	if _, err := b.git(ctx, "pull", "pull", "--ff-only", "origin", b.cfg.Branch); err != nil {
		return err
	}
	// Checkout and pull populate the worktree; the snapshot starts empty.
	return b.clear()
}

// Write stores one target file in the working directory.
func (b *Backend) Write(ctx context.Context, r io.Reader, target string) error {
	_, err := worktree.WriteFile(ctx, b.dir, r, target)
	return err
}

// Finalize stages everything, commits and pushes. When staging leaves no
// changes there is nothing to publish and commit and push are skipped.
func (b *Backend) Finalize(ctx context.Context) error {
	if _, err := b.git(ctx, "add", "add", "-A"); err != nil {
		return err
	}
	res, err := b.git(ctx, "status", "status", "--porcelain")
	if err != nil {
		return err
	}
	if strings.TrimSpace(res.Stdout) == "" {
		b.log.Append(eventlog.KindInfo, "working tree unchanged; nothing to publish")
		return nil
	}

	commit := []string{}
	if b.cfg.AuthorName != "" {
		commit = append(commit, "-c", "user.name="+b.cfg.AuthorName)
	}
	if b.cfg.AuthorEmail != "" {
		commit = append(commit, "-c", "user.email="+b.cfg.AuthorEmail)
	}
	commit = append(commit, "commit", "-m", b.commitMessage())
	if _, err := b.git(ctx, "commit", commit...); err != nil {
		return err
	}
	_, err = b.git(ctx, "push", "push", "origin", b.cfg.Branch+":"+b.cfg.TargetBranch())
	return err
}

func (b *Backend) commitMessage() string {
	if b.cfg.CommitMessage != "" {
		return b.cfg.CommitMessage
	}
	return config.DefaultCommitMessage
}

func (b *Backend) clear() error {
	removed, err := worktree.Clear(b.dir)
	if err != nil {
		return err
	}
	b.log.Append(eventlog.KindInfo, "cleared %d entries from %s", removed, b.dir)
	return nil
}

// git records and runs one git command. step names the failing operation in
// the returned error.
func (b *Backend) git(ctx context.Context, step string, args ...string) (runner.Result, error) {
	b.log.Command(gitCommand, args...)
	slog.Debug("Running git", logfields.Backend(Name), logfields.Command(gitCommand+" "+strings.Join(args, " ")), logfields.Path(b.dir))

	res, err := b.runner.Run(ctx, b.dir, gitCommand, args...)
	if err != nil {
		b.log.Append(eventlog.KindError, "git %s failed: %v", step, err)
		if ce, ok := errors.AsClassified(err); ok {
			return res, ce.WithContext("step", step)
		}
		return res, errors.BackendError("git "+step+" failed").
			WithCause(err).
			WithContext("step", step).
			Build()
	}
	return res, nil
}
